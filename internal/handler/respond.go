// Package handler provides HTTP handlers for the Payvost services.
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"payvost/internal/middleware"
	"payvost/pkg/errors"
	"payvost/pkg/logger"
	"payvost/pkg/validator"

	"github.com/google/uuid"
)

// base carries the response helpers every handler shares.
type base struct {
	logger logger.Logger
}

func (h *base) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("json encode failed", map[string]interface{}{"error": err.Error()})
	}
}

func (h *base) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps domain errors onto HTTP statuses.
func (h *base) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", map[string]interface{}{
			"path":       r.URL.Path,
			"request_id": middleware.RequestIDFromContext(r.Context()),
			"error":      err.Error(),
		})
		if status == http.StatusInternalServerError {
			h.respondError(w, status, "Internal server error")
			return
		}
	}
	h.respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrWalletNotFound),
		errors.Is(err, errors.ErrIntentNotFound),
		errors.Is(err, errors.ErrTransactionNotFound),
		errors.Is(err, errors.ErrProviderNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, errors.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, errors.ErrInvalidIntentTransition),
		errors.Is(err, errors.ErrDuplicateRequest),
		errors.Is(err, errors.ErrWalletAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, errors.ErrNoEligibleProvider),
		errors.Is(err, errors.ErrCurrencyMismatch),
		errors.Is(err, errors.ErrInsufficientBalance),
		errors.Is(err, errors.ErrWalletInactive),
		errors.Is(err, errors.ErrAmountMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrInvalidAmount),
		errors.Is(err, errors.ErrMissingReference),
		errors.Is(err, errors.ErrMalformedPayload),
		errors.Is(err, errors.ErrUnsupportedEvent):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrProviderUnavailable),
		errors.Is(err, errors.ErrProviderRequest):
		return http.StatusBadGateway
	case errors.Is(err, validator.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) (string, bool) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return "Request body is required", false
		}
		return "Invalid request body", false
	}
	return "", true
}

func currentUser(r *http.Request) (uuid.UUID, bool) {
	return middleware.UserIDFromContext(r.Context())
}

func queryInt(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
