package handler

import (
	"context"
	"io"
	"net/http"

	"payvost/internal/domain"
	"payvost/internal/middleware"
	"payvost/internal/webhook"
	"payvost/pkg/errors"
	"payvost/pkg/logger"

	"github.com/gorilla/mux"
)

type WebhookProcessor interface {
	Handle(ctx context.Context, providerID domain.ProviderID, headers http.Header, body []byte) (*webhook.Result, error)
}

// WebhookHandler receives provider callbacks on /webhooks/{provider}.
type WebhookHandler struct {
	base
	processor WebhookProcessor
}

func NewWebhookHandler(processor WebhookProcessor, log logger.Logger) *WebhookHandler {
	return &WebhookHandler{base: base{logger: log}, processor: processor}
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	providerID := domain.ProviderID(mux.Vars(r)["provider"])

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		h.respondError(w, http.StatusBadRequest, "Unable to read body")
		return
	}

	result, err := h.processor.Handle(r.Context(), providerID, r.Header, body)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusUnauthorized || status == http.StatusBadRequest || status == http.StatusNotFound {
			h.respondError(w, status, err.Error())
			return
		}
		// Anything else asks the provider to redeliver.
		h.logger.Error("Webhook processing failed", map[string]interface{}{
			"provider":   providerID,
			"request_id": middleware.RequestIDFromContext(r.Context()),
			"error":      err.Error(),
		})
		h.respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":  "Processing failed",
			"result": result,
		})
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}
