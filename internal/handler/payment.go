package handler

import (
	"context"
	"net/http"

	"payvost/internal/domain"
	"payvost/internal/middleware"
	"payvost/internal/payment"
	"payvost/internal/routing"
	"payvost/pkg/errors"
	"payvost/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// PaymentService is the payment API the handler drives.
type PaymentService interface {
	CreateIntent(ctx context.Context, req *payment.CreateIntentRequest) (*payment.IntentResponse, error)
	Quote(ctx context.Context, req routing.RouteRequest) (*routing.Decision, error)
	GetIntent(ctx context.Context, reference string, userID uuid.UUID) (*domain.PaymentIntent, error)
	ListUserIntents(ctx context.Context, userID uuid.UUID, limit, offset int) (*payment.ListResponse, error)
	CancelIntent(ctx context.Context, reference string, userID uuid.UUID) (*domain.PaymentIntent, error)
	SyncIntent(ctx context.Context, reference string, userID uuid.UUID) (*domain.PaymentIntent, error)
}

type PaymentHandler struct {
	base
	service PaymentService
}

func NewPaymentHandler(service PaymentService, log logger.Logger) *PaymentHandler {
	return &PaymentHandler{base: base{logger: log}, service: service}
}

// CreateIntent routes a new payment to a provider and opens it there.
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req payment.CreateIntentRequest
	if msg, ok := decodeJSON(r, &req); !ok {
		h.respondError(w, http.StatusBadRequest, msg)
		return
	}
	req.UserID = userID
	if email, ok := middleware.EmailFromContext(r.Context()); ok && req.CustomerEmail == "" {
		req.CustomerEmail = email
	}

	resp, err := h.service.CreateIntent(r.Context(), &req)
	if err != nil {
		h.logger.Warn("Payment intent creation failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		if resp != nil && errors.Is(err, errors.ErrNoEligibleProvider) && resp.Decision != nil {
			h.respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":      err.Error(),
				"candidates": resp.Decision.Candidates,
			})
			return
		}
		if resp != nil && resp.Intent != nil {
			// The intent exists but the provider refused it.
			h.respondJSON(w, statusFor(err), map[string]interface{}{
				"error":          err.Error(),
				"payment_intent": resp.Intent,
				"routing":        resp.Decision,
			})
			return
		}
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

// Quote shows which provider a payment would be routed to without creating it.
func (h *PaymentHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req routing.RouteRequest
	if msg, ok := decodeJSON(r, &req); !ok {
		h.respondError(w, http.StatusBadRequest, msg)
		return
	}

	decision, err := h.service.Quote(r.Context(), req)
	if err != nil {
		if decision != nil && errors.Is(err, errors.ErrNoEligibleProvider) {
			h.respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":      err.Error(),
				"candidates": decision.Candidates,
			})
			return
		}
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, decision)
}

func (h *PaymentHandler) ListIntents(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(r)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	resp, err := h.service.ListUserIntents(r.Context(), userID, queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) GetIntent(w http.ResponseWriter, r *http.Request) {
	h.withIntent(w, r, h.service.GetIntent)
}

func (h *PaymentHandler) CancelIntent(w http.ResponseWriter, r *http.Request) {
	h.withIntent(w, r, h.service.CancelIntent)
}

// SyncIntent asks the provider for the latest status of an intent.
func (h *PaymentHandler) SyncIntent(w http.ResponseWriter, r *http.Request) {
	h.withIntent(w, r, h.service.SyncIntent)
}

type intentOp func(ctx context.Context, reference string, userID uuid.UUID) (*domain.PaymentIntent, error)

func (h *PaymentHandler) withIntent(w http.ResponseWriter, r *http.Request, op intentOp) {
	userID, ok := currentUser(r)
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	reference := mux.Vars(r)["reference"]
	if reference == "" {
		h.respondError(w, http.StatusBadRequest, "Missing intent reference")
		return
	}

	intent, err := op(r.Context(), reference, userID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, intent)
}
