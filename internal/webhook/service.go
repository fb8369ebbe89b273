package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"payvost/internal/domain"
	"payvost/internal/metrics"
	"payvost/internal/payment"
	"payvost/pkg/errors"
	"payvost/pkg/logger"
)

type EventRepository interface {
	Record(ctx context.Context, ev *domain.WebhookEvent) (*domain.WebhookEvent, bool, error)
	MarkStatus(ctx context.Context, id uuid.UUID, status domain.WebhookEventStatus, errMsg string) error
}

type TransactionRepository interface {
	Upsert(ctx context.Context, tx *domain.Transaction) error
}

// Payments is the part of the payment service callbacks drive.
type Payments interface {
	FindForProvider(ctx context.Context, p domain.ProviderID, intentReference, providerReference string) (*domain.PaymentIntent, error)
	ApplyProviderStatus(ctx context.Context, intent *domain.PaymentIntent, update payment.ProviderUpdate) (*domain.PaymentIntent, error)
}

type Service struct {
	verifiers    map[domain.ProviderID]Verifier
	events       EventRepository
	transactions TransactionRepository
	payments     Payments
	logger       logger.Logger
}

func NewService(events EventRepository, transactions TransactionRepository, payments Payments, log logger.Logger, verifiers ...Verifier) *Service {
	s := &Service{
		verifiers:    make(map[domain.ProviderID]Verifier, len(verifiers)),
		events:       events,
		transactions: transactions,
		payments:     payments,
		logger:       log,
	}
	for _, v := range verifiers {
		s.verifiers[v.Provider()] = v
	}
	return s
}

// Result is what the HTTP layer reports back to the provider.
type Result struct {
	EventID         string                    `json:"event_id"`
	Status          domain.WebhookEventStatus `json:"status"`
	Duplicate       bool                      `json:"duplicate"`
	IntentReference string                    `json:"intent_reference,omitempty"`
	IntentStatus    domain.IntentStatus       `json:"intent_status,omitempty"`
}

// Handle verifies, stores and applies one callback. A returned error means the
// provider should retry; everything else is acknowledged.
func (s *Service) Handle(ctx context.Context, providerID domain.ProviderID, headers http.Header, body []byte) (*Result, error) {
	verifier, ok := s.verifiers[providerID]
	if !ok {
		return nil, errors.Wrap(errors.ErrProviderNotFound, string(providerID))
	}

	ev, err := verifier.VerifyAndParse(body, headers)
	if err != nil {
		metrics.RecordWebhookEvent(string(providerID), "rejected")
		s.logger.Warn("Webhook rejected", map[string]interface{}{
			"provider": providerID,
			"error":    err.Error(),
		})
		return nil, err
	}

	stored, created, err := s.events.Record(ctx, &domain.WebhookEvent{
		ID:         uuid.New(),
		Provider:   providerID,
		EventID:    ev.EventID,
		EventType:  ev.Type,
		Payload:    ev.Raw,
		Status:     domain.WebhookEventReceived,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	result := &Result{EventID: ev.EventID, IntentReference: ev.IntentReference}
	if !created && (stored.Status == domain.WebhookEventProcessed || stored.Status == domain.WebhookEventIgnored) {
		metrics.RecordWebhookEvent(string(providerID), "duplicate")
		s.logger.Info("Webhook already processed", map[string]interface{}{
			"provider": providerID,
			"event_id": ev.EventID,
		})
		result.Status = stored.Status
		result.Duplicate = true
		return result, nil
	}

	status, intentStatus, procErr := s.process(ctx, ev)
	result.Status = status
	result.IntentStatus = intentStatus

	errMsg := ""
	if procErr != nil {
		errMsg = procErr.Error()
	}
	if err := s.events.MarkStatus(ctx, stored.ID, status, errMsg); err != nil {
		s.logger.Error("Failed to mark webhook event", map[string]interface{}{
			"event_id": ev.EventID,
			"error":    err.Error(),
		})
	}
	metrics.RecordWebhookEvent(string(providerID), string(status))

	if status == domain.WebhookEventFailed && isRetryable(procErr) {
		return result, procErr
	}
	return result, nil
}

func (s *Service) process(ctx context.Context, ev *NormalizedEvent) (domain.WebhookEventStatus, domain.IntentStatus, error) {
	if ev.Status == "" {
		s.logger.Debug("Webhook event type ignored", map[string]interface{}{
			"provider":   ev.Provider,
			"event_type": ev.Type,
		})
		return domain.WebhookEventIgnored, "", nil
	}

	intent, err := s.payments.FindForProvider(ctx, ev.Provider, ev.IntentReference, ev.ProviderReference)
	if err != nil && !errors.Is(err, errors.ErrIntentNotFound) {
		return domain.WebhookEventFailed, "", err
	}

	if err := s.upsertTransaction(ctx, ev, intent); err != nil {
		return domain.WebhookEventFailed, "", err
	}

	if intent == nil {
		s.logger.Warn("Webhook for unknown payment intent", map[string]interface{}{
			"provider":           ev.Provider,
			"event_id":           ev.EventID,
			"intent_reference":   ev.IntentReference,
			"provider_reference": ev.ProviderReference,
		})
		return domain.WebhookEventIgnored, "", errors.ErrIntentNotFound
	}

	updated, err := s.payments.ApplyProviderStatus(ctx, intent, payment.ProviderUpdate{
		Status:        ev.Status,
		Amount:        ev.Amount,
		Currency:      ev.Currency,
		FailureReason: ev.FailureReason,
	})
	switch {
	case errors.Is(err, errors.ErrInvalidIntentTransition):
		// Out-of-order or late callback for an intent that already settled.
		return domain.WebhookEventIgnored, updated.Status, err
	case err != nil:
		return domain.WebhookEventFailed, intent.Status, err
	}

	s.logger.Info("Webhook applied", map[string]interface{}{
		"provider":      ev.Provider,
		"event_id":      ev.EventID,
		"reference":     updated.Reference,
		"intent_status": updated.Status,
	})
	return domain.WebhookEventProcessed, updated.Status, nil
}

func (s *Service) upsertTransaction(ctx context.Context, ev *NormalizedEvent, intent *domain.PaymentIntent) error {
	if ev.ProviderReference == "" {
		return nil
	}

	now := time.Now().UTC()
	tx := &domain.Transaction{
		ID:                uuid.New(),
		Provider:          ev.Provider,
		ProviderReference: ev.ProviderReference,
		IntentReference:   ev.IntentReference,
		Amount:            ev.Amount,
		Currency:          ev.Currency,
		Status:            transactionStatus(ev.Status),
		RawEventType:      ev.Type,
		Metadata:          domain.Metadata{"event_id": ev.EventID},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if intent != nil {
		tx.IntentReference = intent.Reference
		userID := intent.UserID
		tx.UserID = &userID
		if tx.Amount.IsZero() {
			tx.Amount = intent.Amount
		}
		if tx.Currency == "" {
			tx.Currency = intent.Currency
		}
	}
	return s.transactions.Upsert(ctx, tx)
}

func transactionStatus(s domain.IntentStatus) domain.TransactionStatus {
	switch s {
	case domain.IntentStatusSucceeded:
		return domain.TransactionStatusSucceeded
	case domain.IntentStatusFailed, domain.IntentStatusCancelled:
		return domain.TransactionStatusFailed
	default:
		return domain.TransactionStatusPending
	}
}

// isRetryable reports whether the provider should deliver the event again.
// A mismatched amount needs manual review, not a retry.
func isRetryable(err error) bool {
	return err != nil && !errors.Is(err, errors.ErrAmountMismatch)
}
