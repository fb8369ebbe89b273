// Package notification fans payment outcomes out to email, the event bus and the admin feed.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payvost/internal/domain"
	"payvost/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a payment outcome.
type EventType string

const (
	EventPaymentSucceeded EventType = "payment.succeeded"
	EventPaymentFailed    EventType = "payment.failed"
	EventPaymentCancelled EventType = "payment.cancelled"
)

// EventForStatus maps a terminal intent status to its notification type.
func EventForStatus(status domain.IntentStatus) (EventType, bool) {
	switch status {
	case domain.IntentStatusSucceeded:
		return EventPaymentSucceeded, true
	case domain.IntentStatusFailed:
		return EventPaymentFailed, true
	case domain.IntentStatusCancelled:
		return EventPaymentCancelled, true
	default:
		return "", false
	}
}

// Event is what every sink receives.
type Event struct {
	ID              uuid.UUID              `json:"id"`
	Type            EventType              `json:"type"`
	UserID          uuid.UUID              `json:"user_id"`
	Email           string                 `json:"-"`
	IntentReference string                 `json:"intent_reference"`
	Provider        domain.ProviderID      `json:"provider"`
	Amount          decimal.Decimal        `json:"amount"`
	Currency        domain.Currency        `json:"currency"`
	Status          domain.IntentStatus    `json:"status"`
	FailureReason   string                 `json:"failure_reason,omitempty"`
	Data            map[string]interface{} `json:"data,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// NewIntentEvent builds the event for an intent that reached a terminal status.
func NewIntentEvent(intent *domain.PaymentIntent) (*Event, bool) {
	typ, ok := EventForStatus(intent.Status)
	if !ok {
		return nil, false
	}
	ev := &Event{
		ID:              uuid.New(),
		Type:            typ,
		UserID:          intent.UserID,
		IntentReference: intent.Reference,
		Provider:        intent.Provider,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		Status:          intent.Status,
		FailureReason:   intent.FailureReason,
		CreatedAt:       time.Now().UTC(),
	}
	if email, ok := intent.Metadata["customer_email"].(string); ok {
		ev.Email = email
	}
	return ev, true
}

func (e *Event) marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Sink delivers events over one channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev *Event) error
}

// Notifier is what the payment flow depends on.
type Notifier interface {
	Notify(ctx context.Context, ev *Event)
}

// Dispatcher delivers each event to its sinks in order. A sink error is logged and the
// remaining sinks still run.
type Dispatcher struct {
	sinks  []Sink
	logger logger.Logger
}

// NewDispatcher creates a Dispatcher. Nil sinks are skipped.
func NewDispatcher(log logger.Logger, sinks ...Sink) *Dispatcher {
	d := &Dispatcher{logger: log}
	for _, s := range sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	return d
}

// Notify never fails the caller.
func (d *Dispatcher) Notify(ctx context.Context, ev *Event) {
	if ev == nil {
		return
	}
	for _, s := range d.sinks {
		if err := s.Deliver(ctx, ev); err != nil {
			d.logger.Error("Notification delivery failed", map[string]interface{}{
				"sink":             s.Name(),
				"event_id":         ev.ID,
				"event_type":       ev.Type,
				"intent_reference": ev.IntentReference,
				"error":            err.Error(),
			})
			continue
		}
		d.logger.Debug("Notification delivered", map[string]interface{}{
			"sink":     s.Name(),
			"event_id": ev.ID,
		})
	}
}

// render builds the subject and body for an email.
func render(ev *Event) (string, string) {
	amount := ev.Amount.StringFixed(2)
	switch ev.Type {
	case EventPaymentSucceeded:
		return "Payment Received",
			fmt.Sprintf("Your payment %s of %s %s was successful and your wallet has been credited.", ev.IntentReference, amount, ev.Currency)
	case EventPaymentFailed:
		body := fmt.Sprintf("Your payment %s of %s %s failed.", ev.IntentReference, amount, ev.Currency)
		if ev.FailureReason != "" {
			body += " Reason: " + ev.FailureReason + "."
		}
		return "Payment Failed", body
	case EventPaymentCancelled:
		return "Payment Cancelled",
			fmt.Sprintf("Your payment %s of %s %s was cancelled.", ev.IntentReference, amount, ev.Currency)
	default:
		return "Notification", fmt.Sprintf("Event: %s", ev.Type)
	}
}
