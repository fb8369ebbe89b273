package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type IntentStatus string

const (
	IntentStatusRequiresPayment IntentStatus = "requires_payment"
	IntentStatusProcessing      IntentStatus = "processing"
	IntentStatusSucceeded       IntentStatus = "succeeded"
	IntentStatusFailed          IntentStatus = "failed"
	IntentStatusCancelled       IntentStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s IntentStatus) IsTerminal() bool {
	switch s {
	case IntentStatusSucceeded, IntentStatusFailed, IntentStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo encodes the intent lifecycle.
func (s IntentStatus) CanTransitionTo(next IntentStatus) bool {
	if s.IsTerminal() || s == next {
		return false
	}
	switch next {
	case IntentStatusProcessing:
		return s == IntentStatusRequiresPayment
	case IntentStatusSucceeded, IntentStatusFailed:
		return s == IntentStatusRequiresPayment || s == IntentStatusProcessing
	case IntentStatusCancelled:
		return s == IntentStatusRequiresPayment
	}
	return false
}

// PaymentIntent is a user's request to fund a wallet through an external provider.
type PaymentIntent struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	Reference         string          `json:"reference" db:"reference"`
	UserID            uuid.UUID       `json:"user_id" db:"user_id"`
	WalletID          uuid.UUID       `json:"wallet_id" db:"wallet_id"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Currency          Currency        `json:"currency" db:"currency"`
	Country           CountryCode     `json:"country" db:"country"`
	PaymentMethod     PaymentMethod   `json:"payment_method" db:"payment_method"`
	Provider          ProviderID      `json:"provider" db:"provider"`
	ProviderReference string          `json:"provider_reference" db:"provider_reference"`
	ClientSecret      string          `json:"client_secret,omitempty" db:"client_secret"`
	CheckoutURL       string          `json:"checkout_url,omitempty" db:"checkout_url"`
	Status            IntentStatus    `json:"status" db:"status"`
	FailureReason     string          `json:"failure_reason,omitempty" db:"failure_reason"`
	Description       string          `json:"description" db:"description"`
	Metadata          Metadata        `json:"metadata" db:"metadata"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSucceeded TransactionStatus = "succeeded"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// Transaction is the provider-side record of a payment, upserted from webhooks.
type Transaction struct {
	ID                uuid.UUID         `json:"id" db:"id"`
	Provider          ProviderID        `json:"provider" db:"provider"`
	ProviderReference string            `json:"provider_reference" db:"provider_reference"`
	IntentReference   string            `json:"intent_reference" db:"intent_reference"`
	UserID            *uuid.UUID        `json:"user_id,omitempty" db:"user_id"`
	Amount            decimal.Decimal   `json:"amount" db:"amount"`
	Currency          Currency          `json:"currency" db:"currency"`
	Status            TransactionStatus `json:"status" db:"status"`
	RawEventType      string            `json:"raw_event_type" db:"raw_event_type"`
	Metadata          Metadata          `json:"metadata" db:"metadata"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

type WebhookEventStatus string

const (
	WebhookEventReceived  WebhookEventStatus = "received"
	WebhookEventProcessed WebhookEventStatus = "processed"
	WebhookEventIgnored   WebhookEventStatus = "ignored"
	WebhookEventFailed    WebhookEventStatus = "failed"
)

// WebhookEvent is the raw provider callback, stored once per (provider, event_id).
type WebhookEvent struct {
	ID          uuid.UUID          `json:"id" db:"id"`
	Provider    ProviderID         `json:"provider" db:"provider"`
	EventID     string             `json:"event_id" db:"event_id"`
	EventType   string             `json:"event_type" db:"event_type"`
	Payload     []byte             `json:"-" db:"payload"`
	Status      WebhookEventStatus `json:"status" db:"status"`
	Error       string             `json:"error,omitempty" db:"error"`
	ReceivedAt  time.Time          `json:"received_at" db:"received_at"`
	ProcessedAt *time.Time         `json:"processed_at,omitempty" db:"processed_at"`
}

// ProviderConfig holds the admin switches for a provider.
type ProviderConfig struct {
	Provider         ProviderID `json:"provider" db:"provider"`
	Enabled          bool       `json:"enabled" db:"enabled"`
	PriorityOverride int        `json:"priority_override" db:"priority_override"`
	UpdatedBy        *uuid.UUID `json:"updated_by,omitempty" db:"updated_by"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}
