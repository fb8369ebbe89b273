package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoutingDecision is the persisted outcome of one provider selection.
type RoutingDecision struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	IntentReference string          `json:"intent_reference" db:"intent_reference"`
	Provider        ProviderID      `json:"provider" db:"provider"`
	Score           int             `json:"score" db:"score"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Currency        Currency        `json:"currency" db:"currency"`
	Country         CountryCode     `json:"country" db:"country"`
	Candidates      json.RawMessage `json:"candidates" db:"candidates"`
	Reason          string          `json:"reason" db:"reason"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// ProviderVolume represents aggregated routing volume for one provider
type ProviderVolume struct {
	Provider  ProviderID      `json:"provider" db:"provider"`
	Currency  Currency        `json:"currency" db:"currency"`
	Decisions int64           `json:"decisions" db:"decisions"`
	Volume    decimal.Decimal `json:"volume" db:"volume"`
}

// RoutingStats summarises routing and settlement outcomes over a window
type RoutingStats struct {
	Since     time.Time         `json:"since"`
	Providers []*ProviderVolume `json:"providers"`
	Succeeded int64             `json:"succeeded" db:"succeeded"`
	Failed    int64             `json:"failed" db:"failed"`
	Pending   int64             `json:"pending" db:"pending"`
}
