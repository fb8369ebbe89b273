package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryTypeCredit EntryType = "credit"
	EntryTypeDebit  EntryType = "debit"
)

// GenesisHash is the previous_hash of a wallet's first ledger entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// AmountScale is the number of fractional digits stored for ledger amounts.
const AmountScale = 8

// LedgerEntry is an immutable balance movement on a single wallet. Entries
// of one wallet form a hash chain ordered by Sequence.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	WalletID      uuid.UUID       `json:"wallet_id" db:"wallet_id"`
	Sequence      int64           `json:"sequence" db:"sequence"`
	Reference     string          `json:"reference" db:"reference"`
	EntryType     EntryType       `json:"entry_type" db:"entry_type"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      Currency        `json:"currency" db:"currency"`
	BalanceBefore decimal.Decimal `json:"balance_before" db:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after" db:"balance_after"`
	Source        string          `json:"source" db:"source"`
	Description   string          `json:"description" db:"description"`
	PreviousHash  string          `json:"previous_hash" db:"previous_hash"`
	Hash          string          `json:"hash" db:"hash"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// ComputeHash returns the SHA-256 over the entry's identifying fields,
// amounts and previous hash.
func (e *LedgerEntry) ComputeHash() string {
	data := fmt.Sprintf("%s:%s:%d:%s:%s:%s:%s:%s:%s:%d",
		e.WalletID.String(),
		e.Reference,
		e.Sequence,
		e.EntryType,
		e.Amount.StringFixed(AmountScale),
		e.Currency,
		e.BalanceBefore.StringFixed(AmountScale),
		e.BalanceAfter.StringFixed(AmountScale),
		e.PreviousHash,
		e.CreatedAt.UTC().UnixNano(),
	)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// LedgerPosting is a request to move funds on one wallet.
type LedgerPosting struct {
	WalletID    uuid.UUID
	Reference   string
	EntryType   EntryType
	Amount      decimal.Decimal
	Currency    Currency
	Source      string
	Description string
}
