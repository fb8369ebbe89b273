// Package domain holds the core payment, wallet and ledger types.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency represents ISO 4217 currency codes
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	CAD Currency = "CAD"
	AUD Currency = "AUD"
	NGN Currency = "NGN" // Nigerian Naira
	GHS Currency = "GHS" // Ghanaian Cedi
	KES Currency = "KES" // Kenyan Shilling
	ZAR Currency = "ZAR" // South African Rand
	UGX Currency = "UGX" // Ugandan Shilling
	TZS Currency = "TZS" // Tanzanian Shilling
	RWF Currency = "RWF" // Rwandan Franc
	XOF Currency = "XOF" // West African CFA franc
)

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(c string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(c)))
}

// MinorUnitPlaces is the precision every supported provider settles in.
const MinorUnitPlaces int32 = 2

// HasMinorUnitPrecision reports whether amount is a whole number of minor units.
func HasMinorUnitPrecision(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(MinorUnitPlaces))
}

// CountryCode is an ISO 3166-1 alpha-2 code.
type CountryCode string

// NormalizeCountry upper-cases and trims a country code.
func NormalizeCountry(c string) CountryCode {
	return CountryCode(strings.ToUpper(strings.TrimSpace(c)))
}

type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
	PaymentMethodMobileMoney    PaymentMethod = "mobile_money"
	PaymentMethodUSSD           PaymentMethod = "ussd"
	PaymentMethodInstantPayment PaymentMethod = "instant_payment"
)

// ProviderID names a payment service provider adapter.
type ProviderID string

const (
	ProviderStripe      ProviderID = "stripe"
	ProviderPaystack    ProviderID = "paystack"
	ProviderFlutterwave ProviderID = "flutterwave"
	ProviderSEPA        ProviderID = "sepa"
	ProviderFedNow      ProviderID = "fednow"
)

// Wallet represents a user's currency wallet
type Wallet struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	UserID            uuid.UUID       `json:"user_id" db:"user_id"`
	Currency          Currency        `json:"currency" db:"currency"`
	Balance           decimal.Decimal `json:"balance" db:"balance"`
	Status            WalletStatus    `json:"status" db:"status"`
	LastTransactionAt *time.Time      `json:"last_transaction_at,omitempty" db:"last_transaction_at"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "active"
	WalletStatusSuspended WalletStatus = "suspended"
	WalletStatusClosed    WalletStatus = "closed"
)

// Metadata is a JSON-compatible map
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, m)
}
