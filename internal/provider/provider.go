// Package provider defines the payment service provider adapters and the
// ordered registry the router chooses from.
package provider

import (
	"context"

	"github.com/shopspring/decimal"
	"payvost/internal/domain"
)

// Provider is an external PSP that can collect funds for a payment intent.
type Provider interface {
	ID() domain.ProviderID
	Capabilities() Capabilities
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResult, error)
	GetPaymentStatus(ctx context.Context, providerReference string) (*PaymentStatus, error)
}

// Availability is implemented by providers that can be temporarily out of rotation.
type Availability interface {
	Available() bool
}

// Capabilities is a provider's eligibility table row.
type Capabilities struct {
	Currencies        []domain.Currency      `json:"currencies"`
	Countries         []domain.CountryCode   `json:"countries"`
	DomesticCountries []domain.CountryCode   `json:"domestic_countries"`
	Methods           []domain.PaymentMethod `json:"methods"`
	MinAmount         decimal.Decimal        `json:"min_amount"`
	MaxAmount         decimal.Decimal        `json:"max_amount"`
}

func (c Capabilities) SupportsCurrency(cur domain.Currency) bool {
	for _, v := range c.Currencies {
		if v == cur {
			return true
		}
	}
	return false
}

func (c Capabilities) SupportsCountry(country domain.CountryCode) bool {
	for _, v := range c.Countries {
		if v == country {
			return true
		}
	}
	return false
}

func (c Capabilities) IsDomestic(country domain.CountryCode) bool {
	for _, v := range c.DomesticCountries {
		if v == country {
			return true
		}
	}
	return false
}

func (c Capabilities) SupportsMethod(m domain.PaymentMethod) bool {
	for _, v := range c.Methods {
		if v == m {
			return true
		}
	}
	return false
}

// InRange reports min <= amount <= max.
func (c Capabilities) InRange(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(c.MinAmount) && amount.LessThanOrEqual(c.MaxAmount)
}

type CreatePaymentRequest struct {
	Reference     string
	Amount        decimal.Decimal
	Currency      domain.Currency
	Country       domain.CountryCode
	PaymentMethod domain.PaymentMethod
	CustomerEmail string
	Description   string
	Metadata      map[string]string
}

type CreatePaymentResult struct {
	ProviderReference string
	ClientSecret      string
	CheckoutURL       string
	Status            domain.IntentStatus
}

type PaymentStatus struct {
	ProviderReference string
	Status            domain.IntentStatus
	Amount            decimal.Decimal
	Currency          domain.Currency
	FailureReason     string
}

// toMinorUnits converts a major-unit amount to the integer subunit most PSP APIs expect.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(domain.MinorUnitPlaces).Round(0).IntPart()
}

func fromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -domain.MinorUnitPlaces)
}
