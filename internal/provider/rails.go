package provider

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"payvost/internal/domain"
)

// BankRail is a placeholder adapter for account-to-account rails (SEPA
// credit transfer, FedNow). It accepts every payment and reports it as
// processing until a signed settlement callback arrives.
type BankRail struct {
	id   domain.ProviderID
	caps Capabilities
}

var sepaCountries = []domain.CountryCode{
	"DE", "FR", "ES", "IT", "NL", "BE", "AT", "IE", "PT", "FI", "LU",
}

func NewSEPAProvider() *BankRail {
	return &BankRail{
		id: domain.ProviderSEPA,
		caps: Capabilities{
			Currencies:        []domain.Currency{domain.EUR},
			Countries:         sepaCountries,
			DomesticCountries: sepaCountries,
			Methods:           []domain.PaymentMethod{domain.PaymentMethodBankTransfer},
			MinAmount:         decimal.RequireFromString("0.01"),
			MaxAmount:         decimal.RequireFromString("999999999.99"),
		},
	}
}

func NewFedNowProvider() *BankRail {
	return &BankRail{
		id: domain.ProviderFedNow,
		caps: Capabilities{
			Currencies:        []domain.Currency{domain.USD},
			Countries:         []domain.CountryCode{"US"},
			DomesticCountries: []domain.CountryCode{"US"},
			Methods:           []domain.PaymentMethod{domain.PaymentMethodInstantPayment, domain.PaymentMethodBankTransfer},
			MinAmount:         decimal.RequireFromString("0.01"),
			MaxAmount:         decimal.NewFromInt(500000),
		},
	}
}

func (r *BankRail) ID() domain.ProviderID {
	return r.id
}

func (r *BankRail) Capabilities() Capabilities {
	return r.caps
}

func (r *BankRail) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResult, error) {
	return &CreatePaymentResult{
		ProviderReference: strings.ToUpper(string(r.id)) + "-" + req.Reference,
		Status:            domain.IntentStatusProcessing,
	}, nil
}

func (r *BankRail) GetPaymentStatus(ctx context.Context, providerReference string) (*PaymentStatus, error) {
	return &PaymentStatus{
		ProviderReference: providerReference,
		Status:            domain.IntentStatusProcessing,
	}, nil
}

// RailStatus maps a settlement callback status onto the intent lifecycle.
func RailStatus(s string) domain.IntentStatus {
	switch strings.ToLower(s) {
	case "settled", "completed", "accepted":
		return domain.IntentStatusSucceeded
	case "rejected", "returned", "failed":
		return domain.IntentStatusFailed
	default:
		return domain.IntentStatusProcessing
	}
}
