package provider

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"payvost/internal/domain"
	"payvost/pkg/errors"
)

// stripeIntents is the slice of the Stripe client the adapter calls.
type stripeIntents interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
	Retrieve(ctx context.Context, id string, params *stripe.PaymentIntentRetrieveParams) (*stripe.PaymentIntent, error)
}

type StripeProvider struct {
	intents stripeIntents
}

func NewStripeProvider(secretKey string) *StripeProvider {
	sc := stripe.NewClient(secretKey)
	return &StripeProvider{intents: sc.V1PaymentIntents}
}

func (p *StripeProvider) ID() domain.ProviderID {
	return domain.ProviderStripe
}

func (p *StripeProvider) Capabilities() Capabilities {
	return Capabilities{
		Currencies:        []domain.Currency{domain.USD, domain.EUR, domain.GBP, domain.CAD, domain.AUD},
		Countries:         []domain.CountryCode{"US", "GB", "CA", "AU", "DE", "FR", "IE", "NL", "ES", "IT"},
		DomesticCountries: []domain.CountryCode{"US", "GB"},
		Methods:           []domain.PaymentMethod{domain.PaymentMethodCard},
		MinAmount:         decimal.RequireFromString("0.50"),
		MaxAmount:         decimal.RequireFromString("999999.99"),
	}
}

func (p *StripeProvider) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResult, error) {
	metadata := map[string]string{"payvost_reference": req.Reference}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(toMinorUnits(req.Amount)),
		Currency:    stripe.String(strings.ToLower(string(req.Currency))),
		Description: stripe.String(req.Description),
		Metadata:    metadata,
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}

	pi, err := p.intents.Create(ctx, params)
	if err != nil {
		return nil, errors.Wrap(errors.ErrProviderRequest, "stripe: "+err.Error())
	}

	return &CreatePaymentResult{
		ProviderReference: pi.ID,
		ClientSecret:      pi.ClientSecret,
		Status:            StripeIntentStatus(pi.Status),
	}, nil
}

func (p *StripeProvider) GetPaymentStatus(ctx context.Context, providerReference string) (*PaymentStatus, error) {
	pi, err := p.intents.Retrieve(ctx, providerReference, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrProviderRequest, "stripe: "+err.Error())
	}

	status := &PaymentStatus{
		ProviderReference: pi.ID,
		Status:            StripeIntentStatus(pi.Status),
		Amount:            fromMinorUnits(pi.Amount),
		Currency:          domain.NormalizeCurrency(string(pi.Currency)),
	}
	if pi.LastPaymentError != nil {
		status.FailureReason = pi.LastPaymentError.Msg
	}
	return status, nil
}

// StripeIntentStatus maps a Stripe PaymentIntent status onto the intent lifecycle.
func StripeIntentStatus(s stripe.PaymentIntentStatus) domain.IntentStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.IntentStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return domain.IntentStatusCancelled
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
		return domain.IntentStatusProcessing
	default:
		return domain.IntentStatusRequiresPayment
	}
}
