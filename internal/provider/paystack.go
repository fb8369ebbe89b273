package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"payvost/internal/domain"
	"payvost/pkg/config"
	"payvost/pkg/errors"
)

// PaystackProvider talks to the Paystack transaction API. Amounts are sent in
// subunits (kobo, pesewas).
type PaystackProvider struct {
	rest        restClient
	callbackURL string
}

func NewPaystackProvider(cfg config.PaystackConfig, breaker config.BreakerConfig) *PaystackProvider {
	return &PaystackProvider{
		rest:        newRESTClient("paystack", strings.TrimRight(cfg.BaseURL, "/"), cfg.SecretKey, breaker.HTTPTimeout),
		callbackURL: cfg.CallbackURL,
	}
}

func (p *PaystackProvider) ID() domain.ProviderID {
	return domain.ProviderPaystack
}

func (p *PaystackProvider) Capabilities() Capabilities {
	return Capabilities{
		Currencies:        []domain.Currency{domain.NGN, domain.GHS, domain.ZAR, domain.KES, domain.USD},
		Countries:         []domain.CountryCode{"NG", "GH", "ZA", "KE"},
		DomesticCountries: []domain.CountryCode{"NG", "GH", "ZA"},
		Methods: []domain.PaymentMethod{
			domain.PaymentMethodCard,
			domain.PaymentMethodBankTransfer,
			domain.PaymentMethodUSSD,
			domain.PaymentMethodMobileMoney,
		},
		MinAmount: decimal.NewFromInt(1),
		MaxAmount: decimal.NewFromInt(10000000),
	}
}

type paystackInitRequest struct {
	Email       string            `json:"email"`
	Amount      string            `json:"amount"`
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Channels    []string          `json:"channels,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status          string `json:"status"`
		Reference       string `json:"reference"`
		Amount          int64  `json:"amount"`
		Currency        string `json:"currency"`
		GatewayResponse string `json:"gateway_response"`
	} `json:"data"`
}

func (p *PaystackProvider) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResult, error) {
	body := paystackInitRequest{
		Email:       req.CustomerEmail,
		Amount:      fmt.Sprintf("%d", toMinorUnits(req.Amount)),
		Currency:    string(req.Currency),
		Reference:   req.Reference,
		CallbackURL: p.callbackURL,
		Metadata:    req.Metadata,
	}
	if ch := paystackChannel(req.PaymentMethod); ch != "" {
		body.Channels = []string{ch}
	}

	var resp paystackInitResponse
	if err := p.rest.do(ctx, http.MethodPost, "/transaction/initialize", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, errors.Wrap(errors.ErrProviderRequest, "paystack: "+resp.Message)
	}

	ref := resp.Data.Reference
	if ref == "" {
		ref = req.Reference
	}
	return &CreatePaymentResult{
		ProviderReference: ref,
		ClientSecret:      resp.Data.AccessCode,
		CheckoutURL:       resp.Data.AuthorizationURL,
		Status:            domain.IntentStatusRequiresPayment,
	}, nil
}

func (p *PaystackProvider) GetPaymentStatus(ctx context.Context, providerReference string) (*PaymentStatus, error) {
	var resp paystackVerifyResponse
	path := "/transaction/verify/" + url.PathEscape(providerReference)
	if err := p.rest.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, errors.Wrap(errors.ErrProviderRequest, "paystack: "+resp.Message)
	}

	status := &PaymentStatus{
		ProviderReference: providerReference,
		Status:            PaystackStatus(resp.Data.Status),
		Amount:            fromMinorUnits(resp.Data.Amount),
		Currency:          domain.NormalizeCurrency(resp.Data.Currency),
	}
	if status.Status == domain.IntentStatusFailed {
		status.FailureReason = resp.Data.GatewayResponse
	}
	return status, nil
}

// PaystackStatus maps a Paystack transaction status onto the intent lifecycle.
func PaystackStatus(s string) domain.IntentStatus {
	switch strings.ToLower(s) {
	case "success":
		return domain.IntentStatusSucceeded
	case "failed", "reversed", "abandoned":
		return domain.IntentStatusFailed
	case "ongoing", "pending", "processing", "queued":
		return domain.IntentStatusProcessing
	default:
		return domain.IntentStatusRequiresPayment
	}
}

func paystackChannel(m domain.PaymentMethod) string {
	switch m {
	case domain.PaymentMethodCard:
		return "card"
	case domain.PaymentMethodBankTransfer:
		return "bank_transfer"
	case domain.PaymentMethodUSSD:
		return "ussd"
	case domain.PaymentMethodMobileMoney:
		return "mobile_money"
	}
	return ""
}
