package provider

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"payvost/internal/domain"
	"payvost/pkg/config"
	"payvost/pkg/errors"
)

// FlutterwaveProvider uses the Flutterwave v3 Standard checkout. Amounts are
// sent in major units.
type FlutterwaveProvider struct {
	rest        restClient
	redirectURL string
}

func NewFlutterwaveProvider(cfg config.FlutterwaveConfig, breaker config.BreakerConfig) *FlutterwaveProvider {
	return &FlutterwaveProvider{
		rest:        newRESTClient("flutterwave", strings.TrimRight(cfg.BaseURL, "/"), cfg.SecretKey, breaker.HTTPTimeout),
		redirectURL: cfg.RedirectURL,
	}
}

func (p *FlutterwaveProvider) ID() domain.ProviderID {
	return domain.ProviderFlutterwave
}

func (p *FlutterwaveProvider) Capabilities() Capabilities {
	return Capabilities{
		Currencies: []domain.Currency{
			domain.NGN, domain.GHS, domain.KES, domain.UGX, domain.TZS,
			domain.RWF, domain.ZAR, domain.XOF, domain.USD, domain.EUR, domain.GBP,
		},
		Countries:         []domain.CountryCode{"NG", "GH", "KE", "UG", "TZ", "RW", "ZA", "CI", "SN"},
		DomesticCountries: []domain.CountryCode{"KE", "UG", "TZ", "RW"},
		Methods: []domain.PaymentMethod{
			domain.PaymentMethodCard,
			domain.PaymentMethodMobileMoney,
			domain.PaymentMethodBankTransfer,
			domain.PaymentMethodUSSD,
		},
		MinAmount: decimal.NewFromInt(1),
		MaxAmount: decimal.NewFromInt(5000000),
	}
}

type flutterwaveCustomer struct {
	Email string `json:"email"`
}

type flutterwavePaymentRequest struct {
	TxRef          string              `json:"tx_ref"`
	Amount         string              `json:"amount"`
	Currency       string              `json:"currency"`
	RedirectURL    string              `json:"redirect_url,omitempty"`
	PaymentOptions string              `json:"payment_options,omitempty"`
	Customer       flutterwaveCustomer `json:"customer"`
	Meta           map[string]string   `json:"meta,omitempty"`
}

type flutterwavePaymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

type flutterwaveVerifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID              int64           `json:"id"`
		TxRef           string          `json:"tx_ref"`
		Status          string          `json:"status"`
		Amount          decimal.Decimal `json:"amount"`
		Currency        string          `json:"currency"`
		ProcessorResult string          `json:"processor_response"`
	} `json:"data"`
}

func (p *FlutterwaveProvider) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResult, error) {
	body := flutterwavePaymentRequest{
		TxRef:          req.Reference,
		Amount:         req.Amount.StringFixed(2),
		Currency:       string(req.Currency),
		RedirectURL:    p.redirectURL,
		PaymentOptions: flutterwaveOption(req.PaymentMethod, req.Country),
		Customer:       flutterwaveCustomer{Email: req.CustomerEmail},
		Meta:           req.Metadata,
	}

	var resp flutterwavePaymentResponse
	if err := p.rest.do(ctx, http.MethodPost, "/v3/payments", body, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, errors.Wrap(errors.ErrProviderRequest, "flutterwave: "+resp.Message)
	}

	return &CreatePaymentResult{
		ProviderReference: req.Reference,
		CheckoutURL:       resp.Data.Link,
		Status:            domain.IntentStatusRequiresPayment,
	}, nil
}

func (p *FlutterwaveProvider) GetPaymentStatus(ctx context.Context, providerReference string) (*PaymentStatus, error) {
	var resp flutterwaveVerifyResponse
	path := "/v3/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(providerReference)
	if err := p.rest.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, errors.Wrap(errors.ErrProviderRequest, "flutterwave: "+resp.Message)
	}

	status := &PaymentStatus{
		ProviderReference: providerReference,
		Status:            FlutterwaveStatus(resp.Data.Status),
		Amount:            resp.Data.Amount,
		Currency:          domain.NormalizeCurrency(resp.Data.Currency),
	}
	if status.Status == domain.IntentStatusFailed {
		status.FailureReason = resp.Data.ProcessorResult
	}
	return status, nil
}

// FlutterwaveStatus maps a Flutterwave transaction status onto the intent lifecycle.
func FlutterwaveStatus(s string) domain.IntentStatus {
	switch strings.ToLower(s) {
	case "successful", "completed":
		return domain.IntentStatusSucceeded
	case "failed", "cancelled":
		return domain.IntentStatusFailed
	case "pending":
		return domain.IntentStatusProcessing
	default:
		return domain.IntentStatusRequiresPayment
	}
}

func flutterwaveOption(m domain.PaymentMethod, country domain.CountryCode) string {
	switch m {
	case domain.PaymentMethodCard:
		return "card"
	case domain.PaymentMethodBankTransfer:
		return "banktransfer"
	case domain.PaymentMethodUSSD:
		return "ussd"
	case domain.PaymentMethodMobileMoney:
		switch country {
		case "GH":
			return "mobilemoneyghana"
		case "UG":
			return "mobilemoneyuganda"
		case "RW":
			return "mobilemoneyrwanda"
		case "TZ":
			return "mobilemoneytanzania"
		case "CI", "SN":
			return "mobilemoneyfranco"
		default:
			return "mpesa"
		}
	}
	return ""
}
