// Package webhook verifies provider callbacks and applies them to payment intents.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"payvost/internal/domain"
	"payvost/internal/provider"
	"payvost/pkg/errors"
)

// NormalizedEvent is a verified callback in provider-neutral form. An empty
// Status means the event type carries nothing to apply.
type NormalizedEvent struct {
	Provider          domain.ProviderID
	EventID           string
	Type              string
	ProviderReference string
	IntentReference   string
	Status            domain.IntentStatus
	Amount            decimal.Decimal
	Currency          domain.Currency
	FailureReason     string
	Raw               []byte
}

// Verifier authenticates and parses one provider's callbacks.
type Verifier interface {
	Provider() domain.ProviderID
	VerifyAndParse(payload []byte, headers http.Header) (*NormalizedEvent, error)
}

func invalidSignature(p domain.ProviderID, reason string) error {
	return errors.Wrap(errors.ErrInvalidSignature, fmt.Sprintf("%s: %s", p, reason))
}

func malformed(p domain.ProviderID, err error) error {
	return errors.Wrap(errors.ErrMalformedPayload, fmt.Sprintf("%s: %s", p, err.Error()))
}

// checkHMAC compares a hex signature header against HMAC(body, secret).
func checkHMAC(newHash func() hash.Hash, secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

// --- Stripe ---

type StripeVerifier struct {
	secret string
}

func NewStripeVerifier(signingSecret string) *StripeVerifier {
	return &StripeVerifier{secret: signingSecret}
}

func (v *StripeVerifier) Provider() domain.ProviderID { return domain.ProviderStripe }

func (v *StripeVerifier) VerifyAndParse(payload []byte, headers http.Header) (*NormalizedEvent, error) {
	event, err := stripewebhook.ConstructEventWithOptions(payload, headers.Get("Stripe-Signature"), v.secret,
		stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, invalidSignature(domain.ProviderStripe, err.Error())
	}

	ev := &NormalizedEvent{
		Provider: domain.ProviderStripe,
		EventID:  event.ID,
		Type:     string(event.Type),
		Raw:      payload,
	}
	if !strings.HasPrefix(ev.Type, "payment_intent.") || event.Data == nil || event.Data.Raw == nil {
		return ev, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, malformed(domain.ProviderStripe, err)
	}

	ev.ProviderReference = pi.ID
	ev.IntentReference = pi.Metadata["intent_reference"]
	if ev.IntentReference == "" {
		ev.IntentReference = pi.Metadata["payvost_reference"]
	}
	ev.Amount = decimal.New(pi.Amount, -2)
	ev.Currency = domain.NormalizeCurrency(string(pi.Currency))

	switch event.Type {
	case "payment_intent.succeeded":
		ev.Status = domain.IntentStatusSucceeded
	case "payment_intent.payment_failed":
		ev.Status = domain.IntentStatusFailed
		if pi.LastPaymentError != nil {
			ev.FailureReason = pi.LastPaymentError.Msg
		}
	case "payment_intent.canceled":
		ev.Status = domain.IntentStatusCancelled
	case "payment_intent.processing":
		ev.Status = domain.IntentStatusProcessing
	}
	return ev, nil
}

// --- Paystack ---

type PaystackVerifier struct {
	secretKey string
}

func NewPaystackVerifier(secretKey string) *PaystackVerifier {
	return &PaystackVerifier{secretKey: secretKey}
}

func (v *PaystackVerifier) Provider() domain.ProviderID { return domain.ProviderPaystack }

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID              int64  `json:"id"`
		Reference       string `json:"reference"`
		Status          string `json:"status"`
		Amount          int64  `json:"amount"`
		Currency        string `json:"currency"`
		GatewayResponse string `json:"gateway_response"`
	} `json:"data"`
}

func (v *PaystackVerifier) VerifyAndParse(payload []byte, headers http.Header) (*NormalizedEvent, error) {
	if !checkHMAC(sha512.New, v.secretKey, payload, headers.Get("x-paystack-signature")) {
		return nil, invalidSignature(domain.ProviderPaystack, "signature mismatch")
	}

	var body paystackEvent
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, malformed(domain.ProviderPaystack, err)
	}

	ev := &NormalizedEvent{
		Provider:          domain.ProviderPaystack,
		EventID:           fmt.Sprintf("%s:%d", body.Event, body.Data.ID),
		Type:              body.Event,
		ProviderReference: body.Data.Reference,
		IntentReference:   body.Data.Reference,
		Amount:            decimal.New(body.Data.Amount, -2),
		Currency:          domain.NormalizeCurrency(body.Data.Currency),
		Raw:               payload,
	}
	if strings.HasPrefix(body.Event, "charge.") {
		ev.Status = provider.PaystackStatus(body.Data.Status)
		if ev.Status == domain.IntentStatusFailed {
			ev.FailureReason = body.Data.GatewayResponse
		}
	}
	return ev, nil
}

// --- Flutterwave ---

type FlutterwaveVerifier struct {
	secretHash string
}

func NewFlutterwaveVerifier(secretHash string) *FlutterwaveVerifier {
	return &FlutterwaveVerifier{secretHash: secretHash}
}

func (v *FlutterwaveVerifier) Provider() domain.ProviderID { return domain.ProviderFlutterwave }

type flutterwaveEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID                int64           `json:"id"`
		TxRef             string          `json:"tx_ref"`
		FlwRef            string          `json:"flw_ref"`
		Status            string          `json:"status"`
		Amount            decimal.Decimal `json:"amount"`
		Currency          string          `json:"currency"`
		ProcessorResponse string          `json:"processor_response"`
	} `json:"data"`
}

func (v *FlutterwaveVerifier) VerifyAndParse(payload []byte, headers http.Header) (*NormalizedEvent, error) {
	got := headers.Get("verif-hash")
	if v.secretHash == "" || subtle.ConstantTimeCompare([]byte(got), []byte(v.secretHash)) != 1 {
		return nil, invalidSignature(domain.ProviderFlutterwave, "verif-hash mismatch")
	}

	var body flutterwaveEvent
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, malformed(domain.ProviderFlutterwave, err)
	}

	ev := &NormalizedEvent{
		Provider:          domain.ProviderFlutterwave,
		EventID:           fmt.Sprintf("%s:%d", body.Event, body.Data.ID),
		Type:              body.Event,
		ProviderReference: body.Data.TxRef,
		IntentReference:   body.Data.TxRef,
		Amount:            body.Data.Amount,
		Currency:          domain.NormalizeCurrency(body.Data.Currency),
		Raw:               payload,
	}
	if strings.HasPrefix(body.Event, "charge.") {
		ev.Status = provider.FlutterwaveStatus(body.Data.Status)
		if ev.Status == domain.IntentStatusFailed {
			ev.FailureReason = body.Data.ProcessorResponse
		}
	}
	return ev, nil
}

// --- Bank rails ---

// RailVerifier handles SEPA and FedNow settlement callbacks signed with a shared secret.
type RailVerifier struct {
	id     domain.ProviderID
	secret string
}

func NewRailVerifier(id domain.ProviderID, signingSecret string) *RailVerifier {
	return &RailVerifier{id: id, secret: signingSecret}
}

func (v *RailVerifier) Provider() domain.ProviderID { return v.id }

type railEvent struct {
	EventID      string          `json:"event_id"`
	Type         string          `json:"type"`
	Reference    string          `json:"reference"`
	EndToEndID   string          `json:"end_to_end_id"`
	Status       string          `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	ReasonDetail string          `json:"reason"`
}

func (v *RailVerifier) VerifyAndParse(payload []byte, headers http.Header) (*NormalizedEvent, error) {
	if !checkHMAC(sha256.New, v.secret, payload, headers.Get("X-Signature")) {
		return nil, invalidSignature(v.id, "signature mismatch")
	}

	var body railEvent
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, malformed(v.id, err)
	}
	if body.EventID == "" {
		return nil, malformed(v.id, fmt.Errorf("missing event_id"))
	}

	ev := &NormalizedEvent{
		Provider:          v.id,
		EventID:           body.EventID,
		Type:              body.Type,
		ProviderReference: body.Reference,
		IntentReference:   body.EndToEndID,
		Status:            provider.RailStatus(body.Status),
		Amount:            body.Amount,
		Currency:          domain.NormalizeCurrency(body.Currency),
		Raw:               payload,
	}
	if ev.Status == domain.IntentStatusFailed {
		ev.FailureReason = body.ReasonDetail
	}
	return ev, nil
}
