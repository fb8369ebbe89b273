// Package routing picks the payment provider for a transaction.
//
// Selection is a filter followed by an additive score. A provider is
// eligible when it supports the currency and country, the amount is inside
// its [min, max] range and its circuit breaker is not open. Eligible
// providers collect points; the highest total wins and ties keep the
// provider that appears first in registry order.
package routing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"payvost/internal/domain"
	"payvost/internal/provider"
	"payvost/pkg/errors"
)

const (
	DomesticBonus  = 30
	MethodBonus    = 20
	PreferredBonus = 50
)

type RouteRequest struct {
	Amount            decimal.Decimal      `json:"amount" validate:"required"`
	Currency          domain.Currency      `json:"currency" validate:"required,iso4217"`
	Country           domain.CountryCode   `json:"country" validate:"required,iso3166_1_alpha2"`
	PaymentMethod     domain.PaymentMethod `json:"payment_method" validate:"payment_method"`
	PreferredProvider domain.ProviderID    `json:"preferred_provider,omitempty"`

	// Adjustments carries admin priority overrides, added to the score of
	// eligible providers.
	Adjustments map[domain.ProviderID]int `json:"-"`
}

// Evaluation is one provider's outcome in a routing pass.
type Evaluation struct {
	Provider   domain.ProviderID `json:"provider"`
	Eligible   bool              `json:"eligible"`
	Score      int               `json:"score"`
	Reasons    []string          `json:"reasons,omitempty"`
	SkipReason string            `json:"skip_reason,omitempty"`
}

type Decision struct {
	Provider   provider.Provider `json:"-"`
	ProviderID domain.ProviderID `json:"provider"`
	Score      int               `json:"score"`
	Reason     string            `json:"reason"`
	Candidates []Evaluation      `json:"candidates"`
}

type bonusRule struct {
	provider   domain.ProviderID
	currencies []domain.Currency
	country    domain.CountryCode
	method     domain.PaymentMethod
	points     int
}

func (r bonusRule) applies(req RouteRequest) bool {
	if len(r.currencies) > 0 {
		found := false
		for _, c := range r.currencies {
			if c == req.Currency {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.country != "" && r.country != req.Country {
		return false
	}
	if r.method != "" && r.method != req.PaymentMethod {
		return false
	}
	return true
}

func (r bonusRule) label() string {
	var parts []string
	for _, c := range r.currencies {
		parts = append(parts, string(c))
	}
	if r.country != "" {
		parts = append(parts, string(r.country))
	}
	if r.method != "" {
		parts = append(parts, string(r.method))
	}
	return fmt.Sprintf("%s +%d", strings.Join(parts, "/"), r.points)
}

var bonusRules = []bonusRule{
	{provider: domain.ProviderStripe, currencies: []domain.Currency{domain.USD, domain.EUR, domain.GBP}, points: 15},
	{provider: domain.ProviderStripe, method: domain.PaymentMethodCard, points: 5},
	{provider: domain.ProviderPaystack, currencies: []domain.Currency{domain.NGN}, points: 25},
	{provider: domain.ProviderPaystack, currencies: []domain.Currency{domain.GHS}, points: 10},
	{provider: domain.ProviderFlutterwave, currencies: []domain.Currency{domain.KES, domain.UGX, domain.GHS}, points: 15},
	{provider: domain.ProviderFlutterwave, currencies: []domain.Currency{domain.NGN}, points: 5},
	{provider: domain.ProviderSEPA, currencies: []domain.Currency{domain.EUR}, points: 25},
	{provider: domain.ProviderFedNow, currencies: []domain.Currency{domain.USD}, country: "US", points: 25},
}

// skipReason returns why p cannot serve req, or "" when it is eligible.
func skipReason(p provider.Provider, req RouteRequest) string {
	caps := p.Capabilities()
	switch {
	case !caps.SupportsCurrency(req.Currency):
		return "currency not supported"
	case !caps.SupportsCountry(req.Country):
		return "country not supported"
	case req.Amount.LessThan(caps.MinAmount):
		return "amount below minimum " + caps.MinAmount.String()
	case req.Amount.GreaterThan(caps.MaxAmount):
		return "amount above maximum " + caps.MaxAmount.String()
	}
	if a, ok := p.(provider.Availability); ok && !a.Available() {
		return "circuit breaker open"
	}
	return ""
}

func score(p provider.Provider, req RouteRequest) (int, []string) {
	caps := p.Capabilities()
	total := 0
	var reasons []string

	if caps.IsDomestic(req.Country) {
		total += DomesticBonus
		reasons = append(reasons, fmt.Sprintf("domestic +%d", DomesticBonus))
	}
	if req.PaymentMethod != "" && caps.SupportsMethod(req.PaymentMethod) {
		total += MethodBonus
		reasons = append(reasons, fmt.Sprintf("method %s +%d", req.PaymentMethod, MethodBonus))
	}
	for _, rule := range bonusRules {
		if rule.provider == p.ID() && rule.applies(req) {
			total += rule.points
			reasons = append(reasons, rule.label())
		}
	}
	if req.PreferredProvider != "" && req.PreferredProvider == p.ID() {
		total += PreferredBonus
		reasons = append(reasons, fmt.Sprintf("preferred +%d", PreferredBonus))
	}
	if adj := req.Adjustments[p.ID()]; adj != 0 {
		total += adj
		reasons = append(reasons, fmt.Sprintf("override %+d", adj))
	}
	return total, reasons
}

// DetermineOptimalProvider evaluates candidates in order and returns the
// winner. When nothing is eligible the returned decision still lists every
// evaluation, alongside ErrNoEligibleProvider.
func DetermineOptimalProvider(req RouteRequest, candidates []provider.Provider) (*Decision, error) {
	decision := &Decision{Candidates: make([]Evaluation, 0, len(candidates))}
	winner := -1

	for _, p := range candidates {
		eval := Evaluation{Provider: p.ID()}
		if reason := skipReason(p, req); reason != "" {
			eval.SkipReason = reason
			decision.Candidates = append(decision.Candidates, eval)
			continue
		}

		eval.Eligible = true
		eval.Score, eval.Reasons = score(p, req)

		// Strictly greater keeps the earliest provider on a tie.
		if winner < 0 || eval.Score > decision.Score {
			winner = len(decision.Candidates)
			decision.Provider = p
			decision.ProviderID = p.ID()
			decision.Score = eval.Score
		}
		decision.Candidates = append(decision.Candidates, eval)
	}

	if winner < 0 {
		decision.Reason = "no provider supports this currency, country and amount"
		return decision, errors.Wrap(errors.ErrNoEligibleProvider,
			fmt.Sprintf("%s %s in %s", req.Amount.String(), req.Currency, req.Country))
	}

	decision.Reason = strings.Join(decision.Candidates[winner].Reasons, ", ")
	if decision.Reason == "" {
		decision.Reason = "first eligible provider"
	}
	return decision, nil
}
