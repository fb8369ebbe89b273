package routing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"payvost/internal/domain"
	"payvost/internal/provider"
	"payvost/pkg/config"
	pkgerrors "payvost/pkg/errors"
)

func allProviders() []provider.Provider {
	return []provider.Provider{
		provider.NewStripeProvider("sk_test"),
		provider.NewPaystackProvider(config.PaystackConfig{BaseURL: "http://paystack.invalid"}, config.BreakerConfig{}),
		provider.NewFlutterwaveProvider(config.FlutterwaveConfig{BaseURL: "http://flutterwave.invalid"}, config.BreakerConfig{}),
		provider.NewSEPAProvider(),
		provider.NewFedNowProvider(),
	}
}

func req(amount string, cur domain.Currency, country domain.CountryCode, method domain.PaymentMethod) RouteRequest {
	return RouteRequest{
		Amount:        decimal.RequireFromString(amount),
		Currency:      cur,
		Country:       country,
		PaymentMethod: method,
	}
}

func TestDetermineOptimalProvider(t *testing.T) {
	tests := []struct {
		name      string
		req       RouteRequest
		want      domain.ProviderID
		wantScore int
	}{
		{
			name:      "nigerian card goes to paystack",
			req:       req("5000", domain.NGN, "NG", domain.PaymentMethodCard),
			want:      domain.ProviderPaystack,
			wantScore: 75,
		},
		{
			name:      "kenyan mobile money goes to flutterwave",
			req:       req("1000", domain.KES, "KE", domain.PaymentMethodMobileMoney),
			want:      domain.ProviderFlutterwave,
			wantScore: 65,
		},
		{
			name:      "german bank transfer goes to sepa",
			req:       req("100", domain.EUR, "DE", domain.PaymentMethodBankTransfer),
			want:      domain.ProviderSEPA,
			wantScore: 75,
		},
		{
			name:      "us instant payment goes to fednow",
			req:       req("100", domain.USD, "US", domain.PaymentMethodInstantPayment),
			want:      domain.ProviderFedNow,
			wantScore: 75,
		},
		{
			name:      "us card goes to stripe",
			req:       req("100", domain.USD, "US", domain.PaymentMethodCard),
			want:      domain.ProviderStripe,
			wantScore: 70,
		},
		{
			name:      "fednow maximum is inclusive",
			req:       req("500000", domain.USD, "US", domain.PaymentMethodInstantPayment),
			want:      domain.ProviderFedNow,
			wantScore: 75,
		},
		{
			name:      "above fednow maximum falls back to stripe",
			req:       req("500000.01", domain.USD, "US", domain.PaymentMethodInstantPayment),
			want:      domain.ProviderStripe,
			wantScore: 45,
		},
		{
			name:      "below stripe minimum falls back to fednow",
			req:       req("0.49", domain.USD, "US", domain.PaymentMethodCard),
			want:      domain.ProviderFedNow,
			wantScore: 55,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := DetermineOptimalProvider(tt.req, allProviders())
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.ProviderID)
			assert.Equal(t, tt.want, d.Provider.ID())
			assert.Equal(t, tt.wantScore, d.Score)
			assert.Len(t, d.Candidates, 5)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestDetermineOptimalProvider_PreferredProvider(t *testing.T) {
	r := req("100", domain.USD, "US", domain.PaymentMethodCard)
	r.PreferredProvider = domain.ProviderFedNow

	d, err := DetermineOptimalProvider(r, allProviders())
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderFedNow, d.ProviderID)
	assert.Equal(t, 105, d.Score)
}

func TestDetermineOptimalProvider_IneligiblePreferenceIgnored(t *testing.T) {
	r := req("5000", domain.NGN, "NG", domain.PaymentMethodCard)
	r.PreferredProvider = domain.ProviderSEPA

	d, err := DetermineOptimalProvider(r, allProviders())
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderPaystack, d.ProviderID)
}

func TestDetermineOptimalProvider_TieKeepsRegistryOrder(t *testing.T) {
	// paystack scores 60 for a Ghanaian card; flutterwave scores 35 and the
	// override lifts it level.
	r := req("200", domain.GHS, "GH", domain.PaymentMethodCard)
	r.Adjustments = map[domain.ProviderID]int{domain.ProviderFlutterwave: 25}

	d, err := DetermineOptimalProvider(r, allProviders())
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderPaystack, d.ProviderID)
	assert.Equal(t, 60, d.Score)

	var flw Evaluation
	for _, c := range d.Candidates {
		if c.Provider == domain.ProviderFlutterwave {
			flw = c
		}
	}
	assert.Equal(t, 60, flw.Score)

	// Reversing the candidate order flips the winner.
	reversed := allProviders()
	reversed[1], reversed[2] = reversed[2], reversed[1]
	d, err = DetermineOptimalProvider(r, reversed)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderFlutterwave, d.ProviderID)
}

func TestDetermineOptimalProvider_NoEligibleProvider(t *testing.T) {
	d, err := DetermineOptimalProvider(req("100", "JPY", "JP", domain.PaymentMethodCard), allProviders())

	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrNoEligibleProvider))
	require.NotNil(t, d)
	assert.Nil(t, d.Provider)
	require.Len(t, d.Candidates, 5)
	for _, c := range d.Candidates {
		assert.False(t, c.Eligible)
		assert.Equal(t, "currency not supported", c.SkipReason)
	}
}

func TestDetermineOptimalProvider_NoCandidates(t *testing.T) {
	_, err := DetermineOptimalProvider(req("100", domain.USD, "US", ""), nil)
	assert.True(t, errors.Is(err, pkgerrors.ErrNoEligibleProvider))
}

type unavailable struct {
	provider.Provider
}

func (unavailable) Available() bool { return false }

func TestDetermineOptimalProvider_SkipsOpenBreaker(t *testing.T) {
	candidates := allProviders()
	candidates[4] = unavailable{candidates[4]}

	d, err := DetermineOptimalProvider(req("100", domain.USD, "US", domain.PaymentMethodInstantPayment), candidates)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStripe, d.ProviderID)
	assert.Equal(t, "circuit breaker open", d.Candidates[4].SkipReason)
}

func TestDetermineOptimalProvider_AmountOutOfRangeReason(t *testing.T) {
	d, err := DetermineOptimalProvider(req("0.001", domain.EUR, "FR", domain.PaymentMethodBankTransfer), allProviders())
	require.Error(t, err)
	assert.Contains(t, d.Candidates[3].SkipReason, "below minimum")
}
