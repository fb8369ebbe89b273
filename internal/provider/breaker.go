package provider

import (
	"context"
	stderrors "errors"

	"github.com/sony/gobreaker"
	"payvost/internal/metrics"
	"payvost/pkg/config"
	"payvost/pkg/errors"
	"payvost/pkg/logger"
)

// Guarded wraps a provider's remote calls in a circuit breaker.
type Guarded struct {
	Provider
	cb *gobreaker.CircuitBreaker
}

// WithBreaker trips after cfg.MaxFailures consecutive failures and probes
// again after cfg.Timeout.
func WithBreaker(p Provider, cfg config.BreakerConfig, log logger.Logger) *Guarded {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	g := &Guarded{Provider: p}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(p.ID()),
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about provider health.
			return err == nil || stderrors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(name, int(to))
			log.Warn("Provider circuit breaker state changed", map[string]interface{}{
				"provider": name,
				"from":     from.String(),
				"to":       to.String(),
			})
		},
	})
	metrics.SetBreakerState(string(p.ID()), int(gobreaker.StateClosed))
	return g
}

// Available is false while the breaker is open.
func (g *Guarded) Available() bool {
	return g.cb.State() != gobreaker.StateOpen
}

func (g *Guarded) State() string {
	return g.cb.State().String()
}

func (g *Guarded) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResult, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.Provider.CreatePayment(ctx, req)
	})
	metrics.RecordProviderCall(string(g.ID()), "create_payment", err)
	if err != nil {
		return nil, g.mapErr(err)
	}
	return res.(*CreatePaymentResult), nil
}

func (g *Guarded) GetPaymentStatus(ctx context.Context, providerReference string) (*PaymentStatus, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.Provider.GetPaymentStatus(ctx, providerReference)
	})
	metrics.RecordProviderCall(string(g.ID()), "get_payment_status", err)
	if err != nil {
		return nil, g.mapErr(err)
	}
	return res.(*PaymentStatus), nil
}

func (g *Guarded) mapErr(err error) error {
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Wrap(errors.ErrProviderUnavailable, string(g.ID()))
	}
	return err
}
