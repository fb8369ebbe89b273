package routing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"payvost/internal/domain"
	"payvost/internal/metrics"
	"payvost/internal/provider"
	"payvost/pkg/errors"
	"payvost/pkg/logger"
)

// ProviderSource supplies enabled providers in registry order.
type ProviderSource interface {
	Enabled(ctx context.Context) []provider.Provider
	Overrides(ctx context.Context) map[domain.ProviderID]int
}

type Repository interface {
	CreateRoutingDecision(ctx context.Context, d *domain.RoutingDecision) error
	ProviderVolumes(ctx context.Context, since time.Time) ([]*domain.ProviderVolume, error)
	IntentOutcomes(ctx context.Context, since time.Time) (*domain.RoutingStats, error)
}

type Router struct {
	providers ProviderSource
	repo      Repository
	logger    logger.Logger
}

func NewRouter(providers ProviderSource, repo Repository, log logger.Logger) *Router {
	return &Router{providers: providers, repo: repo, logger: log}
}

// Route scores the currently enabled providers.
func (r *Router) Route(ctx context.Context, req RouteRequest) (*Decision, error) {
	req.Currency = domain.NormalizeCurrency(string(req.Currency))
	req.Country = domain.NormalizeCountry(string(req.Country))
	req.Adjustments = r.providers.Overrides(ctx)

	decision, err := DetermineOptimalProvider(req, r.providers.Enabled(ctx))
	if err != nil {
		r.logger.Warn("No eligible provider", map[string]interface{}{
			"currency": req.Currency,
			"country":  req.Country,
			"amount":   req.Amount.String(),
		})
		return decision, err
	}

	r.logger.Debug("Provider selected", map[string]interface{}{
		"provider": decision.ProviderID,
		"score":    decision.Score,
		"currency": req.Currency,
		"country":  req.Country,
	})
	return decision, nil
}

// Record persists a decision taken for an intent.
func (r *Router) Record(ctx context.Context, intentReference string, req RouteRequest, d *Decision) error {
	candidates, err := json.Marshal(d.Candidates)
	if err != nil {
		return errors.Wrap(err, "failed to encode candidates")
	}

	row := &domain.RoutingDecision{
		ID:              uuid.New(),
		IntentReference: intentReference,
		Provider:        d.ProviderID,
		Score:           d.Score,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Country:         req.Country,
		Candidates:      candidates,
		Reason:          d.Reason,
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.repo.CreateRoutingDecision(ctx, row); err != nil {
		return errors.Wrap(err, "failed to record routing decision")
	}

	metrics.RecordRoutingDecision(string(d.ProviderID), string(req.Currency))
	return nil
}

// Analytics reports routed count and volume per provider since the given time.
func (r *Router) Analytics(ctx context.Context, since time.Time) (*domain.RoutingStats, error) {
	volumes, err := r.repo.ProviderVolumes(ctx, since)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load provider volumes")
	}

	stats, err := r.repo.IntentOutcomes(ctx, since)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load intent outcomes")
	}

	stats.Since = since
	stats.Providers = volumes
	return stats, nil
}
