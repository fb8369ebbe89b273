package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"payvost/internal/domain"
	"payvost/pkg/errors"
)

type RoutingRepository struct {
	db *sqlx.DB
}

func NewRoutingRepository(db *sqlx.DB) *RoutingRepository {
	return &RoutingRepository{db: db}
}

func (r *RoutingRepository) CreateRoutingDecision(ctx context.Context, d *domain.RoutingDecision) error {
	query := `
		INSERT INTO routing_decisions (
			id, intent_reference, provider, score, amount, currency, country, candidates, reason, created_at
		) VALUES (
			:id, :intent_reference, :provider, :score, :amount, :currency, :country, :candidates, :reason, :created_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, d)
	return errors.Wrap(err, "failed to insert routing decision")
}

func (r *RoutingRepository) ProviderVolumes(ctx context.Context, since time.Time) ([]*domain.ProviderVolume, error) {
	var volumes []*domain.ProviderVolume
	query := `
		SELECT provider, currency, COUNT(*) AS decisions, COALESCE(SUM(amount), 0) AS volume
		FROM routing_decisions
		WHERE created_at >= $1
		GROUP BY provider, currency
		ORDER BY provider, currency
	`
	if err := r.db.SelectContext(ctx, &volumes, query, since); err != nil {
		return nil, errors.Wrap(err, "failed to aggregate routing decisions")
	}
	return volumes, nil
}

func (r *RoutingRepository) IntentOutcomes(ctx context.Context, since time.Time) (*domain.RoutingStats, error) {
	stats := &domain.RoutingStats{}
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'succeeded') AS succeeded,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			COUNT(*) FILTER (WHERE status IN ('requires_payment', 'processing')) AS pending
		FROM payment_intents
		WHERE created_at >= $1
	`
	if err := r.db.GetContext(ctx, stats, query, since); err != nil {
		return nil, errors.Wrap(err, "failed to aggregate intent outcomes")
	}
	return stats, nil
}
