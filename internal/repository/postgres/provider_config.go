package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"payvost/internal/domain"
	"payvost/pkg/errors"
)

type ProviderConfigRepository struct {
	db *sqlx.DB
}

func NewProviderConfigRepository(db *sqlx.DB) *ProviderConfigRepository {
	return &ProviderConfigRepository{db: db}
}

func (r *ProviderConfigRepository) GetProviderConfig(ctx context.Context, id domain.ProviderID) (*domain.ProviderConfig, error) {
	cfg := &domain.ProviderConfig{}
	err := r.db.GetContext(ctx, cfg, `SELECT * FROM provider_configs WHERE provider = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrProviderNotFound
		}
		return nil, errors.Wrap(err, "failed to find provider config")
	}
	return cfg, nil
}

func (r *ProviderConfigRepository) ListProviderConfigs(ctx context.Context) ([]*domain.ProviderConfig, error) {
	var cfgs []*domain.ProviderConfig
	if err := r.db.SelectContext(ctx, &cfgs, `SELECT * FROM provider_configs ORDER BY provider`); err != nil {
		return nil, errors.Wrap(err, "failed to list provider configs")
	}
	return cfgs, nil
}

func (r *ProviderConfigRepository) UpsertProviderConfig(ctx context.Context, cfg *domain.ProviderConfig) error {
	query := `
		INSERT INTO provider_configs (provider, enabled, priority_override, updated_by, updated_at)
		VALUES (:provider, :enabled, :priority_override, :updated_by, :updated_at)
		ON CONFLICT (provider) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			priority_override = EXCLUDED.priority_override,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.NamedExecContext(ctx, query, cfg)
	return errors.Wrap(err, "failed to upsert provider config")
}
