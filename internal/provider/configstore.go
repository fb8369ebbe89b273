package provider

import (
	"context"
	"time"

	"github.com/google/uuid"
	"payvost/internal/domain"
	"payvost/pkg/cache"
	"payvost/pkg/errors"
	"payvost/pkg/logger"
)

// ConfigRepository persists provider_configs rows.
type ConfigRepository interface {
	GetProviderConfig(ctx context.Context, id domain.ProviderID) (*domain.ProviderConfig, error)
	ListProviderConfigs(ctx context.Context) ([]*domain.ProviderConfig, error)
	UpsertProviderConfig(ctx context.Context, cfg *domain.ProviderConfig) error
}

// Cache is the subset of pkg/cache used for config lookups.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

// ConfigStore reads provider configs through a Redis cache.
type ConfigStore struct {
	repo   ConfigRepository
	cache  Cache
	ttl    time.Duration
	logger logger.Logger
}

func NewConfigStore(repo ConfigRepository, c Cache, ttl time.Duration, log logger.Logger) *ConfigStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ConfigStore{repo: repo, cache: c, ttl: ttl, logger: log}
}

func cacheKey(id domain.ProviderID) string {
	return "provider_config:" + string(id)
}

// Get returns the stored config, or an enabled default when none exists.
func (s *ConfigStore) Get(ctx context.Context, id domain.ProviderID) (*domain.ProviderConfig, error) {
	if s.cache != nil {
		var cached domain.ProviderConfig
		err := s.cache.Get(ctx, cacheKey(id), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("Provider config cache read failed", map[string]interface{}{
				"provider": id,
				"error":    err.Error(),
			})
		}
	}

	cfg, err := s.repo.GetProviderConfig(ctx, id)
	if err != nil {
		if !errors.Is(err, errors.ErrProviderNotFound) {
			return nil, err
		}
		cfg = &domain.ProviderConfig{Provider: id, Enabled: true}
	}

	s.store(ctx, cfg)
	return cfg, nil
}

func (s *ConfigStore) List(ctx context.Context) ([]*domain.ProviderConfig, error) {
	return s.repo.ListProviderConfigs(ctx)
}

// Update persists an admin change and drops the cached copy.
func (s *ConfigStore) Update(ctx context.Context, id domain.ProviderID, enabled bool, priority int, updatedBy *uuid.UUID) (*domain.ProviderConfig, error) {
	cfg := &domain.ProviderConfig{
		Provider:         id,
		Enabled:          enabled,
		PriorityOverride: priority,
		UpdatedBy:        updatedBy,
		UpdatedAt:        time.Now().UTC(),
	}
	if err := s.repo.UpsertProviderConfig(ctx, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to save provider config")
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
			s.logger.Warn("Provider config cache invalidation failed", map[string]interface{}{
				"provider": id,
				"error":    err.Error(),
			})
		}
	}

	s.logger.Info("Provider config updated", map[string]interface{}{
		"provider":          id,
		"enabled":           enabled,
		"priority_override": priority,
	})
	return cfg, nil
}

func (s *ConfigStore) store(ctx context.Context, cfg *domain.ProviderConfig) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(cfg.Provider), cfg, s.ttl); err != nil {
		s.logger.Warn("Provider config cache write failed", map[string]interface{}{
			"provider": cfg.Provider,
			"error":    err.Error(),
		})
	}
}
