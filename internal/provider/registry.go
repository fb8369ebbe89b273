package provider

import (
	"context"
	"fmt"
	"sync"

	"payvost/internal/domain"
	"payvost/pkg/errors"
	"payvost/pkg/logger"
)

// ConfigSource reports admin overrides for providers.
type ConfigSource interface {
	Get(ctx context.Context, id domain.ProviderID) (*domain.ProviderConfig, error)
}

// Registry holds providers in tie-break order.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	index     map[domain.ProviderID]Provider
	configs   ConfigSource
	logger    logger.Logger
}

func NewRegistry(configs ConfigSource, log logger.Logger) *Registry {
	return &Registry{
		index:   make(map[domain.ProviderID]Provider),
		configs: configs,
		logger:  log,
	}
}

// Register appends p; registration order is the routing tie-break order.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[p.ID()]; exists {
		return fmt.Errorf("provider %s already registered", p.ID())
	}
	r.providers = append(r.providers, p)
	r.index[p.ID()] = p
	return nil
}

func (r *Registry) Get(id domain.ProviderID) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.index[id]
	if !ok {
		return nil, errors.Wrap(errors.ErrProviderNotFound, string(id))
	}
	return p, nil
}

func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// Enabled returns the providers not switched off by an admin override, in
// registry order. A provider without a stored config is enabled.
func (r *Registry) Enabled(ctx context.Context) []Provider {
	all := r.List()
	if r.configs == nil {
		return all
	}

	out := make([]Provider, 0, len(all))
	for _, p := range all {
		cfg, err := r.configs.Get(ctx, p.ID())
		if err != nil {
			// Unknown state keeps the provider in rotation.
			r.logger.Warn("Failed to load provider config", map[string]interface{}{
				"provider": p.ID(),
				"error":    err.Error(),
			})
			out = append(out, p)
			continue
		}
		if cfg == nil || cfg.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// Overrides returns the admin priority adjustments keyed by provider.
func (r *Registry) Overrides(ctx context.Context) map[domain.ProviderID]int {
	out := make(map[domain.ProviderID]int)
	if r.configs == nil {
		return out
	}
	for _, p := range r.List() {
		cfg, err := r.configs.Get(ctx, p.ID())
		if err != nil || cfg == nil || cfg.PriorityOverride == 0 {
			continue
		}
		out[p.ID()] = cfg.PriorityOverride
	}
	return out
}
