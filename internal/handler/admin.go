package handler

import (
	"context"
	"net/http"
	"time"

	"payvost/internal/domain"
	"payvost/internal/ledger"
	"payvost/internal/middleware"
	"payvost/internal/provider"
	"payvost/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ProviderRegistry interface {
	List() []provider.Provider
	Get(id domain.ProviderID) (provider.Provider, error)
}

type ProviderConfigs interface {
	Get(ctx context.Context, id domain.ProviderID) (*domain.ProviderConfig, error)
	Update(ctx context.Context, id domain.ProviderID, enabled bool, priority int, updatedBy *uuid.UUID) (*domain.ProviderConfig, error)
}

type RoutingAnalytics interface {
	Analytics(ctx context.Context, since time.Time) (*domain.RoutingStats, error)
}

type ChainVerifier interface {
	VerifyChain(ctx context.Context, walletID uuid.UUID) (*ledger.ChainReport, error)
}

// AdminHandler exposes provider controls, routing analytics and the live feed.
type AdminHandler struct {
	base
	registry  ProviderRegistry
	configs   ProviderConfigs
	analytics RoutingAnalytics
	chain     ChainVerifier
	feed      http.Handler
}

func NewAdminHandler(registry ProviderRegistry, configs ProviderConfigs, analytics RoutingAnalytics, chain ChainVerifier, feed http.Handler, log logger.Logger) *AdminHandler {
	return &AdminHandler{
		base:      base{logger: log},
		registry:  registry,
		configs:   configs,
		analytics: analytics,
		chain:     chain,
		feed:      feed,
	}
}

type providerView struct {
	Provider         domain.ProviderID     `json:"provider"`
	Enabled          bool                  `json:"enabled"`
	PriorityOverride int                   `json:"priority_override"`
	Available        bool                  `json:"available"`
	BreakerState     string                `json:"breaker_state,omitempty"`
	Capabilities     provider.Capabilities `json:"capabilities"`
	UpdatedAt        *time.Time            `json:"updated_at,omitempty"`
}

func (h *AdminHandler) view(ctx context.Context, p provider.Provider) (*providerView, error) {
	cfg, err := h.configs.Get(ctx, p.ID())
	if err != nil {
		return nil, err
	}
	v := &providerView{
		Provider:         p.ID(),
		Enabled:          cfg.Enabled,
		PriorityOverride: cfg.PriorityOverride,
		Available:        true,
		Capabilities:     p.Capabilities(),
	}
	if !cfg.UpdatedAt.IsZero() {
		v.UpdatedAt = &cfg.UpdatedAt
	}
	if a, ok := p.(provider.Availability); ok {
		v.Available = a.Available()
	}
	if s, ok := p.(interface{ State() string }); ok {
		v.BreakerState = s.State()
	}
	return v, nil
}

func (h *AdminHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers := h.registry.List()
	out := make([]*providerView, 0, len(providers))
	for _, p := range providers {
		v, err := h.view(r.Context(), p)
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		out = append(out, v)
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"providers": out})
}

type updateProviderRequest struct {
	Enabled          *bool `json:"enabled"`
	PriorityOverride *int  `json:"priority_override"`
}

// UpdateProvider toggles a provider or changes its priority override. Fields
// left out of the body keep their current value.
func (h *AdminHandler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	id := domain.ProviderID(mux.Vars(r)["provider"])
	p, err := h.registry.Get(id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var req updateProviderRequest
	if msg, ok := decodeJSON(r, &req); !ok {
		h.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if req.PriorityOverride != nil && (*req.PriorityOverride < -100 || *req.PriorityOverride > 100) {
		h.respondError(w, http.StatusBadRequest, "priority_override must be between -100 and 100")
		return
	}

	current, err := h.configs.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	enabled, priority := current.Enabled, current.PriorityOverride
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	if req.PriorityOverride != nil {
		priority = *req.PriorityOverride
	}

	var updatedBy *uuid.UUID
	if adminID, ok := middleware.UserIDFromContext(r.Context()); ok {
		updatedBy = &adminID
	}

	if _, err := h.configs.Update(r.Context(), id, enabled, priority, updatedBy); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.logger.Info("Provider updated by admin", map[string]interface{}{
		"provider":   id,
		"enabled":    enabled,
		"priority":   priority,
		"request_id": middleware.RequestIDFromContext(r.Context()),
	})

	v, err := h.view(r.Context(), p)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, v)
}

// RoutingAnalytics reports routing volume per provider. since is RFC 3339 and
// defaults to the last 24 hours.
func (h *AdminHandler) RoutingAnalytics(w http.ResponseWriter, r *http.Request) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "Invalid since parameter")
			return
		}
		since = t
	}

	stats, err := h.analytics.Analytics(r.Context(), since)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	walletID, err := uuid.Parse(mux.Vars(r)["wallet_id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid wallet ID")
		return
	}

	report, err := h.chain.VerifyChain(r.Context(), walletID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, report)
}

// Feed upgrades to a websocket that streams payment events.
func (h *AdminHandler) Feed(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		h.respondError(w, http.StatusServiceUnavailable, "Live feed disabled")
		return
	}
	h.feed.ServeHTTP(w, r)
}
