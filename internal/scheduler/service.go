// Package scheduler runs the periodic reconciliation of payment intents whose
// provider callback never arrived.
package scheduler

import (
	"context"
	"sync"
	"time"

	"payvost/internal/domain"
	"payvost/pkg/config"
	"payvost/pkg/logger"
)

type IntentLister interface {
	ListStale(ctx context.Context, status domain.IntentStatus, cutoff time.Time, limit int) ([]*domain.PaymentIntent, error)
}

// Refresher polls the provider for one intent and applies the answer.
type Refresher interface {
	Refresh(ctx context.Context, intent *domain.PaymentIntent) (*domain.PaymentIntent, error)
}

// Scheduler syncs processing intents that have gone quiet for longer than
// StaleAfter.
type Scheduler struct {
	intents   IntentLister
	refresher Refresher
	cfg       config.ReconcileConfig
	logger    logger.Logger

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func NewScheduler(intents IntentLister, refresher Refresher, cfg config.ReconcileConfig, log logger.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Scheduler{
		intents:   intents,
		refresher: refresher,
		cfg:       cfg,
		logger:    log,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
				s.RunOnce(ctx)
				cancel()
			case <-s.stop:
				ticker.Stop()
				return
			}
		}
	}()
	s.logger.Info("Reconciliation scheduler started", map[string]interface{}{
		"interval":    s.cfg.Interval.String(),
		"stale_after": s.cfg.StaleAfter.String(),
	})
}

// Stop waits for an in-progress pass to finish.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

// RunOnce reconciles one batch and returns how many intents changed status.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-s.cfg.StaleAfter)
	intents, err := s.intents.ListStale(ctx, domain.IntentStatusProcessing, cutoff, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("Failed to list stale intents", map[string]interface{}{"error": err.Error()})
		return 0
	}

	changed := 0
	for _, intent := range intents {
		if ctx.Err() != nil {
			break
		}
		updated, err := s.refresher.Refresh(ctx, intent)
		if err != nil {
			s.logger.Warn("Intent reconciliation failed", map[string]interface{}{
				"reference": intent.Reference,
				"provider":  intent.Provider,
				"error":     err.Error(),
			})
			continue
		}
		if updated.Status != intent.Status {
			changed++
			s.logger.Info("Intent reconciled", map[string]interface{}{
				"reference": intent.Reference,
				"from":      intent.Status,
				"to":        updated.Status,
			})
		}
	}
	return changed
}
