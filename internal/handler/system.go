package handler

import (
	"context"
	"net/http"
	"time"

	"payvost/pkg/logger"
)

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RedisPinger wraps a redis client ping.
type RedisPinger func(ctx context.Context) error

type SystemHandler struct {
	base
	db        Pinger
	redis     RedisPinger
	service   string
	startTime time.Time
}

func NewSystemHandler(service string, db Pinger, redis RedisPinger, log logger.Logger) *SystemHandler {
	return &SystemHandler{
		base:      base{logger: log},
		db:        db,
		redis:     redis,
		service:   service,
		startTime: time.Now(),
	}
}

type dependencyStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Health reports that the process is up.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"service":        h.service,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// Ready checks the database and redis. Any failure answers 503.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := map[string]dependencyStatus{}
	ready := true
	if h.db != nil {
		deps["database"] = h.check(ctx, "database", h.db.PingContext)
	}
	if h.redis != nil {
		deps["redis"] = h.check(ctx, "redis", h.redis)
	}
	for _, d := range deps {
		if d.Status != "up" {
			ready = false
		}
	}

	status := http.StatusOK
	overall := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		overall = "not_ready"
	}
	h.respondJSON(w, status, map[string]interface{}{
		"status":       overall,
		"service":      h.service,
		"dependencies": deps,
	})
}

func (h *SystemHandler) check(ctx context.Context, name string, ping func(context.Context) error) dependencyStatus {
	start := time.Now()
	err := ping(ctx)
	d := dependencyStatus{Status: "up", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		d.Status = "down"
		d.Error = err.Error()
		h.logger.Error("Readiness check failed", map[string]interface{}{
			"dependency": name,
			"error":      err.Error(),
		})
	}
	return d
}
