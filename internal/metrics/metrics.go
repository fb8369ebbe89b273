// Package metrics registers the Prometheus collectors shared by the payment
// and webhook services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payvost_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payvost_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payvost_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Routing metrics
	routingDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payvost_routing_decisions_total",
		Help: "Provider routing decisions",
	}, []string{
		"provider", // winning provider, "none" when nothing was eligible
		"currency",
	})

	// Ledger metrics
	ledgerCreditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payvost_ledger_credits_total",
		Help: "Ledger credit attempts by outcome",
	}, []string{
		"source",
		"outcome", // applied, duplicate, rejected
	})

	ledgerDebitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payvost_ledger_debits_total",
		Help: "Ledger debit attempts by outcome",
	}, []string{
		"source",
		"outcome",
	})

	// Webhook metrics
	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payvost_webhook_events_total",
		Help: "Inbound provider webhook events",
	}, []string{
		"provider",
		"status", // processed, ignored, failed, duplicate, rejected
	})

	providerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payvost_provider_calls_total",
		Help: "Outbound provider API calls",
	}, []string{
		"provider",
		"operation",
		"status",
	})

	providerBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "payvost_provider_breaker_state",
		Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
	}, []string{"provider"})
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest records one completed request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func IncInFlight() { httpRequestsInFlight.Inc() }
func DecInFlight() { httpRequestsInFlight.Dec() }

func RecordRoutingDecision(provider, currency string) {
	routingDecisionsTotal.WithLabelValues(provider, currency).Inc()
}

func RecordLedgerCredit(source, outcome string) {
	ledgerCreditsTotal.WithLabelValues(source, outcome).Inc()
}

func RecordLedgerDebit(source, outcome string) {
	ledgerDebitsTotal.WithLabelValues(source, outcome).Inc()
}

func RecordWebhookEvent(provider, status string) {
	webhookEventsTotal.WithLabelValues(provider, status).Inc()
}

func RecordProviderCall(provider, operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	providerCallsTotal.WithLabelValues(provider, operation, status).Inc()
}

// SetBreakerState stores the numeric breaker state for a provider.
func SetBreakerState(provider string, state int) {
	providerBreakerState.WithLabelValues(provider).Set(float64(state))
}
