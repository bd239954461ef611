// Package metrics exposes the Prometheus instruments shared across the
// daemon. Instruments are registered on the default registry and served by
// the ops endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts calls to the market data provider by endpoint
	// and outcome ("ok", "error").
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knightd_upstream_requests_total",
		Help: "Market data provider requests by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	// UpstreamLatency observes provider request durations.
	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "knightd_upstream_latency_seconds",
		Help:    "Market data provider request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// CacheHits counts reads served from a fresh cache entry, by cache key.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knightd_cache_hits_total",
		Help: "Cache reads answered without an upstream fetch.",
	}, []string{"key"})

	// CacheMisses counts reads that required an upstream fetch, by cache key.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knightd_cache_misses_total",
		Help: "Cache reads that went to the upstream.",
	}, []string{"key"})

	// StaleServes counts responses answered from an expired cache entry after
	// an upstream failure.
	StaleServes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knightd_cache_stale_serves_total",
		Help: "Responses served from an expired cache entry.",
	}, []string{"key"})

	// Forecasts counts forecast requests by engine ("heuristic", "delegate")
	// and outcome ("ok", "error").
	Forecasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knightd_forecasts_total",
		Help: "Forecast requests by engine and outcome.",
	}, []string{"engine", "outcome"})

	// EvaluationCycles counts alert evaluation sweeps.
	EvaluationCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "knightd_alert_evaluation_cycles_total",
		Help: "Completed alert evaluation sweeps.",
	})

	// AlertsTriggered counts alerts that crossed their threshold.
	AlertsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "knightd_alerts_triggered_total",
		Help: "Alerts that crossed their threshold and were deactivated.",
	})

	// Notifications counts delivery attempts by channel ("email", "telegram")
	// and outcome ("ok", "error", "skipped").
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knightd_notifications_total",
		Help: "Notification delivery attempts by channel and outcome.",
	}, []string{"channel", "outcome"})
)
