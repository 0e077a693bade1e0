package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingrelay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lingrelay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingrelay_rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter",
		},
		[]string{"path", "reason"}, // "limit" or "blacklist"
	)

	// Relay metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lingrelay_sessions_active",
			Help: "Open relay sessions",
		},
	)

	SessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lingrelay_sessions_total",
			Help: "Total relay sessions opened",
		},
	)

	UpgradeRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingrelay_upgrade_rejected_total",
			Help: "Total rejected upgrade requests",
		},
		[]string{"reason"}, // "not_upgrade", "missing_token", "invalid_token", "upgrade_failed"
	)

	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingrelay_frames_total",
			Help: "Total inbound frames by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	StoreFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingrelay_store_failures_total",
			Help: "Total message store failures",
		},
		[]string{"op"}, // "history", "insert", "mark_read"
	)

	// Infrastructure metrics
	ChangeFeedConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lingrelay_changefeed_connected",
			Help: "1 if the last connectivity probe succeeded",
		},
	)
)

// RecordProbe stores the outcome of a connectivity probe.
func RecordProbe(connected bool) {
	if connected {
		ChangeFeedConnected.Set(1)
		return
	}
	ChangeFeedConnected.Set(0)
}
