// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var OAuthCallbacks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "aerius_oauth_callbacks_total",
		Help: "OAuth callbacks by provider and outcome (success or the failed stage).",
	},
	[]string{"provider", "result"},
)

var TeamJoins = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "aerius_team_joins_total",
		Help: "Invite code joins by outcome.",
	},
	[]string{"result"},
)

var IntegrationsConnected = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "aerius_integrations_connected",
		Help: "Connected integration records per provider.",
	},
	[]string{"provider"},
)

var HttpDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "aerius_http_request_duration_seconds",
		Help: "HTTP request latency by route pattern.",
		Buckets: []float64{
			0.05,
			0.1, // 100 ms
			0.25,
			0.5,
			1,
			2.5,
			5,
			10,
			30, // provider timeout
		},
	},
	[]string{"path", "code", "method"},
)

// SetConnected replaces the connected gauge with counts. Providers absent
// from counts are reset to zero.
func SetConnected(providers []string, counts map[string]int64) {
	for _, p := range providers {
		IntegrationsConnected.WithLabelValues(p).Set(float64(counts[p]))
	}
}
