// Package metrics registers Prometheus instrumentation for the client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the client process.
type Metrics struct {
	// Outbound API requests by method and response status class.
	Requests *prometheus.CounterVec

	// Outbound request latency.
	RequestDuration prometheus.Histogram

	// Token refresh attempts by outcome ("success" / "failure").
	TokenRefreshes *prometheus.CounterVec

	// Requests replayed after a 401-triggered refresh.
	AuthRetries prometheus.Counter

	// Sessions torn down because refresh failed.
	ForcedLogouts prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers metrics on an explicit registerer, for tests.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bookden_api_requests_total",
			Help: "Total outbound API requests by method and status",
		}, []string{"method", "status"}),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookden_api_request_duration_seconds",
			Help:    "Duration of outbound API requests",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		TokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bookden_token_refresh_total",
			Help: "Total access token refresh attempts by outcome",
		}, []string{"outcome"}),
		AuthRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "bookden_auth_retries_total",
			Help: "Total requests replayed after a 401-triggered token refresh",
		}),
		ForcedLogouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "bookden_forced_logouts_total",
			Help: "Total sessions invalidated after an unrecoverable refresh failure",
		}),
	}
}

// ObserveRequest records one completed outbound request.
func (m *Metrics) ObserveRequest(method, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, status).Inc()
	m.RequestDuration.Observe(elapsed.Seconds())
}

// ObserveRefresh records one refresh attempt.
func (m *Metrics) ObserveRefresh(success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

// IncrementAuthRetries records a replayed request.
func (m *Metrics) IncrementAuthRetries() {
	if m == nil {
		return
	}
	m.AuthRetries.Inc()
}

// IncrementForcedLogouts records a forced logout.
func (m *Metrics) IncrementForcedLogouts() {
	if m == nil {
		return
	}
	m.ForcedLogouts.Inc()
}
