package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ingress/pkg/config"
)

// UpstreamMetrics tracks the health of the backend origin.
//
// Metrics:
//   - <ns>_<sub>_upstream_errors_total{route,kind}
//   - <ns>_<sub>_upstream_up (1 healthy, 0 unhealthy)
type UpstreamMetrics struct {
	errorsTotal *prometheus.CounterVec
	up          prometheus.Gauge
}

// NewUpstreamMetrics creates and registers upstream metrics.
func NewUpstreamMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *UpstreamMetrics {
	um := &UpstreamMetrics{
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_errors_total",
				Help:      "Total number of failed upstream exchanges by route and failure kind",
			},
			[]string{"route", "kind"},
		),

		up: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_up",
				Help:      "Result of the last upstream readiness probe (1 = healthy, 0 = unhealthy)",
			},
		),
	}

	registry.MustRegister(um.errorsTotal, um.up)

	return um
}

// RecordError increments the error counter.
func (um *UpstreamMetrics) RecordError(route, kind string) {
	um.errorsTotal.WithLabelValues(route, kind).Inc()
}

// UpdateHealth sets the health gauge.
func (um *UpstreamMetrics) UpdateHealth(healthy bool) {
	if healthy {
		um.up.Set(1)
		return
	}
	um.up.Set(0)
}
