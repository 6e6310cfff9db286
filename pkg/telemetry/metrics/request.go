package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ingress/pkg/config"
)

// RequestMetrics tracks HTTP exchanges handled by the gateway.
//
// Metrics:
//   - <ns>_<sub>_requests_total{route,method,code}
//   - <ns>_<sub>_request_duration_seconds{route}
//   - <ns>_<sub>_preflight_total{decision}
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	preflightTotal  *prometheus.CounterVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of requests handled, by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Time from request receipt to response completion in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"route"},
		),

		preflightTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "preflight_total",
				Help:      "Total number of CORS preflight requests by decision",
			},
			[]string{"decision"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.preflightTotal,
	)

	return rm
}

// RecordRequest increments the request counter and observes the duration.
func (rm *RequestMetrics) RecordRequest(route, method, code string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(route, method, code).Inc()
	rm.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordPreflight increments the preflight counter.
func (rm *RequestMetrics) RecordPreflight(decision string) {
	rm.preflightTotal.WithLabelValues(decision).Inc()
}
