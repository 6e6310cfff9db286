package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ingress/pkg/config"
)

// RealtimeMetrics tracks WebSocket tunnels.
//
// Metrics:
//   - <ns>_<sub>_realtime_connections_active
//   - <ns>_<sub>_realtime_messages_total{direction}
//   - <ns>_<sub>_realtime_bytes_total{direction}
type RealtimeMetrics struct {
	active   prometheus.Gauge
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
}

// NewRealtimeMetrics creates and registers tunnel metrics.
func NewRealtimeMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RealtimeMetrics {
	rm := &RealtimeMetrics{
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "realtime_connections_active",
				Help:      "Number of open realtime tunnels",
			},
		),

		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "realtime_messages_total",
				Help:      "Total number of relayed WebSocket messages by direction",
			},
			[]string{"direction"},
		),

		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "realtime_bytes_total",
				Help:      "Total payload bytes relayed over WebSocket tunnels by direction",
			},
			[]string{"direction"},
		),
	}

	registry.MustRegister(rm.active, rm.messages, rm.bytes)

	return rm
}

// Opened increments the active gauge.
func (rm *RealtimeMetrics) Opened() {
	rm.active.Inc()
}

// Closed decrements the active gauge.
func (rm *RealtimeMetrics) Closed() {
	rm.active.Dec()
}

// RecordMessage counts one message and its payload size.
func (rm *RealtimeMetrics) RecordMessage(direction string, size int) {
	rm.messages.WithLabelValues(direction).Inc()
	if size > 0 {
		rm.bytes.WithLabelValues(direction).Add(float64(size))
	}
}
