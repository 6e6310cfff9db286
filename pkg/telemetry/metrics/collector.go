package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/ingress/pkg/config"
)

// Collector owns every Prometheus metric of the gateway. It manages
// registration and provides one method per event the gateway records.
//
// All methods are safe on a nil *Collector and on a disabled one, so
// components never need to check whether metrics are configured.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics  *RequestMetrics
	upstreamMetrics *UpstreamMetrics
	realtimeMetrics *RealtimeMetrics
}

// NewCollector creates a collector with the specified configuration and
// Prometheus registry. If registry is nil, a fresh registry with the Go
// runtime and process collectors is created.
//
// Example:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	mux.Handle("GET /metrics", collector.Handler())
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultSubsystem
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = config.DefaultRequestDurationBuckets
	}

	return &Collector{
		config:          cfg,
		registry:        registry,
		requestMetrics:  NewRequestMetrics(&cfg, registry),
		upstreamMetrics: NewUpstreamMetrics(&cfg, registry),
		realtimeMetrics: NewRealtimeMetrics(&cfg, registry),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// Enabled reports whether the collector records anything.
func (c *Collector) Enabled() bool {
	return c.enabled()
}

// RecordRequest records a completed HTTP exchange.
//
// Parameters:
//   - route: matched route prefix, or "unmatched"
//   - method: request method
//   - code: response status code sent to the client
//   - duration: total time spent in the gateway
func (c *Collector) RecordRequest(route, method string, code int, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.requestMetrics.RecordRequest(route, normalizeMethod(method), strconv.Itoa(code), duration)
}

// RecordPreflight records a preflight decision ("allow" or "reject").
func (c *Collector) RecordPreflight(decision string) {
	if !c.enabled() {
		return
	}
	c.requestMetrics.RecordPreflight(decision)
}

// RecordUpstreamError records a failed upstream exchange.
//
// Parameters:
//   - route: matched route prefix
//   - kind: failure kind ("unreachable", "timeout", "stream", "handshake")
func (c *Collector) RecordUpstreamError(route, kind string) {
	if !c.enabled() {
		return
	}
	c.upstreamMetrics.RecordError(route, kind)
}

// UpdateUpstreamHealth sets the upstream health gauge from the readiness probe.
func (c *Collector) UpdateUpstreamHealth(healthy bool) {
	if !c.enabled() {
		return
	}
	c.upstreamMetrics.UpdateHealth(healthy)
}

// RealtimeConnectionOpened increments the active tunnel gauge.
func (c *Collector) RealtimeConnectionOpened() {
	if !c.enabled() {
		return
	}
	c.realtimeMetrics.Opened()
}

// RealtimeConnectionClosed decrements the active tunnel gauge.
func (c *Collector) RealtimeConnectionClosed() {
	if !c.enabled() {
		return
	}
	c.realtimeMetrics.Closed()
}

// RecordRealtimeMessage records one relayed WebSocket message.
//
// Parameters:
//   - direction: "client_to_upstream" or "upstream_to_client"
//   - size: payload size in bytes
func (c *Collector) RecordRealtimeMessage(direction string, size int) {
	if !c.enabled() {
		return
	}
	c.realtimeMetrics.RecordMessage(direction, size)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// normalizeMethod bounds the method label to the standard methods.
func normalizeMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return method
	default:
		return "OTHER"
	}
}
