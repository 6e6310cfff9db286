// Package metrics provides Prometheus metrics for the gateway.
//
// # Metrics
//
//   - requests_total{route,method,code}: every exchange, preflights included
//   - request_duration_seconds{route}: time spent in the gateway
//   - preflight_total{decision}: preflight decisions
//   - upstream_errors_total{route,kind}: failed upstream exchanges
//   - upstream_up: result of the last readiness probe
//   - realtime_connections_active: open WebSocket tunnels
//   - realtime_messages_total{direction}, realtime_bytes_total{direction}
//
// Names are prefixed with the configured namespace and subsystem
// ("ingress_gateway_" by default). The route label is always a configured
// prefix or "unmatched", so cardinality is bounded by the route table.
//
// # Usage
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	collector.RecordRequest("/rest/v1", "GET", 200, elapsed)
//	mux.Handle("GET /metrics", collector.Handler())
package metrics
