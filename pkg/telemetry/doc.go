// Package telemetry groups the gateway's observability packages.
//
// # Components
//
//   - logging: structured slog logging with credential redaction
//   - metrics: Prometheus request, upstream and realtime metrics
//   - health: liveness and readiness endpoints fed by a scheduled upstream probe
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, creds.Secrets()...))
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("upstream", prober.Check)
package telemetry
