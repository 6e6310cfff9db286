package config

import (
	"time"

	"mercator-hq/ingress/pkg/routing"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 3000
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMaxHeaderBytes    = 1048576 // 1MB
	DefaultLivenessMessage   = "Gateway is running!"

	// Upstream defaults
	DefaultConnectTimeout        = 10 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 150 * time.Second
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultMaxIdleConns          = 100

	// CORS defaults
	DefaultCORSAllowCredentials = true
	DefaultCORSMaxAge           = 86400 // 24 hours

	// Realtime defaults
	DefaultMaxMessageBytes  = int64(100 << 20) // 100MB
	DefaultHandshakeTimeout = 10 * time.Second

	// Telemetry defaults
	DefaultLoggingEnabled = false
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultLoggingRedact  = true
	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"
	DefaultNamespace      = "ingress"
	DefaultSubsystem      = "gateway"
	DefaultLivenessPath   = "/health"
	DefaultReadinessPath  = "/ready"
	DefaultProbePath      = "/auth/v1/health"
	DefaultProbeSchedule  = "@every 30s"
	DefaultCheckTimeout   = 5 * time.Second

	// Security defaults
	DefaultTLSMinVersion = "1.2"
	DefaultTLSWatch      = true

	DefaultSecretEnvPrefix = "GATEWAY_SECRET_"
)

// DefaultCORSMethods are the methods announced on preflight.
var DefaultCORSMethods = []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE", "OPTIONS"}

// DefaultCORSHeaders are the request headers announced on preflight.
var DefaultCORSHeaders = []string{"Content-Type", "Authorization", "apikey"}

// DefaultRequestDurationBuckets are the request duration histogram buckets.
var DefaultRequestDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Default returns a Config with every default applied, including the
// boolean settings that default to true. YAML documents are decoded on top
// of it so that omitted booleans keep their defaults.
func Default() *Config {
	cfg := &Config{
		CORS: CORSConfig{
			AllowCredentials: DefaultCORSAllowCredentials,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Enabled: DefaultLoggingEnabled,
				Redact:  DefaultLoggingRedact,
			},
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
			},
			Health: HealthConfig{
				ProbeSchedule: DefaultProbeSchedule,
			},
		},
		Security: SecurityConfig{
			TLS: TLSConfig{
				Watch: DefaultTLSWatch,
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// DefaultRoutes returns the five sub-API routes. Only realtime upgrades.
func DefaultRoutes() []RouteConfig {
	entries := routing.DefaultEntries()
	routes := make([]RouteConfig, 0, len(entries))
	for _, e := range entries {
		routes = append(routes, RouteConfig{
			Prefix:        e.Prefix,
			RewritePrefix: e.RewritePrefix,
			Upgrade:       e.Upgrade,
		})
	}
	return routes
}

// ApplyDefaults sets defaults for any fields that have zero values.
// Booleans are left alone since false is a valid explicit setting; use
// Default for a fully populated starting point.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.LivenessMessage == "" {
		cfg.Server.LivenessMessage = DefaultLivenessMessage
	}

	// Upstream defaults
	if cfg.Upstream.ConnectTimeout == 0 {
		cfg.Upstream.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Upstream.TLSHandshakeTimeout == 0 {
		cfg.Upstream.TLSHandshakeTimeout = DefaultTLSHandshakeTimeout
	}
	if cfg.Upstream.ResponseHeaderTimeout == 0 {
		cfg.Upstream.ResponseHeaderTimeout = DefaultResponseHeaderTimeout
	}
	if cfg.Upstream.IdleConnTimeout == 0 {
		cfg.Upstream.IdleConnTimeout = DefaultIdleConnTimeout
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultMaxIdleConns
	}

	if len(cfg.Routes) == 0 {
		cfg.Routes = DefaultRoutes()
	}

	applyCORSDefaults(cfg)

	// Realtime defaults
	if cfg.Realtime.MaxMessageBytes == 0 {
		cfg.Realtime.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if cfg.Realtime.HandshakeTimeout == 0 {
		cfg.Realtime.HandshakeTimeout = DefaultHandshakeTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultSubsystem
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.ProbePath == "" {
		cfg.Telemetry.Health.ProbePath = DefaultProbePath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultCheckTimeout
	}

	// Security defaults
	if cfg.Security.TLS.MinVersion == "" {
		cfg.Security.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Security.Secrets.EnvPrefix == "" {
		cfg.Security.Secrets.EnvPrefix = DefaultSecretEnvPrefix
	}
}

// applyCORSDefaults fills in the preflight method and header lists.
// Allowed origins have no default: the operator must name them.
func applyCORSDefaults(cfg *Config) {
	cors := &cfg.CORS

	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = append([]string(nil), DefaultCORSMethods...)
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = append([]string(nil), DefaultCORSHeaders...)
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = DefaultCORSMaxAge
	}
}
