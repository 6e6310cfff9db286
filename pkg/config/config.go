package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration structure for the ingress gateway.
// It is loaded once at startup and passed by value into constructors;
// nothing reads it after the server is built.
type Config struct {
	// Server contains the listener configuration of the front door.
	Server ServerConfig `yaml:"server"`

	// Upstream describes the single backend origin all routes forward to.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Credentials holds the service secret injected into upstream requests.
	Credentials CredentialsConfig `yaml:"credentials"`

	// Routes is the prefix table. An empty list means the five default
	// sub-API prefixes.
	Routes []RouteConfig `yaml:"routes"`

	// CORS contains the cross-origin policy.
	CORS CORSConfig `yaml:"cors"`

	// Realtime contains WebSocket tunnel settings.
	Realtime RealtimeConfig `yaml:"realtime"`

	// Telemetry contains configuration for logging, metrics and health.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Security contains TLS termination settings.
	Security SecurityConfig `yaml:"security"`
}

// ServerConfig contains configuration for the HTTP listener.
type ServerConfig struct {
	// Host is the interface to bind.
	// Default: "0.0.0.0"
	Host string `yaml:"host"`

	// Port is the TCP port to bind.
	// Default: 3000
	Port int `yaml:"port"`

	// ReadHeaderTimeout bounds the time to read request headers.
	// Default: 10s
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Zero means no timeout, which large storage uploads need.
	// Default: 0
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response.
	// Zero means no timeout, which streamed responses need.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// requests on shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// LivenessMessage is returned by GET / as {"message": "..."}.
	// Default: "Gateway is running!"
	LivenessMessage string `yaml:"liveness_message"`
}

// Address returns the host:port listen address.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// UpstreamConfig contains configuration for the backend origin.
type UpstreamConfig struct {
	// URL is the absolute http(s) origin of the backend platform.
	// Required. Env: SUPABASE_URL or GATEWAY_UPSTREAM_URL.
	URL string `yaml:"url"`

	// ConnectTimeout bounds TCP connection establishment.
	// Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// TLSHandshakeTimeout bounds the TLS handshake with the upstream.
	// Default: 10s
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout"`

	// ResponseHeaderTimeout bounds the wait for upstream response headers
	// once the request has been written. Edge functions can take a while.
	// Default: 150s
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`

	// IdleConnTimeout closes idle pooled connections.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`

	// MaxIdleConns limits the idle connection pool.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// CredentialsConfig holds the service secret.
type CredentialsConfig struct {
	// APIKey is sent in the apikey header of every upstream request.
	// Required. Env: SUPABASE_ANON_KEY or GATEWAY_API_KEY.
	APIKey string `yaml:"api_key"`

	// BearerToken is sent as "Authorization: Bearer <token>".
	// Default: APIKey
	BearerToken string `yaml:"bearer_token"`
}

// RouteConfig is one prefix of the route table.
type RouteConfig struct {
	// Prefix is the inbound path prefix, e.g. "/rest/v1".
	Prefix string `yaml:"prefix"`

	// RewritePrefix replaces Prefix on the upstream. Default: Prefix.
	RewritePrefix string `yaml:"rewrite_prefix"`

	// Upgrade allows WebSocket upgrades on this prefix.
	Upgrade bool `yaml:"upgrade"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// AllowedOrigins lists browser origins allowed to call the gateway.
	// ["*"] allows every origin. Required.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is returned on preflight.
	// Default: ["GET", "HEAD", "PUT", "PATCH", "POST", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is returned on preflight.
	// Default: ["Content-Type", "Authorization", "apikey"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is returned on ordinary responses when non-empty.
	// Default: none
	ExposedHeaders []string `yaml:"exposed_headers"`

	// AllowCredentials sends Access-Control-Allow-Credentials: true.
	// Default: true
	AllowCredentials bool `yaml:"allow_credentials"`

	// MaxAge is the preflight cache lifetime in seconds.
	// Default: 86400 (24 hours)
	MaxAge int `yaml:"max_age"`
}

// RealtimeConfig contains WebSocket tunnel configuration.
type RealtimeConfig struct {
	// MaxMessageBytes is the per-message read limit on both legs. A larger
	// message closes both legs with status 1009. -1 disables the limit.
	// Default: 104857600 (100MB)
	MaxMessageBytes int64 `yaml:"max_message_bytes"`

	// HandshakeTimeout bounds the upstream WebSocket handshake.
	// Default: 10s
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Enabled turns request and server logging on.
	// Default: false. Env: ENABLE_LOGGING.
	Enabled bool `yaml:"enabled"`

	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// Redact masks credentials and bearer tokens in log fields.
	// Default: true
	Redact bool `yaml:"redact"`

	// RedactPatterns contains additional redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path of the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "ingress"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "gateway"
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets defines histogram buckets in seconds.
	// Default: [0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path of the liveness probe.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path of the readiness probe.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// ProbePath is the upstream path requested by the readiness prober.
	// Default: "/auth/v1/health"
	ProbePath string `yaml:"probe_path"`

	// ProbeSchedule is a cron expression for the upstream probe. Empty
	// disables probing and the gateway always reports ready.
	// Default: "@every 30s"
	ProbeSchedule string `yaml:"probe_schedule"`

	// CheckTimeout bounds a single probe.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	// TLS contains TLS termination settings.
	TLS TLSConfig `yaml:"tls"`

	// Secrets resolves ${secret:name} references in the credentials.
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretsConfig configures where credential references are looked up.
// Sources are tried in order: the directory, then the environment.
type SecretsConfig struct {
	// Dir holds one file per secret, named after the secret, as mounted by
	// container orchestrators. Empty disables the file source.
	Dir string `yaml:"dir"`

	// EnvPrefix is prepended to the upper-cased secret name to form the
	// environment variable name ("anon-key" -> "GATEWAY_SECRET_ANON_KEY").
	// Default: "GATEWAY_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`
}

// TLSConfig contains TLS configuration.
type TLSConfig struct {
	// Enabled serves HTTPS instead of plain HTTP.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the PEM certificate chain.
	// Required when Enabled is true.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM private key.
	// Required when Enabled is true.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the minimum TLS version ("1.2" or "1.3").
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`

	// CipherSuites restricts TLS 1.2 cipher suites. Empty uses Go's defaults.
	CipherSuites []string `yaml:"cipher_suites"`

	// Watch reloads the certificate when the files change on disk.
	// Default: true
	Watch bool `yaml:"watch"`
}
