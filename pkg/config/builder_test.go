package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with a valid configuration.
func NewTestConfig() *ConfigBuilder {
	cfg := Default()
	cfg.Upstream.URL = "https://project.example.co"
	cfg.Credentials.APIKey = "anon-key"
	cfg.CORS.AllowedOrigins = []string{"http://localhost:5173"}
	return &ConfigBuilder{cfg: *cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithPort sets the listen port.
func (b *ConfigBuilder) WithPort(port int) *ConfigBuilder {
	b.cfg.Server.Port = port
	return b
}

// WithUpstream sets the upstream URL.
func (b *ConfigBuilder) WithUpstream(u string) *ConfigBuilder {
	b.cfg.Upstream.URL = u
	return b
}

// WithAPIKey sets the service key.
func (b *ConfigBuilder) WithAPIKey(key string) *ConfigBuilder {
	b.cfg.Credentials.APIKey = key
	return b
}

// WithOrigins sets the allowed CORS origins.
func (b *ConfigBuilder) WithOrigins(origins ...string) *ConfigBuilder {
	b.cfg.CORS.AllowedOrigins = origins
	return b
}

// WithRoutes sets the route table.
func (b *ConfigBuilder) WithRoutes(routes ...RouteConfig) *ConfigBuilder {
	b.cfg.Routes = routes
	return b
}

// WithConnectTimeout sets the upstream connect timeout.
func (b *ConfigBuilder) WithConnectTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.Upstream.ConnectTimeout = d
	return b
}

// WithTLS enables TLS with the given files.
func (b *ConfigBuilder) WithTLS(certFile, keyFile string) *ConfigBuilder {
	b.cfg.Security.TLS.Enabled = true
	b.cfg.Security.TLS.CertFile = certFile
	b.cfg.Security.TLS.KeyFile = keyFile
	return b
}

// MinimalConfig returns the smallest valid configuration.
func MinimalConfig() *Config {
	return NewTestConfig().Build()
}
