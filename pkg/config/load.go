package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// An empty path yields the defaults. It applies default values, validates
// the configuration, and returns any errors. Environment variables are not
// consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from an optional YAML file
// and applies environment variable overrides.
//
// The loading sequence is:
// 1. Start from Default and decode the file on top, if a path is given
// 2. Apply the deployment variables (SUPABASE_URL, SUPABASE_ANON_KEY,
// ENABLE_LOGGING, PORT, HOST)
// 3. Apply GATEWAY_* variables, which win over the deployment ones
// 4. Validate the final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	envErrs := applyEnvOverrides(cfg, os.LookupEnv)
	ApplyDefaults(cfg)

	err = Validate(cfg)
	if len(envErrs) > 0 {
		var verr ValidationError
		if errors.As(err, &verr) {
			envErrs = append(envErrs, verr.Errors...)
		}
		err = ValidationError{Errors: envErrs}
	}
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile decodes path on top of the defaults.
func loadFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// envOverrides applies typed environment overrides and records parse
// failures as field errors.
type envOverrides struct {
	lookup lookupFunc
	errs   []FieldError
}

func (e *envOverrides) get(key string) (string, bool) {
	val, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	val = strings.TrimSpace(val)
	return val, val != ""
}

func (e *envOverrides) str(key string, dst *string) {
	if val, ok := e.get(key); ok {
		*dst = val
	}
}

func (e *envOverrides) list(key string, dst *[]string) {
	val, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e *envOverrides) integer(key string, dst *int) {
	val, ok := e.get(key)
	if !ok {
		return
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		e.fail(key, "must be an integer")
		return
	}
	*dst = i
}

func (e *envOverrides) boolean(key string, dst *bool) {
	val, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		e.fail(key, "must be a boolean")
		return
	}
	*dst = b
}

func (e *envOverrides) duration(key string, dst *time.Duration) {
	val, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		e.fail(key, "must be a duration such as 30s")
		return
	}
	*dst = d
}

func (e *envOverrides) fail(key, msg string) {
	e.errs = append(e.errs, FieldError{Field: "env." + key, Message: msg})
}

// applyEnvOverrides applies environment variable overrides to the
// configuration and returns the variables that could not be parsed.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) []FieldError {
	e := &envOverrides{lookup: lookup}

	// Deployment variables
	e.str("SUPABASE_URL", &cfg.Upstream.URL)
	e.str("SUPABASE_ANON_KEY", &cfg.Credentials.APIKey)
	e.str("HOST", &cfg.Server.Host)
	e.integer("PORT", &cfg.Server.Port)
	// Logging is only on when ENABLE_LOGGING is exactly true.
	if val, ok := e.get("ENABLE_LOGGING"); ok {
		cfg.Telemetry.Logging.Enabled = val == "true"
	}

	// Server overrides
	e.str("GATEWAY_HOST", &cfg.Server.Host)
	e.integer("GATEWAY_PORT", &cfg.Server.Port)
	e.duration("GATEWAY_READ_HEADER_TIMEOUT", &cfg.Server.ReadHeaderTimeout)
	e.duration("GATEWAY_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	e.str("GATEWAY_LIVENESS_MESSAGE", &cfg.Server.LivenessMessage)

	// Upstream overrides
	e.str("GATEWAY_UPSTREAM_URL", &cfg.Upstream.URL)
	e.duration("GATEWAY_UPSTREAM_CONNECT_TIMEOUT", &cfg.Upstream.ConnectTimeout)
	e.duration("GATEWAY_UPSTREAM_RESPONSE_HEADER_TIMEOUT", &cfg.Upstream.ResponseHeaderTimeout)

	// Credential overrides
	e.str("GATEWAY_API_KEY", &cfg.Credentials.APIKey)
	e.str("GATEWAY_BEARER_TOKEN", &cfg.Credentials.BearerToken)

	// CORS overrides
	e.list("GATEWAY_CORS_ALLOWED_ORIGINS", &cfg.CORS.AllowedOrigins)
	e.list("GATEWAY_CORS_ALLOWED_METHODS", &cfg.CORS.AllowedMethods)
	e.list("GATEWAY_CORS_ALLOWED_HEADERS", &cfg.CORS.AllowedHeaders)
	e.list("GATEWAY_CORS_EXPOSED_HEADERS", &cfg.CORS.ExposedHeaders)
	e.boolean("GATEWAY_CORS_ALLOW_CREDENTIALS", &cfg.CORS.AllowCredentials)
	e.integer("GATEWAY_CORS_MAX_AGE", &cfg.CORS.MaxAge)

	// Telemetry overrides
	e.boolean("GATEWAY_LOG_ENABLED", &cfg.Telemetry.Logging.Enabled)
	e.str("GATEWAY_LOG_LEVEL", &cfg.Telemetry.Logging.Level)
	e.str("GATEWAY_LOG_FORMAT", &cfg.Telemetry.Logging.Format)
	e.boolean("GATEWAY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	e.str("GATEWAY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	e.str("GATEWAY_PROBE_SCHEDULE", &cfg.Telemetry.Health.ProbeSchedule)

	// Security overrides
	e.boolean("GATEWAY_TLS_ENABLED", &cfg.Security.TLS.Enabled)
	e.str("GATEWAY_TLS_CERT_FILE", &cfg.Security.TLS.CertFile)
	e.str("GATEWAY_TLS_KEY_FILE", &cfg.Security.TLS.KeyFile)
	e.str("GATEWAY_SECRETS_DIR", &cfg.Security.Secrets.Dir)

	return e.errs
}
