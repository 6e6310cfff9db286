package config

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/ingress/pkg/routing"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "upstream.url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It is the gateway's configuration error: the process must not start.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateCredentials(&cfg.Credentials)...)
	errs = append(errs, validateRoutes(cfg.Routes)...)
	errs = append(errs, validateCORS(&cfg.CORS)...)
	errs = append(errs, validateRealtime(&cfg.Realtime)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateSecurity(&cfg.Security)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates listener configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, FieldError{
			Field:   "server.port",
			Message: fmt.Sprintf("port %d out of range [1, 65535]", cfg.Port),
		})
	}

	timeouts := map[string]int64{
		"server.read_header_timeout": int64(cfg.ReadHeaderTimeout),
		"server.read_timeout":        int64(cfg.ReadTimeout),
		"server.write_timeout":       int64(cfg.WriteTimeout),
		"server.idle_timeout":        int64(cfg.IdleTimeout),
		"server.shutdown_timeout":    int64(cfg.ShutdownTimeout),
	}
	for _, field := range slices.Sorted(maps.Keys(timeouts)) {
		if timeouts[field] < 0 {
			errs = append(errs, FieldError{Field: field, Message: "must not be negative"})
		}
	}

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.MaxHeaderBytes > 10*1024*1024 { // 10MB is excessive
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes exceeds reasonable limit (10MB)",
		})
	}

	return errs
}

// validateUpstream validates the backend origin.
func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	if cfg.URL == "" {
		errs = append(errs, FieldError{
			Field:   "upstream.url",
			Message: "upstream URL is required (set SUPABASE_URL)",
		})
	} else {
		u, err := url.Parse(cfg.URL)
		switch {
		case err != nil:
			errs = append(errs, FieldError{
				Field:   "upstream.url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, FieldError{
				Field:   "upstream.url",
				Message: "URL must use the http or https scheme",
			})
		case u.Host == "":
			errs = append(errs, FieldError{
				Field:   "upstream.url",
				Message: "URL must include a host",
			})
		case u.RawQuery != "" || u.Fragment != "":
			errs = append(errs, FieldError{
				Field:   "upstream.url",
				Message: "URL must not include a query or fragment",
			})
		}
	}

	if cfg.ConnectTimeout < 0 {
		errs = append(errs, FieldError{Field: "upstream.connect_timeout", Message: "must not be negative"})
	}
	if cfg.TLSHandshakeTimeout < 0 {
		errs = append(errs, FieldError{Field: "upstream.tls_handshake_timeout", Message: "must not be negative"})
	}
	if cfg.ResponseHeaderTimeout < 0 {
		errs = append(errs, FieldError{Field: "upstream.response_header_timeout", Message: "must not be negative"})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{Field: "upstream.max_idle_conns", Message: "must not be negative"})
	}

	return errs
}

// validateCredentials requires the service key.
func validateCredentials(cfg *CredentialsConfig) []FieldError {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return []FieldError{{
			Field:   "credentials.api_key",
			Message: "service API key is required (set SUPABASE_ANON_KEY)",
		}}
	}
	return nil
}

// validateRoutes builds a throwaway route table to reuse its checks.
func validateRoutes(routes []RouteConfig) []FieldError {
	if _, err := routing.NewTable(RouteEntries(routes)); err != nil {
		return []FieldError{{Field: "routes", Message: err.Error()}}
	}
	return nil
}

// RouteEntries converts route configuration into routing entries.
func RouteEntries(routes []RouteConfig) []routing.Entry {
	entries := make([]routing.Entry, 0, len(routes))
	for _, r := range routes {
		entries = append(entries, routing.Entry{
			Prefix:        r.Prefix,
			RewritePrefix: r.RewritePrefix,
			Upgrade:       r.Upgrade,
		})
	}
	return entries
}

// validateCORS validates the cross-origin policy.
func validateCORS(cfg *CORSConfig) []FieldError {
	var errs []FieldError

	if len(cfg.AllowedOrigins) == 0 {
		errs = append(errs, FieldError{
			Field:   "cors.allowed_origins",
			Message: "at least one allowed origin is required (use \"*\" to allow all)",
		})
	}
	for i, origin := range cfg.AllowedOrigins {
		field := fmt.Sprintf("cors.allowed_origins[%d]", i)
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			continue
		}
		if origin == "" {
			errs = append(errs, FieldError{Field: field, Message: "origin must not be empty"})
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" || (u.Path != "" && u.Path != "/") {
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("origin %q must be scheme://host[:port]", origin),
			})
			continue
		}
		if strings.HasSuffix(origin, "/") {
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("origin %q must not end with a slash", origin),
			})
		}
	}

	if cfg.MaxAge < 0 || cfg.MaxAge > 7*24*60*60 {
		errs = append(errs, FieldError{
			Field:   "cors.max_age",
			Message: "max age must be between 0 and 604800 seconds",
		})
	}

	return errs
}

// validateRealtime validates tunnel limits.
func validateRealtime(cfg *RealtimeConfig) []FieldError {
	var errs []FieldError
	if cfg.MaxMessageBytes == 0 || cfg.MaxMessageBytes < -1 {
		errs = append(errs, FieldError{
			Field:   "realtime.max_message_bytes",
			Message: "max message bytes must be positive, or -1 for no limit",
		})
	}
	if cfg.HandshakeTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "realtime.handshake_timeout",
			Message: "must not be negative",
		})
	}
	return errs
}

// validateTelemetry validates logging, metrics and health settings.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		if p.Pattern == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: "pattern is required",
			})
		}
	}

	paths := map[string]string{
		"telemetry.health.liveness_path":  cfg.Health.LivenessPath,
		"telemetry.health.readiness_path": cfg.Health.ReadinessPath,
		"telemetry.health.probe_path":     cfg.Health.ProbePath,
	}
	if cfg.Metrics.Enabled {
		paths["telemetry.metrics.path"] = cfg.Metrics.Path
	}
	for _, field := range slices.Sorted(maps.Keys(paths)) {
		p := paths[field]
		if !strings.HasPrefix(p, "/") || p == "/" {
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("path %q must start with / and must not be the root", p),
			})
		}
	}

	if cfg.Health.ProbeSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Health.ProbeSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.probe_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	if cfg.Health.CheckTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "must not be negative",
		})
	}

	return errs
}

// validateSecurity validates TLS termination settings.
func validateSecurity(cfg *SecurityConfig) []FieldError {
	var errs []FieldError

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{
				Field:   "security.tls.cert_file",
				Message: "TLS certificate file is required when TLS is enabled",
			})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{
				Field:   "security.tls.key_file",
				Message: "TLS key file is required when TLS is enabled",
			})
		}
	}

	if v := cfg.TLS.MinVersion; v != "" && v != "1.2" && v != "1.3" {
		errs = append(errs, FieldError{
			Field:   "security.tls.min_version",
			Message: fmt.Sprintf("unsupported TLS version %q: must be '1.2' or '1.3'", v),
		})
	}

	return errs
}
