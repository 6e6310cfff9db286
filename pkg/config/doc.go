// Package config loads and validates the gateway configuration.
//
// Configuration comes from an optional YAML file and from environment
// variables. The deployment variables of the platform are understood as is:
//
//	SUPABASE_URL        upstream.url
//	SUPABASE_ANON_KEY   credentials.api_key (and the bearer token)
//	ENABLE_LOGGING      telemetry.logging.enabled ("true" turns logging on)
//	PORT, HOST          server.port, server.host
//
// Namespaced GATEWAY_* variables (GATEWAY_UPSTREAM_URL, GATEWAY_API_KEY,
// GATEWAY_CORS_ALLOWED_ORIGINS, ...) override the deployment variables.
//
// # Usage
//
//	cfg, err := config.LoadConfigWithEnvOverrides("gateway.yaml")
//	if err != nil {
//	    var verr config.ValidationError
//	    if errors.As(err, &verr) {
//	        // print verr.Errors and exit
//	    }
//	}
//
// The returned *Config is treated as immutable. Components receive the
// sections they need through their constructors.
//
// # Required settings
//
// The upstream URL, the service API key and at least one allowed CORS
// origin must be set. Missing any of them is a [ValidationError] and the
// process does not start.
package config
