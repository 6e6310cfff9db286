package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SUPABASE_URL", "SUPABASE_ANON_KEY", "ENABLE_LOGGING", "PORT", "HOST",
		"GATEWAY_HOST", "GATEWAY_PORT", "GATEWAY_UPSTREAM_URL", "GATEWAY_API_KEY",
		"GATEWAY_BEARER_TOKEN", "GATEWAY_CORS_ALLOWED_ORIGINS", "GATEWAY_LOG_ENABLED",
		"GATEWAY_LOG_LEVEL", "GATEWAY_UPSTREAM_CONNECT_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
  liveness_message: "proxy up"
upstream:
  url: "https://project.example.co"
  connect_timeout: "3s"
credentials:
  api_key: "anon-key"
cors:
  allowed_origins: ["http://localhost:5173", "https://app.example.com"]
  exposed_headers: ["Content-Range"]
  allow_credentials: false
telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.LivenessMessage != "proxy up" {
		t.Errorf("expected liveness message %q, got %q", "proxy up", cfg.Server.LivenessMessage)
	}
	if cfg.Upstream.ConnectTimeout != 3*time.Second {
		t.Errorf("expected connect timeout 3s, got %v", cfg.Upstream.ConnectTimeout)
	}
	if cfg.CORS.AllowCredentials {
		t.Error("explicit allow_credentials: false was overridden by the default")
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Errorf("expected 2 origins, got %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Telemetry.Logging.Enabled {
		t.Error("logging.enabled should stay off when omitted")
	}
	if cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("expected text format, got %q", cfg.Telemetry.Logging.Format)
	}
	if len(cfg.Routes) != 5 {
		t.Errorf("expected the 5 default routes, got %d", len(cfg.Routes))
	}
}

func TestLoadConfig_FileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeConfig(t, "server: [unclosed")
		if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "parse") {
			t.Errorf("expected parse error, got %v", err)
		}
	})

	t.Run("missing required settings", func(t *testing.T) {
		_, err := LoadConfig("")
		var verr ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		fields := map[string]bool{}
		for _, fe := range verr.Errors {
			fields[fe.Field] = true
		}
		for _, want := range []string{"upstream.url", "credentials.api_key", "cors.allowed_origins"} {
			if !fields[want] {
				t.Errorf("expected error for %s, got %v", want, verr.Errors)
			}
		}
	})
}

func TestLoadConfigWithEnvOverrides_DeploymentVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUPABASE_URL", "https://abc.example.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("PORT", "4000")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("ENABLE_LOGGING", "yes")
	t.Setenv("GATEWAY_CORS_ALLOWED_ORIGINS", "http://localhost:5173, https://app.example.com")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Upstream.URL != "https://abc.example.co" {
		t.Errorf("upstream.url = %q", cfg.Upstream.URL)
	}
	if cfg.Credentials.APIKey != "anon" {
		t.Errorf("api_key = %q", cfg.Credentials.APIKey)
	}
	if cfg.Server.Address() != "127.0.0.1:4000" {
		t.Errorf("address = %q", cfg.Server.Address())
	}
	if cfg.Telemetry.Logging.Enabled {
		t.Error("ENABLE_LOGGING=yes should disable logging; only \"true\" enables it")
	}
	if got := cfg.CORS.AllowedOrigins; len(got) != 2 || got[1] != "https://app.example.com" {
		t.Errorf("allowed_origins = %v", got)
	}
}

func TestLoadConfigWithEnvOverrides_LoggingOffByDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUPABASE_URL", "https://abc.example.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("GATEWAY_CORS_ALLOWED_ORIGINS", "*")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Telemetry.Logging.Enabled {
		t.Error("logging should be off without ENABLE_LOGGING=true")
	}
}

func TestLoadConfigWithEnvOverrides_Precedence(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
upstream:
  url: "https://file.example.co"
credentials:
  api_key: "file-key"
cors:
  allowed_origins: ["*"]
`)
	t.Setenv("SUPABASE_URL", "https://legacy.example.co")
	t.Setenv("GATEWAY_UPSTREAM_URL", "https://namespaced.example.co")
	t.Setenv("SUPABASE_ANON_KEY", "legacy-key")
	t.Setenv("ENABLE_LOGGING", "true")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Upstream.URL != "https://namespaced.example.co" {
		t.Errorf("upstream.url = %q, want the GATEWAY_ value", cfg.Upstream.URL)
	}
	if cfg.Credentials.APIKey != "legacy-key" {
		t.Errorf("api_key = %q, want the environment value over the file", cfg.Credentials.APIKey)
	}
	if !cfg.Telemetry.Logging.Enabled {
		t.Error("ENABLE_LOGGING=true should enable logging")
	}
}

func TestLoadConfigWithEnvOverrides_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUPABASE_URL", "https://abc.example.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("GATEWAY_CORS_ALLOWED_ORIGINS", "*")
	t.Setenv("PORT", "not-a-port")
	t.Setenv("GATEWAY_UPSTREAM_CONNECT_TIMEOUT", "ten")

	_, err := LoadConfigWithEnvOverrides("")
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %v", verr.Errors)
	}
	if verr.Errors[0].Field != "env.PORT" {
		t.Errorf("first error field = %q, want env.PORT", verr.Errors[0].Field)
	}
}

func TestLoadConfig_ExampleFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "examples", "config.yaml"))
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Credentials.APIKey != "${secret:anon-key}" {
		t.Errorf("api key reference = %q, want it kept for resolution", cfg.Credentials.APIKey)
	}
	if cfg.Security.Secrets.EnvPrefix != DefaultSecretEnvPrefix {
		t.Errorf("env prefix = %q", cfg.Security.Secrets.EnvPrefix)
	}
	if len(cfg.Routes) != 5 {
		t.Errorf("routes = %d, want the 5 defaults", len(cfg.Routes))
	}
}
