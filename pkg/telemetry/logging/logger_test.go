package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid JSON config",
			config: Config{Enabled: true, Level: "info", Format: "json", Redact: true},
		},
		{
			name:   "valid text config",
			config: Config{Enabled: true, Level: "debug", Format: "text"},
		},
		{
			name:   "disabled",
			config: Config{Enabled: false},
		},
		{
			name:    "invalid log level",
			config:  Config{Enabled: true, Level: "invalid", Format: "json"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			config:  Config{Enabled: true, Level: "info", Format: "invalid"},
			wantErr: true,
		},
		{
			name:    "invalid level is rejected even when disabled",
			config:  Config{Enabled: false, Level: "loud"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Writer = &bytes.Buffer{}
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Enabled: false, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Error("should not appear")
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}
	if logger.Enabled(slog.LevelError) {
		t.Error("disabled logger reports error level enabled")
	}
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Enabled: true, Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info message written at warn level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("warn message missing")
	}
}

func TestLogger_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{
		Enabled: true,
		Format:  "json",
		Redact:  true,
		Secrets: []string{"service-secret-key"},
		Writer:  &buf,
	})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("forwarding",
		"apikey", "service-secret-key",
		"authorization", "Bearer abc.def",
		"path", "/realtime/v1/websocket?apikey=xyz&vsn=1.0.0",
		"note", "key is service-secret-key",
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, buf.String())
	}

	if entry["apikey"] != Mask {
		t.Errorf("apikey = %v, want %s", entry["apikey"], Mask)
	}
	if entry["authorization"] != Mask {
		t.Errorf("authorization = %v, want %s", entry["authorization"], Mask)
	}
	if got := entry["path"]; got != "/realtime/v1/websocket?apikey=***&vsn=1.0.0" {
		t.Errorf("path = %v", got)
	}
	if strings.Contains(buf.String(), "service-secret-key") {
		t.Errorf("secret leaked: %s", buf.String())
	}
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Enabled: true, Format: "json", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = WithRoute(ctx, "/rest/v1")
	logger.InfoContext(ctx, "request completed", "status", 200)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if entry["request_id"] != "req-123" || entry["route"] != "/rest/v1" {
		t.Errorf("context fields missing: %v", entry)
	}
}

func TestLogger_StdLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Enabled: true, Format: "text", Redact: true, Secrets: []string{"topsecret"}, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.StdLogger(slog.LevelError).Printf("http: TLS handshake error with key topsecret\n")

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") {
		t.Errorf("missing level: %s", out)
	}
	if strings.Contains(out, "topsecret") {
		t.Errorf("secret leaked: %s", out)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Info("nothing")
	logger.With("k", "v").ErrorContext(context.Background(), "still nothing")
}
