package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestEnvProvider(t *testing.T) {
	p := &EnvProvider{
		Prefix: "GATEWAY_SECRET_",
		lookup: mapLookup(map[string]string{"GATEWAY_SECRET_ANON_KEY": "k1", "GATEWAY_SECRET_EMPTY": ""}),
	}

	got, err := p.GetSecret(context.Background(), "anon-key")
	if err != nil || got != "k1" {
		t.Errorf("GetSecret(anon-key) = %q, %v", got, err)
	}
	if _, err := p.GetSecret(context.Background(), "empty"); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty variable error = %v, want ErrNotFound", err)
	}
	if _, err := p.GetSecret(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing variable error = %v, want ErrNotFound", err)
	}
}

func writeSecret(t *testing.T, dir, name, value string, perm os.FileMode) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(value), perm); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, perm); err != nil {
		t.Fatal(err)
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "anon-key", "file-key\n", 0o600)
	writeSecret(t, dir, "loose", "x", 0o666)
	writeSecret(t, dir, "blank", "\n", 0o400)

	p, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}
	ctx := context.Background()

	if got, err := p.GetSecret(ctx, "anon-key"); err != nil || got != "file-key" {
		t.Errorf("GetSecret(anon-key) = %q, %v", got, err)
	}

	tests := []struct {
		name         string
		secret       string
		wantNotFound bool
	}{
		{name: "missing", secret: "nope", wantNotFound: true},
		{name: "traversal", secret: "../etc/passwd"},
		{name: "dot dot", secret: ".."},
		{name: "insecure permissions", secret: "loose"},
		{name: "empty", secret: "blank"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.GetSecret(ctx, tt.secret)
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrNotFound) != tt.wantNotFound {
				t.Errorf("error = %v, ErrNotFound = %v", err, tt.wantNotFound)
			}
		})
	}
}

func TestNewFileProvider_NotDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileProvider(file); err == nil {
		t.Error("NewFileProvider(file) should fail")
	}
	if _, err := NewFileProvider(filepath.Join(file, "missing")); err == nil {
		t.Error("NewFileProvider(missing) should fail")
	}
}

func TestResolver_Resolve(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "anon-key", "from-file", 0o600)
	writeSecret(t, dir, "loose", "x", 0o646)

	files, err := NewFileProvider(dir)
	if err != nil {
		t.Fatal(err)
	}
	env := &EnvProvider{
		Prefix: "GATEWAY_SECRET_",
		lookup: mapLookup(map[string]string{
			"GATEWAY_SECRET_ANON_KEY":      "from-env",
			"GATEWAY_SECRET_SERVICE_TOKEN": "tok",
		}),
	}
	r := NewResolver(files, env)
	ctx := context.Background()

	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{name: "literal", value: "plain-key", want: "plain-key"},
		{name: "file wins", value: "${secret:anon-key}", want: "from-file"},
		{name: "env fallback", value: "${secret:service-token}", want: "tok"},
		{name: "embedded", value: "pre-${secret: service-token }-post", want: "pre-tok-post"},
		{name: "missing", value: "${secret:nope}", wantErr: true},
		{name: "provider failure stops lookup", value: "${secret:loose}", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestIsReference(t *testing.T) {
	if !IsReference("${secret:a}") || IsReference("plain") || IsReference("${secret:}") {
		t.Error("IsReference mismatch")
	}
}
