package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileProvider loads secrets from individual files in a directory, the
// layout container orchestrators use when mounting secrets. The file name is
// the secret name. Trailing newlines are trimmed.
//
// Files writable by group or others are refused.
type FileProvider struct {
	Dir string
}

// NewFileProvider creates a file-based provider rooted at dir.
func NewFileProvider(dir string) (*FileProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("secrets: failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets: not a directory: %s", dir)
	}
	return &FileProvider{Dir: dir}, nil
}

// GetSecret reads the file named name inside Dir.
func (p *FileProvider) GetSecret(_ context.Context, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("secrets: invalid secret name %q", name)
	}
	path := filepath.Join(p.Dir, name)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w in %s: %s", ErrNotFound, p.Dir, name)
		}
		return "", fmt.Errorf("secrets: failed to stat secret file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w in %s: %s is a directory", ErrNotFound, p.Dir, name)
	}
	if perm := info.Mode().Perm(); perm&0o022 != 0 {
		return "", fmt.Errorf("secrets: %s has insecure permissions %04o", name, perm)
	}

	// #nosec G304 - name is a single path element inside Dir
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("secrets: failed to read secret file: %w", err)
	}
	value := strings.TrimRight(string(data), "\r\n")
	if value == "" {
		return "", fmt.Errorf("secrets: secret file %s is empty", name)
	}
	return value, nil
}

// Provider returns the provider name.
func (p *FileProvider) Provider() string {
	return "file"
}
