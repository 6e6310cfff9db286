package secrets

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// secretRefRegex matches ${secret:name} references.
var secretRefRegex = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Resolver looks secrets up in a list of providers, first match wins.
type Resolver struct {
	providers []Provider
}

// NewResolver returns a resolver over providers, tried in order.
func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers}
}

// GetSecret returns the value from the first provider that has name.
func (r *Resolver) GetSecret(ctx context.Context, name string) (string, error) {
	for _, p := range r.providers {
		value, err := p.GetSecret(ctx, name)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%s provider: %w", p.Provider(), err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Resolve replaces every ${secret:name} reference in value. Values without
// references are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	if !strings.Contains(value, "${secret:") {
		return value, nil
	}

	var firstErr error
	out := secretRefRegex.ReplaceAllStringFunc(value, func(ref string) string {
		name := strings.TrimSpace(secretRefRegex.FindStringSubmatch(ref)[1])
		secret, err := r.GetSecret(ctx, name)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return secret
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// IsReference reports whether value contains a secret reference.
func IsReference(value string) bool {
	return secretRefRegex.MatchString(value)
}
