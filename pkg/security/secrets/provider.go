package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Provider that has no value for a name.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from one backend.
type Provider interface {
	// GetSecret returns the value stored under name, or an error wrapping
	// ErrNotFound.
	GetSecret(ctx context.Context, name string) (string, error)

	// Provider returns the provider name (env, file).
	Provider() string
}
