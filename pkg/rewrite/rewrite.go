// Package rewrite holds the header transforms applied around the upstream
// round trip: credential injection on the way out and CORS annotation on the
// way back.
package rewrite

import (
	"errors"
	"net/http"
	"strings"

	"mercator-hq/ingress/pkg/cors"
)

// Credential header names sent to the upstream.
const (
	HeaderAPIKey        = "apikey"
	HeaderAuthorization = "Authorization"
)

// ErrMissingCredential is returned when a credential value is empty.
var ErrMissingCredential = errors.New("missing service credential")

// Credentials is the service secret injected into every upstream request.
type Credentials struct {
	apiKey string
	bearer string
}

// NewCredentials returns Credentials for apiKey. An empty bearer defaults to
// apiKey, which is how the platform's anon key is normally sent.
func NewCredentials(apiKey, bearer string) (Credentials, error) {
	apiKey = strings.TrimSpace(apiKey)
	bearer = strings.TrimSpace(bearer)
	if apiKey == "" {
		return Credentials{}, ErrMissingCredential
	}
	if bearer == "" {
		bearer = apiKey
	}
	return Credentials{apiKey: apiKey, bearer: bearer}, nil
}

// Outbound returns a copy of h with the credential headers overwritten.
// Any client-supplied apikey or Authorization value is discarded.
func (c Credentials) Outbound(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		out = make(http.Header, 2)
	}
	c.Apply(out)
	return out
}

// Apply overwrites the credential headers of h in place.
func (c Credentials) Apply(h http.Header) {
	h.Set(HeaderAPIKey, c.apiKey)
	h.Set(HeaderAuthorization, "Bearer "+c.bearer)
}

// Secrets returns the credential values, for log redaction.
func (c Credentials) Secrets() []string {
	if c.bearer == c.apiKey {
		return []string{c.apiKey}
	}
	return []string{c.apiKey, c.bearer}
}

// Inbound returns a copy of the upstream response headers annotated for
// origin. Nothing else is changed.
func Inbound(policy *cors.Policy, origin string, h http.Header) http.Header {
	return policy.AnnotateResponse(origin, h)
}
