package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"mercator-hq/ingress/pkg/config"
)

// Mask replaces a fully redacted value.
const Mask = "***"

// Redactor masks credentials in log fields.
type Redactor struct {
	patterns []*redactPattern
	secrets  []string
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternBearerToken = "bearer_token"
	PatternJWT         = "jwt"
	PatternQueryKey    = "query_key"
)

// sensitiveKeys are field names whose values are always masked.
var sensitiveKeys = []string{
	"apikey", "api_key", "api-key",
	"authorization", "auth",
	"cookie", "set-cookie",
	"token", "secret", "password",
}

// NewRedactor creates a Redactor with the built-in patterns, the literal
// secrets and any custom patterns.
func NewRedactor(secrets []string, customPatterns []config.RedactPattern) (*Redactor, error) {
	r := &Redactor{}
	r.addDefaultPatterns()

	for _, p := range customPatterns {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redact pattern %q: %w", p.Name, err)
		}
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		})
	}

	for _, s := range secrets {
		if s != "" {
			r.secrets = append(r.secrets, s)
		}
	}
	// Longest first so a secret containing another is masked whole.
	sort.Slice(r.secrets, func(i, j int) bool { return len(r.secrets[i]) > len(r.secrets[j]) })

	return r, nil
}

// addDefaultPatterns adds the built-in credential patterns.
func (r *Redactor) addDefaultPatterns() {
	defaults := []struct {
		name        string
		regex       string
		replacement string
	}{
		{
			name:        PatternBearerToken,
			regex:       `(?i)bearer\s+[a-zA-Z0-9\-._~+/]+=*`,
			replacement: "Bearer " + Mask,
		},
		{
			// Platform keys are JWTs.
			name:        PatternJWT,
			regex:       `eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`,
			replacement: Mask,
		},
		{
			// Realtime clients pass the key in the query string.
			name:        PatternQueryKey,
			regex:       `(?i)([?&](?:apikey|access_token|token)=)[^&\s]*`,
			replacement: "${1}" + Mask,
		},
	}

	for _, p := range defaults {
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}
}

// RedactString masks secrets and pattern matches in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}

	redacted := value
	for _, s := range r.secrets {
		redacted = strings.ReplaceAll(redacted, s, Mask)
	}
	for _, pattern := range r.patterns {
		redacted = pattern.regex.ReplaceAllString(redacted, pattern.replacement)
	}
	return redacted
}

// RedactArgs redacts variadic log arguments.
// Args are in the form: key1, value1, key2, value2, ... and may include
// slog.Attr values.
func (r *Redactor) RedactArgs(args ...any) []any {
	if len(args) == 0 {
		return args
	}

	redacted := make([]any, len(args))
	copy(redacted, args)

	for i := 0; i < len(redacted); i++ {
		if attr, ok := redacted[i].(slog.Attr); ok {
			redacted[i] = r.redactAttr(attr)
			continue
		}

		key, ok := redacted[i].(string)
		if !ok || i+1 >= len(redacted) {
			continue
		}
		i++
		if IsSensitiveKey(key) {
			redacted[i] = Mask
			continue
		}
		redacted[i] = r.redactValue(redacted[i])
	}

	return redacted
}

func (r *Redactor) redactAttr(attr slog.Attr) slog.Attr {
	if IsSensitiveKey(attr.Key) {
		return slog.String(attr.Key, Mask)
	}
	switch attr.Value.Kind() {
	case slog.KindString:
		return slog.String(attr.Key, r.RedactString(attr.Value.String()))
	case slog.KindGroup:
		group := attr.Value.Group()
		out := make([]any, len(group))
		for i, a := range group {
			out[i] = r.redactAttr(a)
		}
		return slog.Group(attr.Key, out...)
	default:
		return attr
	}
}

// redactValue masks string-like values; other types pass through.
func (r *Redactor) redactValue(value any) any {
	switch v := value.(type) {
	case string:
		return r.RedactString(v)
	case error:
		return r.RedactString(v.Error())
	case fmt.Stringer:
		return r.RedactString(v.String())
	default:
		return value
	}
}

// IsSensitiveKey reports whether a field name carries a credential.
func IsSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if lowerKey == sensitive || strings.HasSuffix(lowerKey, "_"+sensitive) || strings.HasSuffix(lowerKey, "."+sensitive) {
			return true
		}
	}
	return false
}

// RedactAPIKey redacts an API key, keeping only a prefix.
func RedactAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return Mask
	}
	return apiKey[:4] + Mask
}
