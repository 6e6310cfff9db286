package cors

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// CORS header names.
const (
	HeaderOrigin           = "Origin"
	HeaderVary             = "Vary"
	HeaderRequestMethod    = "Access-Control-Request-Method"
	HeaderRequestHeaders   = "Access-Control-Request-Headers"
	HeaderAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderAllowMethods     = "Access-Control-Allow-Methods"
	HeaderAllowHeaders     = "Access-Control-Allow-Headers"
	HeaderAllowCredentials = "Access-Control-Allow-Credentials"
	HeaderExposeHeaders    = "Access-Control-Expose-Headers"
	HeaderMaxAge           = "Access-Control-Max-Age"
)

const (
	wildcard = "*"

	// maxMaxAge caps the preflight cache lifetime at one week.
	maxMaxAge = 7 * 24 * 60 * 60

	errPrefix = "cors"
)

// Options configures a Policy.
type Options struct {
	// AllowedOrigins is the list of origins allowed to make cross-origin
	// requests. A single "*" entry allows every origin.
	AllowedOrigins []string

	// AllowedMethods is returned in Access-Control-Allow-Methods on preflight.
	AllowedMethods []string

	// AllowedHeaders is returned in Access-Control-Allow-Headers on preflight.
	AllowedHeaders []string

	// ExposedHeaders is returned in Access-Control-Expose-Headers on
	// ordinary responses, in order.
	ExposedHeaders []string

	// AllowCredentials sets Access-Control-Allow-Credentials: true. When
	// enabled the literal request origin is always echoed, never "*".
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Zero omits the header.
	MaxAge int
}

// Policy is an immutable cross-origin access policy.
type Policy struct {
	allowAll         bool
	origins          map[string]struct{}
	allowMethods     string
	allowHeaders     string
	exposeHeaders    string
	allowCredentials bool
	maxAge           string
}

// NewPolicy builds a Policy from opts.
func NewPolicy(opts Options) (*Policy, error) {
	if len(opts.AllowedOrigins) == 0 {
		return nil, fmt.Errorf("%s: at least one allowed origin is required", errPrefix)
	}
	if opts.MaxAge < 0 || opts.MaxAge > maxMaxAge {
		return nil, fmt.Errorf("%s: max age %d out of range [0, %d]", errPrefix, opts.MaxAge, maxMaxAge)
	}

	p := &Policy{
		origins:          make(map[string]struct{}, len(opts.AllowedOrigins)),
		allowMethods:     strings.Join(opts.AllowedMethods, ", "),
		allowHeaders:     strings.Join(opts.AllowedHeaders, ", "),
		exposeHeaders:    strings.Join(opts.ExposedHeaders, ", "),
		allowCredentials: opts.AllowCredentials,
	}
	if opts.MaxAge > 0 {
		p.maxAge = strconv.Itoa(opts.MaxAge)
	}

	for _, origin := range opts.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		switch {
		case origin == wildcard:
			p.allowAll = true
		case origin == "":
			return nil, fmt.Errorf("%s: empty allowed origin", errPrefix)
		case strings.HasSuffix(origin, "/"):
			return nil, fmt.Errorf("%s: allowed origin %q must not end with a slash", errPrefix, origin)
		default:
			p.origins[origin] = struct{}{}
		}
	}

	return p, nil
}

// AllowsAll reports whether the policy accepts every origin.
func (p *Policy) AllowsAll() bool {
	return p.allowAll
}

// AllowCredentials reports whether credentialed requests are allowed.
func (p *Policy) AllowCredentials() bool {
	return p.allowCredentials
}

// IsOriginAllowed reports whether origin may make cross-origin requests.
func (p *Policy) IsOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if p.allowAll {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

// EchoOrigin returns the Access-Control-Allow-Origin value for origin and
// whether the origin is allowed at all. With credentials enabled the literal
// origin is returned. Without credentials a wildcard policy answers "*".
func (p *Policy) EchoOrigin(origin string) (string, bool) {
	if !p.IsOriginAllowed(origin) {
		return "", false
	}
	if p.allowAll && !p.allowCredentials {
		return wildcard, true
	}
	return origin, true
}

// AnnotateResponse returns a copy of header carrying the CORS response
// headers for origin. Headers other than the CORS ones are left untouched.
// A disallowed or missing origin returns an unmodified copy.
func (p *Policy) AnnotateResponse(origin string, header http.Header) http.Header {
	out := header.Clone()
	if out == nil {
		out = make(http.Header)
	}

	echo, ok := p.EchoOrigin(origin)
	if !ok {
		return out
	}

	out.Set(HeaderAllowOrigin, echo)
	if echo != wildcard {
		addVary(out, HeaderOrigin)
	}
	if p.exposeHeaders != "" {
		out.Set(HeaderExposeHeaders, p.exposeHeaders)
	}
	if p.allowCredentials {
		out.Set(HeaderAllowCredentials, "true")
	}
	return out
}

// addVary appends value to the Vary header unless already listed.
func addVary(h http.Header, value string) {
	for _, line := range h.Values(HeaderVary) {
		for _, v := range strings.Split(line, ",") {
			v = strings.TrimSpace(v)
			if v == wildcard || strings.EqualFold(v, value) {
				return
			}
		}
	}
	h.Add(HeaderVary, value)
}
