package cors

import "net/http"

// Decision is the outcome of a preflight evaluation.
type Decision int

const (
	// Reject means the origin is not allowed. The response carries no CORS
	// headers and the browser blocks the real request.
	Reject Decision = iota

	// Allow means the origin may perform the real request.
	Allow
)

// String returns the lowercase decision name.
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "reject"
}

// PreflightDecision is the result of EvaluatePreflight.
type PreflightDecision struct {
	Decision Decision

	// Header holds the CORS headers for an allowed preflight. It is empty
	// for a rejection.
	Header http.Header
}

// Allowed reports whether the preflight was accepted.
func (d PreflightDecision) Allowed() bool {
	return d.Decision == Allow
}

// EvaluatePreflight decides a preflight request from origin. The full
// configured method and header lists are returned on success; the requested
// method and headers are not compared against them.
func (p *Policy) EvaluatePreflight(origin, method string, requestedHeaders []string) PreflightDecision {
	echo, ok := p.EchoOrigin(origin)
	if !ok {
		return PreflightDecision{Decision: Reject, Header: make(http.Header)}
	}

	h := make(http.Header, 6)
	h.Set(HeaderAllowOrigin, echo)
	if echo != wildcard {
		h.Set(HeaderVary, HeaderOrigin)
	}
	if p.allowMethods != "" {
		h.Set(HeaderAllowMethods, p.allowMethods)
	}
	if p.allowHeaders != "" {
		h.Set(HeaderAllowHeaders, p.allowHeaders)
	}
	if p.maxAge != "" {
		h.Set(HeaderMaxAge, p.maxAge)
	}
	if p.allowCredentials {
		h.Set(HeaderAllowCredentials, "true")
	}
	return PreflightDecision{Decision: Allow, Header: h}
}

// IsPreflight reports whether r is a CORS preflight request: an OPTIONS
// request carrying an Origin header.
func IsPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get(HeaderOrigin) != ""
}
