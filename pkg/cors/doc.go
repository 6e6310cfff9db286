// Package cors implements the gateway's cross-origin resource sharing policy.
//
// A [Policy] is built once from [Options] and never changes. It answers two
// questions: whether a preflight request is allowed ([Policy.EvaluatePreflight])
// and which headers to attach to an ordinary response
// ([Policy.AnnotateResponse]).
//
// CORS is enforced by browsers. The policy only emits headers; requests
// without an Origin header, or from origins that are not allowed, still reach
// the upstream and simply receive no CORS headers.
//
// When credentials are allowed the literal request origin is echoed in
// Access-Control-Allow-Origin, even for a wildcard policy, since browsers
// refuse "*" on credentialed responses.
package cors
