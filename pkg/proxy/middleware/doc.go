// Package middleware provides the HTTP middleware wrapped around the gateway
// handler.
//
// The chain, outermost first:
//
//	handler = RequestIDMiddleware(LoggingMiddleware(logger)(RecoveryMiddleware(logger)(mux)))
//
// RequestIDMiddleware stores a request ID in the context. LoggingMiddleware
// writes one structured line per request using the context fields.
// RecoveryMiddleware converts panics into 500 responses, except
// http.ErrAbortHandler which is re-raised so the server drops the client
// connection.
//
// The status-capturing writer used by LoggingMiddleware supports Flush,
// Hijack and Unwrap, so streamed responses and WebSocket upgrades work
// through it.
package middleware
