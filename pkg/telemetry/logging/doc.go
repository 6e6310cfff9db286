// Package logging provides structured logging with credential redaction.
//
// The Logger wraps log/slog with a JSON or text handler. When disabled it
// discards every record, which is how the ENABLE_LOGGING switch of the
// deployment is honored.
//
// # Redaction
//
// The gateway holds the service key of the upstream platform and must never
// print it. With redaction enabled the Logger masks:
//
//   - values of credential fields (apikey, authorization, cookie, token, ...)
//   - bearer tokens and JWTs inside any string value
//   - apikey and token query parameters in logged URLs
//   - the literal configured secrets wherever they appear
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, apiKey))
//	logger.InfoContext(r.Context(), "request completed", "status", 200)
//
// Request-scoped fields (request_id, route, client_ip) are read from the
// context by the *Context methods.
package logging
