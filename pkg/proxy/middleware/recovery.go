package middleware

import (
	"net/http"
	"runtime/debug"

	"mercator-hq/ingress/pkg/proxy"
	"mercator-hq/ingress/pkg/telemetry/logging"
)

// RecoveryMiddleware turns handler panics into a 500 JSON error and logs the
// stack. http.ErrAbortHandler is re-raised so the server aborts the client
// connection, which is how a broken streamed response reaches the client.
func RecoveryMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}

				logger.WithContext(r.Context()).ErrorContext(r.Context(), "panic in handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				errResp := proxy.NewErrorResponse(
					"An internal error occurred. Please try again later.",
					proxy.ErrorTypeServerError,
					"internal_error",
				)
				_ = proxy.WriteErrorResponse(w, http.StatusInternalServerError, errResp)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
