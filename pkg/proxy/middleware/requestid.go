package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"mercator-hq/ingress/pkg/telemetry/logging"
)

const (
	// RequestIDHeader is the HTTP header carrying a client supplied request ID.
	RequestIDHeader = "X-Request-ID"

	// maxRequestIDLength bounds accepted client request IDs.
	maxRequestIDLength = 128
)

// RequestIDMiddleware stores a request ID in the request context for log
// correlation. A well formed X-Request-ID from the client is reused,
// otherwise a UUID v4 is generated. The ID is not added to the upstream
// request or the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}

		ctx := logging.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID stored by RequestIDMiddleware.
func GetRequestID(r *http.Request) string {
	return logging.GetRequestID(r.Context())
}

// validRequestID accepts short IDs made of visible ASCII characters.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
