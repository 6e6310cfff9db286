package middleware

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"mercator-hq/ingress/pkg/telemetry/logging"
)

// responseWriter captures the status code and body size. It keeps the
// Flusher and Hijacker of the wrapped writer reachable, directly and through
// Unwrap for http.ResponseController.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int64
	written    bool
	hijacked   bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code before writing.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.written {
		return
	}
	// Informational headers do not complete the response.
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		rw.ResponseWriter.WriteHeader(code)
		return
	}
	rw.statusCode = code
	rw.written = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write ensures WriteHeader is called if not already done.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// Flush implements http.Flusher.
func (rw *responseWriter) Flush() {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	_ = http.NewResponseController(rw.ResponseWriter).Flush()
}

// Hijack implements http.Hijacker. A hijacked connection is logged as 101.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, buf, err := http.NewResponseController(rw.ResponseWriter).Hijack()
	if err != nil {
		return nil, nil, err
	}
	rw.hijacked = true
	if !rw.written {
		rw.statusCode = http.StatusSwitchingProtocols
		rw.written = true
	}
	return conn, buf, nil
}

// Unwrap returns the wrapped writer for http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingMiddleware logs one line per request with method, path, status,
// latency and size. Request fields stored in the context (request ID, route,
// client address) are attached. Query strings are not logged since they may
// carry tokens.
func LoggingMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			ctx := context.WithValue(r.Context(), StartTimeKey, startTime)
			ctx = logging.WithClientIP(ctx, clientIP(r))

			rw := newResponseWriter(w)
			log := logger.WithContext(ctx)

			log.DebugContext(ctx, "request started",
				"method", r.Method,
				"path", r.URL.Path,
				"user_agent", r.UserAgent(),
			)

			aborted := true
			defer func() {
				level := slog.LevelInfo
				switch {
				case aborted:
					level = slog.LevelWarn
				case rw.statusCode >= 500:
					level = slog.LevelError
				case rw.statusCode >= 400:
					level = slog.LevelWarn
				}

				log.Log(ctx, level, "request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", rw.statusCode,
					"bytes", rw.bytes,
					"latency_ms", time.Since(startTime).Milliseconds(),
					"upgraded", rw.hijacked,
					"aborted", aborted,
					"user_agent", r.UserAgent(),
				)
			}()

			next.ServeHTTP(rw, r.WithContext(ctx))
			aborted = false
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

var _ interface {
	http.Flusher
	http.Hijacker
} = (*responseWriter)(nil)
