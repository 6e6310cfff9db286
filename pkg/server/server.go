package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/ingress/pkg/config"
	"mercator-hq/ingress/pkg/cors"
	"mercator-hq/ingress/pkg/proxy/middleware"
	"mercator-hq/ingress/pkg/telemetry/health"
	"mercator-hq/ingress/pkg/telemetry/logging"
	"mercator-hq/ingress/pkg/telemetry/metrics"
)

// Options holds the components the server exposes.
type Options struct {
	Server    config.ServerConfig
	Telemetry config.TelemetryConfig

	// Dispatcher receives every request that is not an ambient endpoint.
	Dispatcher http.Handler

	// CORS annotates the liveness response. Optional.
	CORS *cors.Policy

	// Health serves the liveness and readiness endpoints. Optional.
	Health *health.Checker

	// Metrics serves the metrics endpoint when enabled. Optional.
	Metrics *metrics.Collector

	// Version is served on GET /version. Optional.
	Version http.Handler

	// TLS turns the listener into an HTTPS listener. Optional.
	TLS *tls.Config

	Logger *logging.Logger
}

// Server is the gateway's single listener.
type Server struct {
	opts       Options
	logger     *logging.Logger
	httpServer *http.Server

	// baseCtx parents every request context. It is canceled once graceful
	// shutdown has finished, which ends hijacked tunnels.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu           sync.Mutex
	listener     net.Listener
	running      bool
	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds a server. It does not bind until Listen or Start.
func New(opts Options) (*Server, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("server: dispatcher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Server{
		opts:   opts,
		logger: logger.With("component", "server"),
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	s.httpServer = &http.Server{
		Addr:              opts.Server.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: opts.Server.ReadHeaderTimeout,
		ReadTimeout:       opts.Server.ReadTimeout,
		WriteTimeout:      opts.Server.WriteTimeout,
		IdleTimeout:       opts.Server.IdleTimeout,
		MaxHeaderBytes:    opts.Server.MaxHeaderBytes,
		TLSConfig:         opts.TLS,
		ErrorLog:          s.logger.StdLogger(slog.LevelWarn),
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}
	return s, nil
}

// Handler returns the full handler: ambient endpoints, the dispatcher and
// the middleware chain. Ambient endpoints are GET only so that preflights
// on their paths still reach the dispatcher.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.liveness)
	if hc := s.opts.Telemetry.Health; s.opts.Health != nil {
		if hc.LivenessPath != "" {
			mux.Handle("GET "+hc.LivenessPath, s.opts.Health.LivenessHandler())
		}
		if hc.ReadinessPath != "" {
			mux.Handle("GET "+hc.ReadinessPath, s.opts.Health.ReadinessHandler())
		}
	}
	if s.opts.Metrics.Enabled() && s.opts.Telemetry.Metrics.Path != "" {
		mux.Handle("GET "+s.opts.Telemetry.Metrics.Path, s.opts.Metrics.Handler())
	}
	if s.opts.Version != nil {
		mux.Handle("GET /version", s.opts.Version)
	}
	mux.Handle("/", s.opts.Dispatcher)

	var handler http.Handler = mux
	handler = middleware.RecoveryMiddleware(s.logger)(handler)
	handler = middleware.LoggingMiddleware(s.logger)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	return handler
}

type livenessResponse struct {
	Message string `json:"message"`
}

// liveness answers GET / with the configured message.
func (s *Server) liveness(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	if s.opts.CORS != nil {
		origin := r.Header.Get(cors.HeaderOrigin)
		for k, v := range s.opts.CORS.AnnotateResponse(origin, h) {
			h[k] = v
		}
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(livenessResponse{Message: s.opts.Server.LivenessMessage})
	}
}

// Listen binds the listening socket. A bind failure is returned as is.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("server: already listening")
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds if needed, serves until ctx is done and then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s.Addr() == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server: already running")
	}
	s.running = true
	ln := s.listener
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting gateway server",
			"address", ln.Addr().String(),
			"tls_enabled", s.opts.TLS != nil,
		)

		var err error
		if s.opts.TLS != nil {
			err = s.httpServer.ServeTLS(ln, "", "")
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if ok {
			_ = s.Shutdown(context.Background())
			return err
		}
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting connections and waits for in-flight requests up
// to the shutdown timeout. Open tunnels are ended afterwards.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		timeout := s.opts.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			s.shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
		s.cancelBase()

		s.mu.Lock()
		if !s.running && s.listener != nil {
			// Bound but never served.
			_ = s.listener.Close()
		}
		s.running = false
		s.mu.Unlock()

		s.logger.Info("gateway server stopped")
	})
	return s.shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
