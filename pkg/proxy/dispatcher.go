package proxy

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"mercator-hq/ingress/pkg/config"
	"mercator-hq/ingress/pkg/cors"
	"mercator-hq/ingress/pkg/rewrite"
	"mercator-hq/ingress/pkg/routing"
	"mercator-hq/ingress/pkg/telemetry/logging"
	"mercator-hq/ingress/pkg/telemetry/metrics"
)

// Config holds the dependencies of a Dispatcher. Everything in it is
// read-only once the Dispatcher is built.
type Config struct {
	// Upstream is the upstream origin. Its path, if any, is prepended to
	// every routed path.
	Upstream *url.URL

	Routes      *routing.Table
	Credentials rewrite.Credentials
	CORS        *cors.Policy

	// Transport sends forwarded requests. Defaults to NewTransport with
	// default timeouts.
	Transport http.RoundTripper

	// TunnelClient performs upstream WebSocket handshakes. Its Timeout
	// bounds the handshake only. Defaults to NewTunnelClient.
	TunnelClient *http.Client

	// MaxMessageBytes is the per-message read limit on tunnels. Zero means
	// config.DefaultMaxMessageBytes and -1 disables the limit.
	MaxMessageBytes int64

	Logger  *logging.Logger
	Metrics *metrics.Collector
}

// Dispatcher routes every inbound request to the upstream. It answers
// preflights itself, tunnels WebSocket upgrades on upgrade routes and
// forwards everything else.
type Dispatcher struct {
	upstream     *url.URL
	routes       *routing.Table
	credentials  rewrite.Credentials
	cors         *cors.Policy
	tunnelClient *http.Client
	maxMessage   int64
	logger       *logging.Logger
	metrics      *metrics.Collector

	proxy *httputil.ReverseProxy
}

// NewDispatcher validates cfg and builds a Dispatcher.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Upstream == nil || cfg.Upstream.Host == "" {
		return nil, errors.New("proxy: upstream url with a host is required")
	}
	if cfg.Upstream.Scheme != "http" && cfg.Upstream.Scheme != "https" {
		return nil, errors.New("proxy: upstream scheme must be http or https")
	}
	if cfg.Routes == nil {
		return nil, errors.New("proxy: route table is required")
	}
	if cfg.CORS == nil {
		return nil, errors.New("proxy: cors policy is required")
	}

	d := &Dispatcher{
		upstream:     cfg.Upstream,
		routes:       cfg.Routes,
		credentials:  cfg.Credentials,
		cors:         cfg.CORS,
		tunnelClient: cfg.TunnelClient,
		maxMessage:   cfg.MaxMessageBytes,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
	}
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	d.logger = d.logger.With("component", "proxy.dispatcher")

	transport := cfg.Transport
	if transport == nil {
		transport = NewTransport(TransportOptions{})
	}
	if d.tunnelClient == nil {
		d.tunnelClient = NewTunnelClient(TransportOptions{})
	}
	if d.maxMessage == 0 {
		d.maxMessage = config.DefaultMaxMessageBytes
	}

	d.proxy = &httputil.ReverseProxy{
		Rewrite:        d.rewrite,
		Transport:      transport,
		FlushInterval:  -1,
		ModifyResponse: d.modifyResponse,
		ErrorHandler:   d.handleError,
		ErrorLog:       d.logger.StdLogger(slog.LevelWarn),
	}
	return d, nil
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ex := &exchange{
		start:  time.Now(),
		origin: r.Header.Get(cors.HeaderOrigin),
		route:  routeUnmatched,
	}
	defer d.finish(r, ex)

	if cors.IsPreflight(r) {
		d.preflight(w, r, ex)
		return
	}

	res, err := d.routes.Resolve(r.URL.EscapedPath())
	if err != nil {
		d.writeError(w, ex, &GatewayError{Kind: KindRouteNotFound, Err: err})
		return
	}
	ex.route = res.Entry.Prefix
	ex.resolution = res

	ctx := logging.WithRoute(withExchange(r.Context(), ex), ex.route)
	r = r.WithContext(ctx)

	if res.Entry.Upgrade && isWebSocketUpgrade(r) {
		d.tunnel(w, r, ex)
		return
	}
	d.forward(w, r, ex)
}

// preflight answers a CORS preflight without contacting the upstream.
func (d *Dispatcher) preflight(w http.ResponseWriter, r *http.Request, ex *exchange) {
	ex.route = routePreflight

	decision := d.cors.EvaluatePreflight(
		ex.origin,
		r.Header.Get(cors.HeaderRequestMethod),
		headerList(r.Header.Values(cors.HeaderRequestHeaders)),
	)
	d.metrics.RecordPreflight(decision.Decision.String())

	if !decision.Allowed() {
		d.logger.DebugContext(r.Context(), "preflight rejected", "origin", ex.origin, "path", r.URL.Path)
		ex.fail(KindCORSRejected, http.StatusForbidden)
		_ = WriteErrorResponse(w, ex.status, (&GatewayError{Kind: KindCORSRejected}).Response())
		return
	}

	h := w.Header()
	for k, v := range decision.Header {
		h[k] = v
	}
	ex.status = http.StatusNoContent
	w.WriteHeader(http.StatusNoContent)
}

// writeError sends a CORS-annotated gateway error.
func (d *Dispatcher) writeError(w http.ResponseWriter, ex *exchange, gerr *GatewayError) {
	ex.fail(gerr.Kind, gerr.StatusCode())
	d.annotate(w.Header(), ex.origin)
	_ = WriteErrorResponse(w, ex.status, gerr.Response())
}

// annotate adds the CORS response headers for origin to h in place.
func (d *Dispatcher) annotate(h http.Header, origin string) {
	for k, v := range rewrite.Inbound(d.cors, origin, h) {
		h[k] = v
	}
}

func (d *Dispatcher) finish(r *http.Request, ex *exchange) {
	d.metrics.RecordRequest(ex.route, r.Method, ex.status, time.Since(ex.start))

	switch ex.kind {
	case KindUpstreamUnreachable, KindUpstreamTimeout, KindUpstreamStream:
		d.metrics.RecordUpstreamError(ex.route, string(ex.kind))
	}
}

// upstreamURL builds the upstream URL for an escaped routed path, keeping
// the raw query unchanged.
func (d *Dispatcher) upstreamURL(escapedPath, rawQuery string) *url.URL {
	u := *d.upstream
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	joined := strings.TrimRight(d.upstream.EscapedPath(), "/") + escapedPath
	if p, err := url.PathUnescape(joined); err == nil {
		u.Path = p
		u.RawPath = joined
	} else {
		u.Path = joined
		u.RawPath = ""
	}
	u.RawQuery = rawQuery
	return &u
}

// headerList splits comma separated header values.
func headerList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// hasToken reports whether a comma separated header contains token.
func hasToken(values []string, token string) bool {
	for _, v := range headerList(values) {
		if strings.EqualFold(v, token) {
			return true
		}
	}
	return false
}

func isWebSocketUpgrade(r *http.Request) bool {
	return hasToken(r.Header.Values("Connection"), "upgrade") &&
		hasToken(r.Header.Values("Upgrade"), "websocket")
}
