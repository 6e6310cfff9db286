package proxy

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httputil"
	"time"

	"mercator-hq/ingress/pkg/config"
	"mercator-hq/ingress/pkg/rewrite"
)

// TransportOptions configures the upstream transports. Zero values use the
// package defaults.
type TransportOptions struct {
	ConnectTimeout        time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	IdleConnTimeout       time.Duration
	MaxIdleConns          int

	// HandshakeTimeout bounds an upstream WebSocket handshake.
	HandshakeTimeout time.Duration
}

// TransportOptionsFromConfig converts the upstream and realtime sections.
func TransportOptionsFromConfig(cfg config.UpstreamConfig, rt config.RealtimeConfig) TransportOptions {
	return TransportOptions{
		HandshakeTimeout:      rt.HandshakeTimeout,
		ConnectTimeout:        cfg.ConnectTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		MaxIdleConns:          cfg.MaxIdleConns,
	}
}

func (o TransportOptions) withDefaults() TransportOptions {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = config.DefaultConnectTimeout
	}
	if o.TLSHandshakeTimeout <= 0 {
		o.TLSHandshakeTimeout = config.DefaultTLSHandshakeTimeout
	}
	if o.ResponseHeaderTimeout <= 0 {
		o.ResponseHeaderTimeout = config.DefaultResponseHeaderTimeout
	}
	if o.IdleConnTimeout <= 0 {
		o.IdleConnTimeout = config.DefaultIdleConnTimeout
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = config.DefaultMaxIdleConns
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = config.DefaultHandshakeTimeout
	}
	return o
}

// NewTransport builds the transport used for forwarded requests. Connection
// establishment and the wait for response headers are bounded. Body
// streaming is not.
func NewTransport(opts TransportOptions) *http.Transport {
	opts = opts.withDefaults()
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   opts.TLSHandshakeTimeout,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		IdleConnTimeout:       opts.IdleConnTimeout,
		MaxIdleConns:          opts.MaxIdleConns,
		MaxIdleConnsPerHost:   opts.MaxIdleConns,
		ExpectContinueTimeout: time.Second,
	}
}

// NewTunnelClient builds the client used for upstream WebSocket handshakes.
// It speaks HTTP/1.1 only, since the upgrade needs it.
func NewTunnelClient(opts TransportOptions) *http.Client {
	opts = opts.withDefaults()
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   opts.TLSHandshakeTimeout,
			ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
			TLSNextProto:          map[string]func(string, *tls.Conn) http.RoundTripper{},
		},
		Timeout: opts.HandshakeTimeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// forwardedHeaders are dropped by httputil.ReverseProxy before Rewrite.
// The client's values are restored so they pass through unchanged.
var forwardedHeaders = []string{"Forwarded", "X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto"}

// forward streams the request to the upstream and the response back.
func (d *Dispatcher) forward(w http.ResponseWriter, r *http.Request, ex *exchange) {
	defer func() {
		// The reverse proxy aborts the handler when the response body
		// breaks after the status line was sent.
		if p := recover(); p != nil {
			if p == http.ErrAbortHandler {
				ex.kind = KindUpstreamStream
				d.logger.WarnContext(r.Context(), "upstream response interrupted", "path", r.URL.Path)
			}
			panic(p)
		}
	}()

	d.proxy.ServeHTTP(w, r)
}

// rewrite builds the outbound request: routed URL, credentials, and the
// client's forwarding headers.
func (d *Dispatcher) rewrite(pr *httputil.ProxyRequest) {
	ex := exchangeFrom(pr.In.Context())

	pr.Out.URL = d.upstreamURL(ex.resolution.Path, pr.In.URL.RawQuery)
	pr.Out.Host = ""

	for _, name := range forwardedHeaders {
		if values := pr.In.Header.Values(name); len(values) > 0 {
			pr.Out.Header[name] = values
		}
	}

	// Upgrades are only tunneled on upgrade routes. Elsewhere the request
	// goes out as an ordinary one.
	pr.Out.Header.Del("Upgrade")
	pr.Out.Header.Del("Connection")

	d.credentials.Apply(pr.Out.Header)
}

// modifyResponse applies the inbound header transform.
func (d *Dispatcher) modifyResponse(resp *http.Response) error {
	ex := exchangeFrom(resp.Request.Context())
	resp.Header = rewrite.Inbound(d.cors, ex.origin, resp.Header)
	ex.status = resp.StatusCode
	return nil
}

// handleError reports a failed round trip. Nothing has been written to the
// client yet.
func (d *Dispatcher) handleError(w http.ResponseWriter, r *http.Request, err error) {
	ex := exchangeFrom(r.Context())
	kind := classify(r.Context(), err)

	if kind == KindClientCanceled {
		ex.fail(kind, StatusClientClosedRequest)
		d.logger.DebugContext(r.Context(), "client canceled request", "path", r.URL.Path)
		return
	}

	d.logger.WarnContext(r.Context(), "upstream request failed",
		"kind", kind,
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	d.writeError(w, ex, &GatewayError{Kind: kind, Route: ex.route, Err: err})
}
