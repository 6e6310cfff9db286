package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"
)

// Relay directions, used as metric labels.
const (
	DirectionClientToUpstream = "client_to_upstream"
	DirectionUpstreamToClient = "upstream_to_client"
)

// handshake headers that the dialer sets itself or that only apply to the
// client leg.
var handshakeHeaders = []string{
	"Connection",
	"Upgrade",
	"Sec-Websocket-Key",
	"Sec-Websocket-Version",
	"Sec-Websocket-Extensions",
	"Sec-Websocket-Protocol",
	"Keep-Alive",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
}

// maxRejectionBody caps the relayed body of a rejected upstream handshake.
const maxRejectionBody = 1024

// errMessageTooBig is returned by a relay when a message exceeds the
// per-message limit.
var errMessageTooBig = errors.New("websocket message exceeds read limit")

// tunnel relays a WebSocket session. The upstream handshake is completed
// before the client's is accepted, so upstream rejections reach the client
// as ordinary HTTP responses.
func (d *Dispatcher) tunnel(w http.ResponseWriter, r *http.Request, ex *exchange) {
	ctx := r.Context()
	target := d.upstreamURL(ex.resolution.Path, r.URL.RawQuery)
	switch target.Scheme {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}

	upstream, resp, err := websocket.Dial(ctx, target.String(), &websocket.DialOptions{
		HTTPClient:      d.tunnelClient,
		HTTPHeader:      d.handshakeHeader(r.Header),
		Subprotocols:    headerList(r.Header.Values("Sec-WebSocket-Protocol")),
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			d.relayRejection(w, ex, resp)
			return
		}
		d.handleError(w, r, err)
		return
	}
	defer upstream.CloseNow()

	// Tunnels outlive the server's per-request deadlines.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	var subprotocols []string
	if p := upstream.Subprotocol(); p != "" {
		subprotocols = []string{p}
	}
	client, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       subprotocols,
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		// Accept has already answered the client.
		d.logger.WarnContext(ctx, "client websocket handshake failed", "error", err)
		ex.status = http.StatusBadRequest
		_ = upstream.Close(websocket.StatusGoingAway, "client handshake failed")
		return
	}
	defer client.CloseNow()

	ex.status = http.StatusSwitchingProtocols
	// The limit is enforced by relay so that an oversized message can be
	// reported to both legs.
	client.SetReadLimit(-1)
	upstream.SetReadLimit(-1)

	d.metrics.RealtimeConnectionOpened()
	defer d.metrics.RealtimeConnectionClosed()

	d.logger.DebugContext(ctx, "websocket tunnel opened",
		"target", target.Redacted(),
		"subprotocol", client.Subprotocol(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.relay(gctx, client, upstream, DirectionClientToUpstream)
	})
	g.Go(func() error {
		return d.relay(gctx, upstream, client, DirectionUpstreamToClient)
	})
	err = g.Wait()

	if status := websocket.CloseStatus(err); status != -1 {
		d.logger.DebugContext(ctx, "websocket tunnel closed", "status", status)
		return
	}
	if errors.Is(err, errMessageTooBig) {
		d.logger.WarnContext(ctx, "websocket tunnel closed, message too big", "limit_bytes", d.maxMessage)
		return
	}
	if errors.Is(err, context.Canceled) {
		d.logger.DebugContext(ctx, "websocket tunnel canceled")
		return
	}
	d.logger.WarnContext(ctx, "websocket tunnel failed", "error", err)
}

// relay copies messages from src to dst until src stops. Type and payload
// are kept. When src closes, dst is closed with the same status. A message
// over the limit closes both legs with StatusMessageTooBig.
func (d *Dispatcher) relay(ctx context.Context, src, dst *websocket.Conn, direction string) error {
	for {
		typ, reader, err := src.Reader(ctx)
		if err != nil {
			status, reason := closeCode(err)
			_ = dst.Close(status, reason)
			return err
		}

		writer, err := dst.Writer(ctx, typ)
		if err != nil {
			return err
		}
		n, err := d.copyMessage(writer, reader)
		if errors.Is(err, errMessageTooBig) {
			status, reason := closeCode(err)
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = src.Close(status, reason)
			}()
			_ = dst.Close(status, reason)
			wg.Wait()
			return err
		}
		if err != nil {
			_ = writer.Close()
			return err
		}
		if err := writer.Close(); err != nil {
			return err
		}
		d.metrics.RecordRealtimeMessage(direction, int(n))
	}
}

// copyMessage streams one message payload, failing with errMessageTooBig
// once more than maxMessage bytes have been read.
func (d *Dispatcher) copyMessage(dst io.Writer, src io.Reader) (int64, error) {
	if d.maxMessage < 0 {
		return io.Copy(dst, src)
	}
	n, err := io.Copy(dst, io.LimitReader(src, d.maxMessage+1))
	if err != nil {
		return n, err
	}
	if n > d.maxMessage {
		return n, errMessageTooBig
	}
	return n, nil
}

// closeCode picks the close frame sent to the other leg when one leg ends.
func closeCode(err error) (websocket.StatusCode, string) {
	if errors.Is(err, errMessageTooBig) {
		return websocket.StatusMessageTooBig, "message too big"
	}
	var ce websocket.CloseError
	if !errors.As(err, &ce) {
		return websocket.StatusGoingAway, "peer connection lost"
	}
	switch ce.Code {
	case websocket.StatusNoStatusRcvd, websocket.StatusAbnormalClosure, websocket.StatusTLSHandshake:
		// Reserved codes that must not appear in a close frame.
		return websocket.StatusNormalClosure, ""
	}
	return ce.Code, ce.Reason
}

// handshakeHeader returns the upstream handshake headers: the client's
// headers without the connection-level ones, plus the credentials.
func (d *Dispatcher) handshakeHeader(in http.Header) http.Header {
	h := in.Clone()
	for _, v := range in.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range handshakeHeaders {
		h.Del(name)
	}
	d.credentials.Apply(h)
	return h
}

// relayRejection sends the upstream's answer to a refused handshake.
func (d *Dispatcher) relayRejection(w http.ResponseWriter, ex *exchange, resp *http.Response) {
	header := d.cors.AnnotateResponse(ex.origin, resp.Header)
	for _, name := range handshakeHeaders {
		header.Del(name)
	}
	header.Del("Content-Length")
	for k, v := range header {
		w.Header()[k] = v
	}

	ex.status = resp.StatusCode
	w.WriteHeader(resp.StatusCode)
	if resp.Body != nil {
		_, _ = io.Copy(w, io.LimitReader(resp.Body, maxRejectionBody))
	}
}
