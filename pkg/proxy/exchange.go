package proxy

import (
	"context"
	"time"

	"mercator-hq/ingress/pkg/routing"
)

// exchange tracks one request through the dispatcher.
type exchange struct {
	start  time.Time
	origin string

	// route is the matched prefix, or routeUnmatched.
	route      string
	resolution routing.Resolution

	status int
	kind   ErrorKind
}

// Metric route labels for requests that never reach a route.
const (
	routeUnmatched = "unmatched"
	routePreflight = "preflight"
)

type exchangeKey struct{}

func withExchange(ctx context.Context, ex *exchange) context.Context {
	return context.WithValue(ctx, exchangeKey{}, ex)
}

// exchangeFrom returns the exchange stored in ctx. The reverse proxy hooks
// always run under a context derived from the inbound request.
func exchangeFrom(ctx context.Context) *exchange {
	if ex, ok := ctx.Value(exchangeKey{}).(*exchange); ok {
		return ex
	}
	return &exchange{start: time.Now(), route: routeUnmatched}
}

func (ex *exchange) fail(kind ErrorKind, status int) {
	ex.kind = kind
	ex.status = status
}
