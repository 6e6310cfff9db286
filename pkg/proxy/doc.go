// Package proxy implements the gateway dispatcher.
//
// Every inbound request goes through [Dispatcher.ServeHTTP], which takes one
// of three paths:
//
//   - Preflight: an OPTIONS request carrying an Origin header is answered
//     from the CORS policy on any path. The upstream is never contacted.
//   - Upgrading: a WebSocket upgrade on an upgrade route is tunneled. The
//     upstream handshake runs first and the client is accepted only once it
//     succeeds. Messages are then relayed unchanged in both directions.
//   - Forwarding: anything else is streamed to the upstream at the routed
//     path with the service credentials injected, and the response is
//     streamed back with CORS headers added.
//
// Requests that match no route get a 404 without any upstream connection.
// Transport failures become a single 502 or 504 response. A response that
// breaks after it has started aborts the client connection instead, so the
// truncation is visible. Upstream calls are never retried.
//
// Errors written by the gateway use a JSON body:
//
//	{"error": {"message": "...", "type": "bad_gateway", "code": "upstream_unreachable"}}
package proxy
