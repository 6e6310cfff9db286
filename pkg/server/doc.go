// Package server runs the gateway's single HTTP(S) listener.
//
// The server mounts a handful of ambient GET endpoints next to the
// dispatcher:
//
//	GET /          {"message": "Gateway is running!"}
//	GET /health    liveness
//	GET /ready     readiness, backed by the upstream probe
//	GET /metrics   Prometheus metrics, when enabled
//
// Every other request, including preflights on the paths above, goes to the
// dispatcher. The handler is wrapped with request ID, logging and recovery
// middleware.
//
// Start binds the socket and serves until its context is canceled, then
// shuts down gracefully. A bind failure is returned from Start. WebSocket
// tunnels are hijacked connections that graceful shutdown does not track;
// they are ended once shutdown has drained the ordinary requests.
package server
