package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies a failed exchange.
type ErrorKind string

// Failure kinds. The values double as the "code" of the JSON error body and
// the "kind" label of upstream error metrics.
const (
	KindRouteNotFound       ErrorKind = "route_not_found"
	KindCORSRejected        ErrorKind = "cors_rejected"
	KindUpstreamUnreachable ErrorKind = "upstream_unreachable"
	KindUpstreamTimeout     ErrorKind = "upstream_timeout"
	KindUpstreamStream      ErrorKind = "upstream_stream"
	KindClientCanceled      ErrorKind = "client_canceled"
)

// StatusClientClosedRequest is recorded when the client goes away before a
// response is written. It is never sent.
const StatusClientClosedRequest = 499

// Error types used in the JSON error body.
const (
	ErrorTypeNotFound         = "not_found"
	ErrorTypePermissionDenied = "permission_denied"
	ErrorTypeBadGateway       = "bad_gateway"
	ErrorTypeGatewayTimeout   = "gateway_timeout"
	ErrorTypeServerError      = "server_error"
)

// GatewayError is a request failure produced by the gateway itself rather
// than relayed from the upstream.
type GatewayError struct {
	Kind ErrorKind

	// Route is the matched route prefix, empty when routing failed.
	Route string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status sent for the error.
func (e *GatewayError) StatusCode() int {
	switch e.Kind {
	case KindRouteNotFound:
		return http.StatusNotFound
	case KindCORSRejected:
		return http.StatusForbidden
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindUpstreamUnreachable, KindUpstreamStream:
		return http.StatusBadGateway
	case KindClientCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// Response builds the JSON error body for the error.
func (e *GatewayError) Response() *ErrorResponse {
	switch e.Kind {
	case KindRouteNotFound:
		return NewErrorResponse("No route matches the request path", ErrorTypeNotFound, string(e.Kind))
	case KindCORSRejected:
		return NewErrorResponse("Origin is not allowed", ErrorTypePermissionDenied, string(e.Kind))
	case KindUpstreamTimeout:
		return NewErrorResponse("The upstream did not respond in time", ErrorTypeGatewayTimeout, string(e.Kind))
	case KindUpstreamUnreachable, KindUpstreamStream:
		return NewErrorResponse("The upstream could not be reached", ErrorTypeBadGateway, string(e.Kind))
	default:
		return NewErrorResponse("An internal error occurred", ErrorTypeServerError, "internal_error")
	}
}

// ErrorResponse is the JSON error body written by the gateway.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	// Message is a human-readable description.
	Message string `json:"message"`

	// Type categorizes the error (e.g. "bad_gateway").
	Type string `json:"type"`

	// Code is a machine-readable error code (e.g. "upstream_unreachable").
	Code string `json:"code,omitempty"`
}

// NewErrorResponse creates an error body.
func NewErrorResponse(message, errorType, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Code:    code,
		},
	}
}

// WriteErrorResponse writes errResp with the given status. Headers already
// set on w are kept.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, errResp *ErrorResponse) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(errResp)
}

// classify maps a transport error to a failure kind. ctx is the inbound
// request context, used to tell client cancellation from upstream failure.
func classify(ctx context.Context, err error) ErrorKind {
	if ctx.Err() != nil {
		return KindClientCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindUpstreamTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindUpstreamTimeout
	}
	return KindUpstreamUnreachable
}
