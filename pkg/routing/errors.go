package routing

import (
	"errors"
	"fmt"
)

// Common routing errors that can be checked with errors.Is().
var (
	// ErrRouteNotFound is returned when no configured prefix matches a path.
	ErrRouteNotFound = errors.New("route not found")

	// ErrInvalidRoute is returned when a route entry cannot be added to a table.
	ErrInvalidRoute = errors.New("invalid route")
)

// RouteNotFoundError is returned by Resolve when a path matches no entry.
type RouteNotFoundError struct {
	// Path is the escaped request path that was looked up.
	Path string
}

// Error implements the error interface.
func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route for path %q", e.Path)
}

// Is implements error matching for errors.Is().
func (e *RouteNotFoundError) Is(target error) bool {
	return target == ErrRouteNotFound
}

// InvalidRouteError describes a route entry rejected by NewTable.
type InvalidRouteError struct {
	// Prefix is the offending entry's prefix.
	Prefix string

	// Reason explains why the entry was rejected.
	Reason string
}

// Error implements the error interface.
func (e *InvalidRouteError) Error() string {
	return fmt.Sprintf("invalid route %q: %s", e.Prefix, e.Reason)
}

// Is implements error matching for errors.Is().
func (e *InvalidRouteError) Is(target error) bool {
	return target == ErrInvalidRoute
}
