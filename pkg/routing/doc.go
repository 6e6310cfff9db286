// Package routing maps inbound request paths to upstream sub-API paths.
//
// A [Table] is built once at startup from the configured route entries and is
// read-only afterwards, so concurrent lookups need no locking. Each entry
// binds a static path prefix (for example "/rest/v1") to the prefix the
// upstream expects and to a flag saying whether the route may be upgraded to
// a WebSocket tunnel.
//
// # Matching
//
// Resolution is a longest-prefix match on path segment boundaries. The prefix
// "/rest/v1" matches "/rest/v1" and "/rest/v1/items" but never "/rest/v1x".
// On a match the prefix is replaced by the entry's rewrite prefix and the rest
// of the path is kept byte-for-byte, escapes included:
//
//	table, _ := routing.NewTable(routing.DefaultEntries())
//	res, err := table.Resolve("/rest/v1/items")
//	// res.Entry.Prefix == "/rest/v1", res.Path == "/rest/v1/items"
//
// Paths that match no entry return [ErrRouteNotFound].
package routing
