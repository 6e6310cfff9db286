package routing

import (
	"sort"
	"strings"
)

// Default sub-API prefixes exposed by the gateway.
const (
	PrefixData      = "/rest/v1"
	PrefixAuth      = "/auth/v1"
	PrefixRealtime  = "/realtime/v1"
	PrefixFunctions = "/functions/v1"
	PrefixStorage   = "/storage/v1"
)

// Entry is a single route: inbound prefix, upstream prefix and behavior flags.
type Entry struct {
	// Prefix is the inbound path prefix (e.g., "/rest/v1").
	Prefix string

	// RewritePrefix replaces Prefix in the upstream path. Empty means
	// the prefix is kept as is.
	RewritePrefix string

	// Upgrade marks the route as accepting WebSocket upgrades.
	Upgrade bool
}

// Resolution is the result of a successful lookup.
type Resolution struct {
	// Entry is the matched route.
	Entry Entry

	// Path is the escaped upstream path: the rewrite prefix followed by the
	// unmatched remainder of the inbound path.
	Path string
}

// Table is an immutable longest-prefix route table.
type Table struct {
	// byLength holds entries sorted by descending prefix length.
	byLength []Entry

	// ordered holds entries in configuration order.
	ordered []Entry
}

// DefaultEntries returns the five sub-API routes of the backend platform.
// Only the realtime route accepts upgrades.
func DefaultEntries() []Entry {
	return []Entry{
		{Prefix: PrefixData, RewritePrefix: PrefixData},
		{Prefix: PrefixAuth, RewritePrefix: PrefixAuth},
		{Prefix: PrefixRealtime, RewritePrefix: PrefixRealtime, Upgrade: true},
		{Prefix: PrefixFunctions, RewritePrefix: PrefixFunctions},
		{Prefix: PrefixStorage, RewritePrefix: PrefixStorage},
	}
}

// NewTable validates and normalizes entries and builds a Table.
// Prefixes must start with "/" and be unique once a trailing slash is removed.
func NewTable(entries []Entry) (*Table, error) {
	if len(entries) == 0 {
		return nil, &InvalidRouteError{Reason: "at least one route is required"}
	}

	seen := make(map[string]bool, len(entries))
	ordered := make([]Entry, 0, len(entries))

	for _, e := range entries {
		normalized, err := normalize(e)
		if err != nil {
			return nil, err
		}
		if seen[normalized.Prefix] {
			return nil, &InvalidRouteError{Prefix: e.Prefix, Reason: "duplicate prefix"}
		}
		seen[normalized.Prefix] = true
		ordered = append(ordered, normalized)
	}

	byLength := make([]Entry, len(ordered))
	copy(byLength, ordered)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i].Prefix) > len(byLength[j].Prefix)
	})

	return &Table{byLength: byLength, ordered: ordered}, nil
}

// normalize trims trailing slashes and fills in the rewrite prefix.
func normalize(e Entry) (Entry, error) {
	if !strings.HasPrefix(e.Prefix, "/") {
		return Entry{}, &InvalidRouteError{Prefix: e.Prefix, Reason: "prefix must start with /"}
	}
	if e.RewritePrefix == "" {
		e.RewritePrefix = e.Prefix
	}
	if !strings.HasPrefix(e.RewritePrefix, "/") {
		return Entry{}, &InvalidRouteError{Prefix: e.Prefix, Reason: "rewrite prefix must start with /"}
	}
	if strings.ContainsAny(e.Prefix, "?#") || strings.ContainsAny(e.RewritePrefix, "?#") {
		return Entry{}, &InvalidRouteError{Prefix: e.Prefix, Reason: "prefixes cannot contain a query or fragment"}
	}

	e.Prefix = trimSlash(e.Prefix)
	e.RewritePrefix = trimSlash(e.RewritePrefix)
	return e, nil
}

// trimSlash removes trailing slashes but keeps the root prefix "/".
func trimSlash(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// Resolve finds the longest prefix matching escapedPath and returns the
// rewritten upstream path. The remainder after the prefix is copied without
// decoding so that escapes reach the upstream unchanged.
func (t *Table) Resolve(escapedPath string) (Resolution, error) {
	for _, e := range t.byLength {
		rest, ok := matchPrefix(escapedPath, e.Prefix)
		if !ok {
			continue
		}
		return Resolution{Entry: e, Path: joinPath(e.RewritePrefix, rest)}, nil
	}
	return Resolution{}, &RouteNotFoundError{Path: escapedPath}
}

// Entries returns a copy of the normalized entries in configuration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// Len returns the number of routes.
func (t *Table) Len() int {
	return len(t.ordered)
}

// matchPrefix reports whether path lies under prefix on a segment boundary
// and returns the unmatched remainder, which is empty or starts with "/".
func matchPrefix(path, prefix string) (string, bool) {
	if prefix == "/" {
		return path, strings.HasPrefix(path, "/")
	}
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := path[len(prefix):]
	if rest != "" && rest[0] != '/' {
		return "", false
	}
	return rest, true
}

func joinPath(rewrite, rest string) string {
	if rewrite == "/" {
		rewrite = ""
	}
	p := rewrite + rest
	if p == "" {
		return "/"
	}
	return p
}
