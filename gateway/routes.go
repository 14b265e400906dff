// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/gatehouse/admission"
)

// DefaultIdentityHeader carries the rate-limit identity when a route
// does not name its own source.
const DefaultIdentityHeader = "X-Gatehouse-Identity"

// IdentitySource says where a route reads its rate-limit identity
// from. The zero value reads DefaultIdentityHeader.
type IdentitySource struct {
	// Kind is "header", "query", or "subject".
	Kind string

	// Name is the header or query parameter name. Unused for
	// "subject".
	Name string
}

// parseIdentitySource parses a route's identity_from value:
//
//	""            → the default identity header
//	"header:NAME" → the named request header
//	"query:NAME"  → the named query parameter
//	"subject"     → the authenticated credential subject
func parseIdentitySource(value string) (IdentitySource, error) {
	if value == "" {
		return IdentitySource{Kind: "header", Name: DefaultIdentityHeader}, nil
	}
	if value == "subject" {
		return IdentitySource{Kind: "subject"}, nil
	}
	kind, name, found := strings.Cut(value, ":")
	if !found || name == "" {
		return IdentitySource{}, fmt.Errorf("identity_from %q: want \"subject\", \"header:NAME\", or \"query:NAME\"", value)
	}
	switch kind {
	case "header", "query":
		return IdentitySource{Kind: kind, Name: name}, nil
	default:
		return IdentitySource{}, fmt.Errorf("identity_from %q: unknown source %q", value, kind)
	}
}

// Extract reads the identity from a request. The subject argument is
// the verified credential subject for this request. Returns "" when
// the source is absent.
func (s IdentitySource) Extract(r *http.Request, subject string) string {
	switch s.Kind {
	case "subject":
		return subject
	case "query":
		return r.URL.Query().Get(s.Name)
	default:
		return r.Header.Get(s.Name)
	}
}

// Route binds a path prefix to an admission policy.
type Route struct {
	// Prefix is the path prefix this route matches. Longest prefix
	// wins when several match.
	Prefix string

	// Policy is the admission rule enforced on matched requests.
	Policy admission.Policy

	// IdentityFrom is where the rate-limit identity comes from.
	// Irrelevant for calendar and none policies.
	IdentityFrom IdentitySource
}

// RouteTable holds the gateway's admission routes. Requests that
// match no route are admitted without evaluation.
type RouteTable struct {
	routes []Route
}

// routeEntry is the JSONC shape of one route.
type routeEntry struct {
	Prefix       string `json:"prefix"`
	Policy       string `json:"policy"`
	IdentityFrom string `json:"identity_from"`
}

// ParseRoutes strips JSONC comments and trailing commas from data,
// then parses the route list. Each entry needs a prefix starting with
// "/" and a policy ("rate", "calendar", or "none"); identity_from is
// optional.
func ParseRoutes(data []byte) (*RouteTable, error) {
	stripped := jsonc.ToJSON(data)

	var entries []routeEntry
	if err := json.Unmarshal(stripped, &entries); err != nil {
		return nil, fmt.Errorf("parsing routes: %w", err)
	}

	table := &RouteTable{routes: make([]Route, 0, len(entries))}
	seen := make(map[string]bool, len(entries))
	for i, entry := range entries {
		if entry.Prefix == "" || !strings.HasPrefix(entry.Prefix, "/") {
			return nil, fmt.Errorf("route %d: prefix %q must start with \"/\"", i, entry.Prefix)
		}
		if seen[entry.Prefix] {
			return nil, fmt.Errorf("route %d: duplicate prefix %q", i, entry.Prefix)
		}
		seen[entry.Prefix] = true

		policy, err := admission.ParsePolicy(entry.Policy)
		if err != nil {
			return nil, fmt.Errorf("route %d (%s): %w", i, entry.Prefix, err)
		}
		source, err := parseIdentitySource(entry.IdentityFrom)
		if err != nil {
			return nil, fmt.Errorf("route %d (%s): %w", i, entry.Prefix, err)
		}

		table.routes = append(table.routes, Route{
			Prefix:       entry.Prefix,
			Policy:       policy,
			IdentityFrom: source,
		})
	}
	return table, nil
}

// LoadRoutes reads a JSONC route file from disk and parses it.
func LoadRoutes(path string) (*RouteTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	table, err := ParseRoutes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return table, nil
}

// Match finds the route with the longest prefix matching path.
// Returns false when no route matches.
func (t *RouteTable) Match(path string) (Route, bool) {
	var best Route
	found := false
	for _, route := range t.routes {
		if !strings.HasPrefix(path, route.Prefix) {
			continue
		}
		if !found || len(route.Prefix) > len(best.Prefix) {
			best = route
			found = true
		}
	}
	return best, found
}

// Len returns the number of routes in the table.
func (t *RouteTable) Len() int {
	return len(t.routes)
}
