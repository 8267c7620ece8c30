// Package router implements the host router (C6): mapping an incoming
// request host to either the global context or a specific route, by exact
// match or left-wildcard suffix match.
package router

import "strings"

// Match is the outcome of resolving a host against a route list.
type Match struct {
	Found   bool
	RouteID string
}

// Candidate is the minimal route shape the router needs to resolve a host.
type Candidate struct {
	ID           string
	IncomingHost string
	Enabled      bool
}

// Resolve finds the route whose IncomingHost matches host, preferring an
// exact match over any wildcard regardless of suffix length, and among
// wildcards the longest matching suffix (spec.md §4.6). Disabled routes
// never match. Only left-anchored "*." wildcards are recognized; any other
// occurrence of "*" in IncomingHost is treated as a literal, never-matching
// exact host.
func Resolve(host string, routes []Candidate) Match {
	host = strings.ToLower(host)

	for _, r := range routes {
		if r.Enabled && strings.ToLower(r.IncomingHost) == host {
			return Match{Found: true, RouteID: r.ID}
		}
	}

	bestLen := -1
	bestID := ""
	for _, r := range routes {
		if !r.Enabled {
			continue
		}
		suffix, ok := wildcardSuffix(r.IncomingHost)
		if !ok {
			continue
		}
		if !matchesSuffix(host, suffix) {
			continue
		}
		if len(suffix) > bestLen {
			bestLen = len(suffix)
			bestID = r.ID
		}
	}
	if bestLen >= 0 {
		return Match{Found: true, RouteID: bestID}
	}
	return Match{}
}

// wildcardSuffix reports the suffix after "*." in a left-wildcard host
// pattern, e.g. "*.ex.com" -> ("ex.com", true). Patterns not of the exact
// form "*.<suffix>" (including embedded wildcards) report ok=false.
func wildcardSuffix(pattern string) (string, bool) {
	pattern = strings.ToLower(pattern)
	if !strings.HasPrefix(pattern, "*.") {
		return "", false
	}
	suffix := pattern[2:]
	if suffix == "" || strings.Contains(suffix, "*") {
		return "", false
	}
	return suffix, true
}

// matchesSuffix reports whether host is a strict subdomain of suffix: host
// must end in "."+suffix, so "*.ex.com" matches "a.ex.com" and
// "a.b.ex.com" but not "ex.com" itself.
func matchesSuffix(host, suffix string) bool {
	return strings.HasSuffix(host, "."+suffix)
}
