package store

import "github.com/sentrywall/core/internal/waf"

// Snapshot is an immutable value representing a tenant store's cached
// configuration at a point in time. Readers take it by reference and never
// observe a torn ruleset: a write only drops the cached Snapshot
// (TenantStore.invalidate), and the next read builds a fresh one outside
// any lock before publishing it under the store's mutex
// (TenantStore.GetSnapshot).
type Snapshot struct {
	Rules      []waf.Rule
	Routes     []Route           // non-empty only for the global store
	ErrorPages map[int]ErrorPage // non-empty only for the global store
}

// DefaultErrorPage is the hard-coded fallback spec.md §4.5/§4.7 require
// when no configured error page resolves a block's HTTP code.
var DefaultErrorPage = ErrorPage{
	HTTPCode:    403,
	Name:        "default-forbidden",
	ContentType: "text/html",
	Body:        "<h1>Forbidden</h1>",
}

// ResolveErrorPage returns the configured error page for code, falling back
// to DefaultErrorPage when none is configured.
func (s *Snapshot) ResolveErrorPage(code int) ErrorPage {
	if code == 0 {
		code = DefaultErrorPage.HTTPCode
	}
	if s != nil {
		if p, ok := s.ErrorPages[code]; ok {
			return p
		}
	}
	return DefaultErrorPage
}
