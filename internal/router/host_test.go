package router

import "testing"

// TestResolveWildcardHost is scenario 3 from spec.md §8.
func TestResolveWildcardHost(t *testing.T) {
	routes := []Candidate{{ID: "r1", IncomingHost: "*.ex.com", Enabled: true}}

	m := Resolve("a.b.ex.com", routes)
	if !m.Found || m.RouteID != "r1" {
		t.Fatalf("expected a.b.ex.com to match *.ex.com, got %+v", m)
	}

	m = Resolve("ex.com", routes)
	if m.Found {
		t.Fatalf("expected bare suffix ex.com not to match *.ex.com wildcard, got %+v", m)
	}
}

func TestResolveExactBeatsWildcard(t *testing.T) {
	routes := []Candidate{
		{ID: "wild", IncomingHost: "*.ex.com", Enabled: true},
		{ID: "exact", IncomingHost: "a.ex.com", Enabled: true},
	}
	m := Resolve("a.ex.com", routes)
	if !m.Found || m.RouteID != "exact" {
		t.Fatalf("expected exact match to win over wildcard, got %+v", m)
	}
}

func TestResolveLongestWildcardSuffixWins(t *testing.T) {
	routes := []Candidate{
		{ID: "short", IncomingHost: "*.com", Enabled: true},
		{ID: "long", IncomingHost: "*.ex.com", Enabled: true},
	}
	m := Resolve("a.ex.com", routes)
	if !m.Found || m.RouteID != "long" {
		t.Fatalf("expected longest matching wildcard suffix to win, got %+v", m)
	}
}

func TestResolveDisabledRouteIgnored(t *testing.T) {
	routes := []Candidate{{ID: "r1", IncomingHost: "a.ex.com", Enabled: false}}
	m := Resolve("a.ex.com", routes)
	if m.Found {
		t.Fatalf("expected disabled route to never match, got %+v", m)
	}
}

func TestResolveNoMatch(t *testing.T) {
	routes := []Candidate{{ID: "r1", IncomingHost: "other.com", Enabled: true}}
	m := Resolve("nope.com", routes)
	if m.Found {
		t.Fatalf("expected no match, got %+v", m)
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	routes := []Candidate{{ID: "r1", IncomingHost: "App.Example.COM", Enabled: true}}
	m := Resolve("app.example.com", routes)
	if !m.Found || m.RouteID != "r1" {
		t.Fatalf("expected case-insensitive host match, got %+v", m)
	}
}
