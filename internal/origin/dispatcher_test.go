package origin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sentrywall/core/internal/store"
)

func TestDispatchURLForwardsAndStripsHopByHop(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Host == "" {
			t.Errorf("expected a forwarded Host header")
		}
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hello"))
	}))
	defer upstream.Close()

	d := New(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/some/path", nil)
	req.Header.Set("Connection", "close")

	result, err := d.Dispatch(context.Background(), store.Route{OriginType: "url", OriginURL: upstream.URL}, req)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Misconfig {
		t.Fatalf("expected a configured origin, got misconfig")
	}
	if result.StatusCode != http.StatusTeapot {
		t.Fatalf("expected upstream status to pass through, got %d", result.StatusCode)
	}
	if string(result.Body) != "hello" {
		t.Fatalf("expected body to pass through, got %q", result.Body)
	}
	if result.Header.Get("Connection") != "" {
		t.Fatalf("expected hop-by-hop header stripped from response, got %q", result.Header.Get("Connection"))
	}
	if result.Header.Get("X-Upstream") != "yes" {
		t.Fatalf("expected non-hop-by-hop header preserved")
	}
}

func TestDispatchURLMisconfiguredWithoutURL(t *testing.T) {
	d := New(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	result, err := d.Dispatch(context.Background(), store.Route{OriginType: "url"}, req)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !result.Misconfig {
		t.Fatalf("expected misconfig for a url route with no origin_url")
	}
}

func TestDispatchServiceMisconfiguredWithoutDockerClient(t *testing.T) {
	d := New(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	result, err := d.Dispatch(context.Background(), store.Route{OriginType: "service", OriginServiceName: "app"}, req)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !result.Misconfig {
		t.Fatalf("expected misconfig when no docker client is configured")
	}
}

func TestDispatchUnknownOriginTypeIsMisconfigured(t *testing.T) {
	d := New(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	result, err := d.Dispatch(context.Background(), store.Route{OriginType: "carrier-pigeon"}, req)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !result.Misconfig {
		t.Fatalf("expected misconfig for an unrecognized origin_type")
	}
}
