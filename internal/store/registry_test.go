package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sentrywall/core/internal/waf"
)

func TestRegistryOpensGlobalStore(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewRegistry(dir, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if reg.Global() == nil {
		t.Fatalf("expected a global store")
	}
	if _, err := os.Stat(filepath.Join(dir, "global.db")); err != nil {
		t.Fatalf("expected global.db to exist: %v", err)
	}
}

func TestRegistryRouteStoreLazyCreateAndReuse(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewRegistry(dir, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	ctx := context.Background()

	ts1, err := reg.RouteStore(ctx, "route-1")
	if err != nil {
		t.Fatalf("RouteStore: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "route-route-1.db")); err != nil {
		t.Fatalf("expected per-route db file: %v", err)
	}

	if _, err := ts1.CreateRule(ctx, "admin", waf.Rule{Name: "a", Enabled: true, Priority: 1, Action: waf.ActionAllow}); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	ts2, err := reg.RouteStore(ctx, "route-1")
	if err != nil {
		t.Fatalf("RouteStore second call: %v", err)
	}
	if ts1 != ts2 {
		t.Fatalf("expected the same TenantStore instance to be reused")
	}

	snap, err := ts2.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if len(snap.Rules) != 1 {
		t.Fatalf("expected the rule created via ts1 to be visible through ts2, got %d", len(snap.Rules))
	}
}

func TestRegistryDropRouteStoreRemovesFile(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewRegistry(dir, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	ctx := context.Background()

	if _, err := reg.RouteStore(ctx, "route-2"); err != nil {
		t.Fatalf("RouteStore: %v", err)
	}
	path := filepath.Join(dir, "route-route-2.db")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected db file to exist before drop: %v", err)
	}

	if err := reg.DropRouteStore("route-2"); err != nil {
		t.Fatalf("DropRouteStore: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected db file removed after drop, stat err=%v", err)
	}
}

func TestRegistryDropRouteStoreMissingIsNoop(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewRegistry(dir, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := reg.DropRouteStore("never-created"); err != nil {
		t.Fatalf("expected no error dropping a route store that was never created, got %v", err)
	}
}
