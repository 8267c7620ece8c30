package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sentrywall/core/internal/models"
	"github.com/sentrywall/core/internal/sinks"
	"github.com/sentrywall/core/internal/waferr"
)

// Registry owns the global store plus one lazily-created TenantStore per
// route, each backed by its own sqlite file under dataDir (spec.md §4.5:
// "one SQL database per tenant"). It is the process-wide entry point C7
// and the admin API use to reach a tenant's rules.
type Registry struct {
	dataDir string
	audit   sinks.AuditSink

	global *GlobalStore

	mu     sync.Mutex
	routes map[string]*TenantStore
}

// NewRegistry opens (creating if absent) the global store's database under
// dataDir and migrates its schema. Route stores are opened lazily on first
// reference via RouteStore.
func NewRegistry(dataDir string, audit sinks.AuditSink) (*Registry, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, waferr.Wrap(waferr.KindInternal, "create data dir", err)
	}

	db, err := openTenantDB(filepath.Join(dataDir, "global.db"))
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RuleRow{}, &RouteRow{}, &ErrorPageRow{}, &models.AdminUser{}); err != nil {
		return nil, waferr.Wrap(waferr.KindInternal, "migrate global store", err)
	}

	ts := newTenantStore("global", db, audit, loadGlobal)
	r := &Registry{
		dataDir: dataDir,
		audit:   audit,
		global:  &GlobalStore{TenantStore: ts},
		routes:  make(map[string]*TenantStore),
	}
	return r, nil
}

func openTenantDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, waferr.Wrap(waferr.KindInternal, "open sqlite database: "+path, err)
	}
	return db, nil
}

// Global returns the process-wide global store.
func (r *Registry) Global() *GlobalStore {
	return r.global
}

// AdminDB returns the global store's underlying *gorm.DB for the admin
// session layer (SPEC_FULL.md §3 "Admin principal"). Admin accounts live
// alongside global rules/routes rather than in a database of their own.
func (r *Registry) AdminDB() *gorm.DB {
	return r.global.DB
}

func (r *Registry) routeDBPath(routeID string) string {
	return filepath.Join(r.dataDir, fmt.Sprintf("route-%s.db", routeID))
}

// RouteStore returns the TenantStore for routeID, opening and migrating its
// database on first reference. It does not verify routeID names a route
// that currently exists in the global store's directory; callers resolve
// the route through the host router (C6) first.
func (r *Registry) RouteStore(ctx context.Context, routeID string) (*TenantStore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ts, ok := r.routes[routeID]; ok {
		return ts, nil
	}

	db, err := openTenantDB(r.routeDBPath(routeID))
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RuleRow{}); err != nil {
		return nil, waferr.Wrap(waferr.KindInternal, "migrate route store: "+routeID, err)
	}

	ts := newTenantStore(routeID, db, r.audit, loadRulesOnly)
	r.routes[routeID] = ts
	return ts, nil
}

// DropRouteStore closes and removes a route's database file. Callers invoke
// this after GlobalStore.DeleteRoute succeeds, completing the route's
// teardown (spec.md §4.5: route deletion destroys its tenant store).
func (r *Registry) DropRouteStore(routeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ts, ok := r.routes[routeID]; ok {
		if sqlDB, err := ts.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
		delete(r.routes, routeID)
	}

	path := r.routeDBPath(routeID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return waferr.Wrap(waferr.KindInternal, "remove route database: "+routeID, err)
	}
	return nil
}
