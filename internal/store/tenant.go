package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/google/uuid"
	"github.com/sentrywall/core/internal/sinks"
	"github.com/sentrywall/core/internal/waf"
	"github.com/sentrywall/core/internal/waferr"
)

// loader builds a fresh Snapshot from db. The global store's loader also
// reads routes and error pages; a route store's loader reads only rules.
type loader func(db *gorm.DB) (*Snapshot, error)

// TenantStore is the durable, cached configuration store for one tenant
// (the global singleton, or one per route). Evaluations read an immutable
// snapshot acquired without blocking writers. Writes take no store-level
// lock: each runs in its own database transaction, so concurrent writes are
// serialized only by the database, and each invalidates the snapshot only
// after its transaction commits.
type TenantStore struct {
	ID    string
	DB    *gorm.DB
	Audit sinks.AuditSink

	mu       sync.RWMutex
	snapshot *Snapshot
	group    singleflight.Group
	load     loader
}

func newTenantStore(id string, db *gorm.DB, audit sinks.AuditSink, load loader) *TenantStore {
	return &TenantStore{ID: id, DB: db, Audit: audit, load: load}
}

func loadRulesOnly(db *gorm.DB) (*Snapshot, error) {
	var rows []RuleRow
	if err := db.Order("priority asc, id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	rules := make([]waf.Rule, 0, len(rows))
	for _, row := range rows {
		r, err := ruleFromRow(row)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return &Snapshot{Rules: rules}, nil
}

// GetSnapshot returns the cached view, loading from persistence on a cold
// or invalidated cache. Concurrent cold reads collapse onto a single SQL
// load via singleflight, preventing a thundering reload (spec.md §4.5/§5).
func (s *TenantStore) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	if s.snapshot != nil {
		snap := s.snapshot
		s.mu.RUnlock()
		return snap, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.group.Do(s.ID, func() (any, error) {
		s.mu.RLock()
		if s.snapshot != nil {
			snap := s.snapshot
			s.mu.RUnlock()
			return snap, nil
		}
		s.mu.RUnlock()

		snap, err := s.load(s.DB.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.snapshot = snap
		s.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, waferr.Wrap(waferr.KindInternal, "load tenant snapshot", err)
	}
	return v.(*Snapshot), nil
}

func (s *TenantStore) invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
}

// Evaluate projects req and runs the rule set evaluator (C4) against the
// cached ruleset. This is the hot path: no I/O occurs unless the cache is
// cold, in which case a single load is performed and shared.
func (s *TenantStore) Evaluate(ctx context.Context, req *waf.Request) (waf.Outcome, error) {
	snap, err := s.GetSnapshot(ctx)
	if err != nil {
		return waf.Outcome{}, err
	}
	return waf.Evaluate(snap.Rules, waf.Project(req)), nil
}

func (s *TenantStore) appendAudit(ctx context.Context, actor, action, targetID string, before, after any) {
	if s.Audit == nil {
		return
	}
	_ = s.Audit.Append(ctx, sinks.AuditRecord{
		Actor:     actor,
		Context:   s.ID,
		Action:    action,
		TargetID:  targetID,
		Before:    before,
		After:     after,
		Timestamp: time.Now(),
	})
}

// enabledRulesExcept returns the enabled rules currently in tx, excluding
// the row with UUID == exceptID (used by UpdateRule to not conflict with
// its own prior priority).
func enabledRulesExcept(tx *gorm.DB, exceptID string) ([]RuleRow, error) {
	var rows []RuleRow
	q := tx.Where("enabled = ?", true)
	if exceptID != "" {
		q = q.Where("uuid <> ?", exceptID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// redensifyPriorities rewrites the enabled rules' priorities in tx to the
// dense sequence 1..N in their current relative order (by priority, then
// id), closing any gap left by a deletion. Rules already holding the
// correct priority are left untouched. Required by spec.md §3: "Enabled
// rules within one tenant … form a dense sequence 1..N after any edit."
func redensifyPriorities(tx *gorm.DB) error {
	var rows []RuleRow
	if err := tx.Where("enabled = ?", true).Order("priority asc, uuid asc").Find(&rows).Error; err != nil {
		return waferr.Wrap(waferr.KindInternal, "list enabled rules for redensify", err)
	}
	for i, row := range rows {
		want := i + 1
		if row.Priority == want {
			continue
		}
		if err := tx.Model(&RuleRow{}).Where("id = ?", row.ID).Update("priority", want).Error; err != nil {
			return waferr.Wrap(waferr.KindInternal, "redensify priority", err)
		}
	}
	return nil
}

func maxPriority(rows []RuleRow) int {
	max := 0
	for _, r := range rows {
		if r.Priority > max {
			max = r.Priority
		}
	}
	return max
}

// CreateRule inserts a new rule. Priority must be <= current-max+1 and > 0
// when the rule is enabled, and must not collide with another enabled
// rule's priority in this tenant (spec.md §9 Open Question, tightened per
// SPEC_FULL.md to reject on Conflict rather than permit a duplicate).
func (s *TenantStore) CreateRule(ctx context.Context, actor string, r waf.Rule) (waf.Rule, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	var result waf.Rule
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.Enabled {
			existing, err := enabledRulesExcept(tx, "")
			if err != nil {
				return err
			}
			if r.Priority <= 0 || r.Priority > maxPriority(existing)+1 {
				return waferr.New(waferr.KindInvalidInput, "priority must be positive and <= current max + 1")
			}
			for _, e := range existing {
				if e.Priority == r.Priority {
					return waferr.New(waferr.KindConflict, fmt.Sprintf("priority %d already in use", r.Priority))
				}
			}
		}

		row, err := ruleToRow(r)
		if err != nil {
			return waferr.Wrap(waferr.KindInvalidInput, "encode rule", err)
		}
		if err := tx.Create(&row).Error; err != nil {
			return waferr.Wrap(waferr.KindInternal, "insert rule", err)
		}
		result = r
		return nil
	})
	if err != nil {
		return waf.Rule{}, err
	}

	s.invalidate()
	s.appendAudit(ctx, actor, "create_rule", result.ID, nil, result)
	return result, nil
}

// UpdateRule replaces a rule's fields in full, then re-densifies the enabled
// rules' priorities, since disabling or moving a rule can leave a gap.
func (s *TenantStore) UpdateRule(ctx context.Context, actor, id string, r waf.Rule) (waf.Rule, error) {
	r.ID = id
	var before waf.Rule
	var after waf.Rule

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existingRow RuleRow
		if err := tx.Where("uuid = ?", id).First(&existingRow).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return waferr.New(waferr.KindNotFound, "rule not found: "+id)
			}
			return waferr.Wrap(waferr.KindInternal, "lookup rule", err)
		}
		prevRule, err := ruleFromRow(existingRow)
		if err != nil {
			return err
		}
		before = prevRule

		if r.Enabled {
			others, err := enabledRulesExcept(tx, id)
			if err != nil {
				return err
			}
			if r.Priority <= 0 || r.Priority > maxPriority(others)+1 {
				return waferr.New(waferr.KindInvalidInput, "priority must be positive and <= current max + 1")
			}
			for _, o := range others {
				if o.Priority == r.Priority {
					return waferr.New(waferr.KindConflict, fmt.Sprintf("priority %d already in use", r.Priority))
				}
			}
		}

		row, err := ruleToRow(r)
		if err != nil {
			return waferr.Wrap(waferr.KindInvalidInput, "encode rule", err)
		}
		row.ID = existingRow.ID
		row.RouteID = existingRow.RouteID
		if err := tx.Save(&row).Error; err != nil {
			return waferr.Wrap(waferr.KindInternal, "update rule", err)
		}
		if err := redensifyPriorities(tx); err != nil {
			return err
		}
		after = r
		return nil
	})
	if err != nil {
		return waf.Rule{}, err
	}

	s.invalidate()
	s.appendAudit(ctx, actor, "update_rule", id, before, after)
	return after, nil
}

// DeleteRule removes a rule by id.
func (s *TenantStore) DeleteRule(ctx context.Context, actor, id string) error {
	var before waf.Rule
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row RuleRow
		if err := tx.Where("uuid = ?", id).First(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return waferr.New(waferr.KindNotFound, "rule not found: "+id)
			}
			return waferr.Wrap(waferr.KindInternal, "lookup rule", err)
		}
		r, err := ruleFromRow(row)
		if err != nil {
			return err
		}
		before = r
		if err := tx.Delete(&RuleRow{}, row.ID).Error; err != nil {
			return waferr.Wrap(waferr.KindInternal, "delete rule", err)
		}
		if row.Enabled {
			if err := redensifyPriorities(tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate()
	s.appendAudit(ctx, actor, "delete_rule", id, before, nil)
	return nil
}

// Reorder atomically re-densifies priorities 1..len(activeIDsInOrder) for
// exactly the rules named, in the order given. The set of ids must equal
// exactly the set of currently-enabled rule ids in this tenant; any
// mismatch (unknown id, disabled id, or omitted enabled id) is InvalidInput.
func (s *TenantStore) Reorder(ctx context.Context, actor string, activeIDsInOrder []string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []RuleRow
		if err := tx.Where("enabled = ?", true).Find(&rows).Error; err != nil {
			return waferr.Wrap(waferr.KindInternal, "list enabled rules", err)
		}
		byID := make(map[string]RuleRow, len(rows))
		for _, r := range rows {
			byID[r.UUID] = r
		}
		if len(activeIDsInOrder) != len(rows) {
			return waferr.New(waferr.KindInvalidInput, "reorder list must name exactly the enabled rules")
		}
		seen := make(map[string]bool, len(activeIDsInOrder))
		for _, id := range activeIDsInOrder {
			row, ok := byID[id]
			if !ok {
				return waferr.New(waferr.KindInvalidInput, "id not enabled or not in this store: "+id)
			}
			if seen[id] {
				return waferr.New(waferr.KindInvalidInput, "duplicate id in reorder list: "+id)
			}
			seen[id] = true
			_ = row
		}

		for i, id := range activeIDsInOrder {
			row := byID[id]
			row.Priority = i + 1
			if err := tx.Model(&RuleRow{}).Where("id = ?", row.ID).Update("priority", row.Priority).Error; err != nil {
				return waferr.Wrap(waferr.KindInternal, "write reordered priority", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate()
	s.appendAudit(ctx, actor, "reorder", "", nil, activeIDsInOrder)
	return nil
}
