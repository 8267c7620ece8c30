package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sentrywall/core/internal/waf"
	"github.com/sentrywall/core/internal/waferr"
)

// GlobalStore is the one process-wide tenant store that additionally holds
// the authoritative route directory and the error-page table (spec.md
// §4.5 "Global store special roles").
type GlobalStore struct {
	*TenantStore
}

func loadGlobal(db *gorm.DB) (*Snapshot, error) {
	base, err := loadRulesOnly(db)
	if err != nil {
		return nil, err
	}

	var routeRows []RouteRow
	if err := db.Find(&routeRows).Error; err != nil {
		return nil, err
	}
	routes := make([]Route, 0, len(routeRows))
	for _, rr := range routeRows {
		routes = append(routes, routeFromRow(rr))
	}

	var pageRows []ErrorPageRow
	if err := db.Find(&pageRows).Error; err != nil {
		return nil, err
	}
	pages := make(map[int]ErrorPage, len(pageRows))
	for _, pr := range pageRows {
		pages[pr.HTTPCode] = errorPageFromRow(pr)
	}

	base.Routes = routes
	base.ErrorPages = pages
	return base, nil
}

func admissionExpression(host string) waf.Expression {
	return waf.Expression{{Field: "request.headers.host", Operator: waf.OpEquals, Value: host}}
}

func nextEnabledPriority(tx *gorm.DB, exceptID string) (int, error) {
	rows, err := enabledRulesExcept(tx, exceptID)
	if err != nil {
		return 0, err
	}
	return maxPriority(rows) + 1, nil
}

// CreateRoute inserts a route and, in the same transaction, its auto-
// generated route-admission ALLOW rule bound by RuleRow.RouteID.
func (g *GlobalStore) CreateRoute(ctx context.Context, actor string, r Route) (Route, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	var result Route
	err := g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&RouteRow{}).Where("incoming_host = ?", r.IncomingHost).Count(&count).Error; err != nil {
			return waferr.Wrap(waferr.KindInternal, "check existing host", err)
		}
		if count > 0 {
			return waferr.New(waferr.KindConflict, "incoming_host already registered: "+r.IncomingHost)
		}

		row := RouteRow{
			UUID:              r.ID,
			IncomingHost:      r.IncomingHost,
			OriginType:        r.OriginType,
			OriginURL:         r.OriginURL,
			OriginServiceName: r.OriginServiceName,
			Enabled:           r.Enabled,
		}
		if err := tx.Create(&row).Error; err != nil {
			return waferr.Wrap(waferr.KindInternal, "insert route", err)
		}

		admissionRule := waf.Rule{
			ID:         uuid.NewString(),
			Name:       "route-admission: " + r.IncomingHost,
			Enabled:    r.Enabled,
			Action:     waf.ActionAllow,
			Expression: admissionExpression(r.IncomingHost),
			Tags:       []string{RuleAdmissionTag},
		}
		if r.Enabled {
			prio, err := nextEnabledPriority(tx, "")
			if err != nil {
				return err
			}
			admissionRule.Priority = prio
		}
		admissionRow, err := ruleToRow(admissionRule)
		if err != nil {
			return waferr.Wrap(waferr.KindInternal, "encode admission rule", err)
		}
		admissionRow.RouteID = r.ID
		if err := tx.Create(&admissionRow).Error; err != nil {
			return waferr.Wrap(waferr.KindInternal, "insert admission rule", err)
		}

		result = r
		return nil
	})
	if err != nil {
		return Route{}, err
	}

	g.invalidate()
	g.appendAudit(ctx, actor, "create_route", result.ID, nil, result)
	return result, nil
}

// UpdateRoute replaces a route's fields. Enabling/disabling the route
// toggles its admission rule's Enabled in the same transaction, assigning
// or releasing a priority slot as needed (spec.md §4.5, §8 route
// auto-admission coherence property).
func (g *GlobalStore) UpdateRoute(ctx context.Context, actor, id string, r Route) (Route, error) {
	r.ID = id
	var before Route

	err := g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing RouteRow
		if err := tx.Where("uuid = ?", id).First(&existing).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return waferr.New(waferr.KindNotFound, "route not found: "+id)
			}
			return waferr.Wrap(waferr.KindInternal, "lookup route", err)
		}
		before = routeFromRow(existing)

		if r.IncomingHost != existing.IncomingHost {
			var count int64
			if err := tx.Model(&RouteRow{}).Where("incoming_host = ? AND uuid <> ?", r.IncomingHost, id).Count(&count).Error; err != nil {
				return waferr.Wrap(waferr.KindInternal, "check existing host", err)
			}
			if count > 0 {
				return waferr.New(waferr.KindConflict, "incoming_host already registered: "+r.IncomingHost)
			}
		}

		existing.IncomingHost = r.IncomingHost
		existing.OriginType = r.OriginType
		existing.OriginURL = r.OriginURL
		existing.OriginServiceName = r.OriginServiceName
		existing.Enabled = r.Enabled
		if err := tx.Save(&existing).Error; err != nil {
			return waferr.Wrap(waferr.KindInternal, "update route", err)
		}

		var admissionRow RuleRow
		if err := tx.Where("route_id = ?", id).First(&admissionRow).Error; err != nil {
			return waferr.Wrap(waferr.KindInternal, "lookup admission rule", err)
		}
		admissionRow.Enabled = r.Enabled
		admissionRow.Name = "route-admission: " + r.IncomingHost
		exprJSON, err := json.Marshal(admissionExpression(r.IncomingHost))
		if err != nil {
			return waferr.Wrap(waferr.KindInternal, "encode admission expression", err)
		}
		admissionRow.ExpressionJSON = string(exprJSON)
		if r.Enabled {
			prio, err := nextEnabledPriority(tx, admissionRow.UUID)
			if err != nil {
				return err
			}
			admissionRow.Priority = prio
		}
		if err := tx.Save(&admissionRow).Error; err != nil {
			return waferr.Wrap(waferr.KindInternal, "update admission rule", err)
		}
		if err := redensifyPriorities(tx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Route{}, err
	}

	g.invalidate()
	g.appendAudit(ctx, actor, "update_route", id, before, r)
	return r, nil
}

// DeleteRoute removes a route and its admission rule transactionally. The
// caller (Registry) is responsible for destroying the route's own
// TenantStore afterward.
func (g *GlobalStore) DeleteRoute(ctx context.Context, actor, id string) error {
	var before Route
	err := g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row RouteRow
		if err := tx.Where("uuid = ?", id).First(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return waferr.New(waferr.KindNotFound, "route not found: "+id)
			}
			return waferr.Wrap(waferr.KindInternal, "lookup route", err)
		}
		before = routeFromRow(row)

		if err := tx.Where("route_id = ?", id).Delete(&RuleRow{}).Error; err != nil {
			return waferr.Wrap(waferr.KindInternal, "delete admission rule", err)
		}
		if err := tx.Delete(&RouteRow{}, row.ID).Error; err != nil {
			return waferr.Wrap(waferr.KindInternal, "delete route", err)
		}
		if err := redensifyPriorities(tx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	g.invalidate()
	g.appendAudit(ctx, actor, "delete_route", id, before, nil)
	return nil
}

// UpsertErrorPage creates or replaces the error page for a status code.
func (g *GlobalStore) UpsertErrorPage(ctx context.Context, actor string, page ErrorPage) (ErrorPage, error) {
	row := ErrorPageRow{
		HTTPCode:    page.HTTPCode,
		Name:        page.Name,
		Description: page.Description,
		ContentType: page.ContentType,
		Body:        page.Body,
	}
	err := g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Save(&row).Error
	})
	if err != nil {
		return ErrorPage{}, waferr.Wrap(waferr.KindInternal, "upsert error page", err)
	}

	g.invalidate()
	g.appendAudit(ctx, actor, "upsert_error_page", fmt.Sprintf("%d", page.HTTPCode), nil, page)
	return page, nil
}

// DeleteErrorPage removes the configured error page for a status code,
// falling back to DefaultErrorPage thereafter.
func (g *GlobalStore) DeleteErrorPage(ctx context.Context, actor string, code int) error {
	err := g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&ErrorPageRow{}, code)
		if res.Error != nil {
			return waferr.Wrap(waferr.KindInternal, "delete error page", res.Error)
		}
		if res.RowsAffected == 0 {
			return waferr.New(waferr.KindNotFound, fmt.Sprintf("error page not found: %d", code))
		}
		return nil
	})
	if err != nil {
		return err
	}

	g.invalidate()
	g.appendAudit(ctx, actor, "delete_error_page", fmt.Sprintf("%d", code), nil, nil)
	return nil
}
