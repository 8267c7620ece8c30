// Package store implements the tenant store (C5): a durable, SQL-backed
// configuration store for one tenant's ruleset, fronted by a write-
// invalidated in-memory cache. One global singleton store and one store
// per route exist process-wide.
package store

import (
	"encoding/json"
	"time"

	"github.com/sentrywall/core/internal/waf"
)

// RuleAdmissionTag marks a rule as the auto-generated route-admission
// ALLOW rule the global store keeps in lockstep with a route's lifecycle.
const RuleAdmissionTag = "route-admission"

// RuleRow is the persisted representation of a Rule, matching the
// `rules(id PK, name, description, enabled, action, expression_json,
// tags_json, priority, trigger_alert, block_http_code)` table spec.md §6
// names as the essential per-tenant schema.
type RuleRow struct {
	ID             uint   `gorm:"primaryKey"`
	UUID           string `gorm:"uniqueIndex"`
	Name           string
	Description    string
	Enabled        bool
	Action         string
	ExpressionJSON string `gorm:"column:expression_json;type:text"`
	TagsJSON       string `gorm:"column:tags_json;type:text"`
	Priority       int
	TriggerAlert   bool
	BlockHTTPCode  int
	// RouteID links an auto-generated route-admission rule to its owning
	// route so deletion is an explicit foreign key, not a tag+value
	// heuristic (resolves spec.md §9's route-deletion Open Question).
	// Empty for ordinary, user-authored rules.
	RouteID   string `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RuleRow) TableName() string { return "rules" }

// RouteRow is the persisted representation of a Route. Only the global
// store's database carries this table.
type RouteRow struct {
	ID                uint   `gorm:"primaryKey"`
	UUID              string `gorm:"uniqueIndex"`
	IncomingHost      string `gorm:"uniqueIndex"`
	OriginType        string
	OriginURL         string
	OriginServiceName string
	Enabled           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (RouteRow) TableName() string { return "routes" }

// ErrorPageRow is the persisted representation of an error page, keyed by
// HTTP status code. Only the global store's database carries this table.
type ErrorPageRow struct {
	HTTPCode    int `gorm:"primaryKey;column:http_code"`
	Name        string
	Description string
	ContentType string
	Body        string `gorm:"type:text"`
}

func (ErrorPageRow) TableName() string { return "error_pages" }

// ErrorPage is the in-memory view of an ErrorPageRow.
type ErrorPage struct {
	HTTPCode    int
	Name        string
	Description string
	ContentType string
	Body        string
}

// Route is the in-memory view of a RouteRow.
type Route struct {
	ID                string
	IncomingHost      string
	OriginType        string
	OriginURL         string
	OriginServiceName string
	Enabled           bool
}

func ruleFromRow(row RuleRow) (waf.Rule, error) {
	var expr waf.Expression
	if row.ExpressionJSON != "" {
		if err := json.Unmarshal([]byte(row.ExpressionJSON), &expr); err != nil {
			return waf.Rule{}, err
		}
	}
	var tags []string
	if row.TagsJSON != "" {
		if err := json.Unmarshal([]byte(row.TagsJSON), &tags); err != nil {
			return waf.Rule{}, err
		}
	}
	return waf.Rule{
		ID:            row.UUID,
		Name:          row.Name,
		Description:   row.Description,
		Enabled:       row.Enabled,
		Action:        waf.Action(row.Action),
		Expression:    expr,
		Tags:          tags,
		Priority:      row.Priority,
		TriggerAlert:  row.TriggerAlert,
		BlockHTTPCode: row.BlockHTTPCode,
	}, nil
}

func ruleToRow(r waf.Rule) (RuleRow, error) {
	exprJSON, err := json.Marshal(r.Expression)
	if err != nil {
		return RuleRow{}, err
	}
	tagsJSON, err := json.Marshal(r.Tags)
	if err != nil {
		return RuleRow{}, err
	}
	return RuleRow{
		UUID:           r.ID,
		Name:           r.Name,
		Description:    r.Description,
		Enabled:        r.Enabled,
		Action:         string(r.Action),
		ExpressionJSON: string(exprJSON),
		TagsJSON:       string(tagsJSON),
		Priority:       r.Priority,
		TriggerAlert:   r.TriggerAlert,
		BlockHTTPCode:  r.BlockHTTPCode,
	}, nil
}

func routeFromRow(row RouteRow) Route {
	return Route{
		ID:                row.UUID,
		IncomingHost:      row.IncomingHost,
		OriginType:        row.OriginType,
		OriginURL:         row.OriginURL,
		OriginServiceName: row.OriginServiceName,
		Enabled:           row.Enabled,
	}
}

func errorPageFromRow(row ErrorPageRow) ErrorPage {
	return ErrorPage{
		HTTPCode:    row.HTTPCode,
		Name:        row.Name,
		Description: row.Description,
		ContentType: row.ContentType,
		Body:        row.Body,
	}
}
