package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sentrywall/core/internal/api/middleware"
	"github.com/sentrywall/core/internal/store"
	"github.com/sentrywall/core/internal/waf"
	"github.com/sentrywall/core/internal/waferr"
)

func parseHTTPCode(s string) (int, error) {
	code, err := strconv.Atoi(s)
	if err != nil {
		return 0, waferr.New(waferr.KindInvalidInput, "invalid http status code: "+s)
	}
	return code, nil
}

// ConfigHandler exposes the configuration API spec.md §6 names: global
// config, rule CRUD (global and per-route tenant), route CRUD, and
// error-page CRUD. Every write carries the resolved actor from the
// session layer (A5) into the tenant store's audit trail.
type ConfigHandler struct {
	registry *store.Registry
}

// NewConfigHandler returns a ConfigHandler backed by registry.
func NewConfigHandler(registry *store.Registry) *ConfigHandler {
	return &ConfigHandler{registry: registry}
}

// RuleRequest is the wire shape of a rule create/update body.
type RuleRequest struct {
	Name          string         `json:"name" binding:"required"`
	Description   string         `json:"description"`
	Enabled       bool           `json:"enabled"`
	Action        waf.Action     `json:"action" binding:"required"`
	Expression    []PredicateDTO `json:"expression"`
	Tags          []string       `json:"tags"`
	Priority      int            `json:"priority"`
	TriggerAlert  bool           `json:"trigger_alert"`
	BlockHTTPCode int            `json:"block_http_code"`
}

// PredicateDTO is the wire shape of one (field, operator, value) predicate.
type PredicateDTO struct {
	Field    string       `json:"field"`
	Operator waf.Operator `json:"operator"`
	Value    any          `json:"value"`
}

func (r RuleRequest) toRule(id string) waf.Rule {
	expr := make(waf.Expression, 0, len(r.Expression))
	for _, p := range r.Expression {
		expr = append(expr, waf.Predicate{Field: p.Field, Operator: p.Operator, Value: p.Value})
	}
	return waf.Rule{
		ID:            id,
		Name:          r.Name,
		Description:   r.Description,
		Enabled:       r.Enabled,
		Action:        r.Action,
		Expression:    expr,
		Tags:          r.Tags,
		Priority:      r.Priority,
		TriggerAlert:  r.TriggerAlert,
		BlockHTTPCode: r.BlockHTTPCode,
	}
}

func ruleToResponse(r waf.Rule) gin.H {
	predicates := make([]PredicateDTO, 0, len(r.Expression))
	for _, p := range r.Expression {
		predicates = append(predicates, PredicateDTO{Field: p.Field, Operator: p.Operator, Value: p.Value})
	}
	return gin.H{
		"id":              r.ID,
		"name":            r.Name,
		"description":     r.Description,
		"enabled":         r.Enabled,
		"action":          r.Action,
		"expression":      predicates,
		"tags":            r.Tags,
		"priority":        r.Priority,
		"trigger_alert":   r.TriggerAlert,
		"block_http_code": r.BlockHTTPCode,
	}
}

func respondError(c *gin.Context, err error) {
	kind := waferr.KindOf(err)
	c.JSON(kind.HTTPStatus(), gin.H{"error": err.Error()})
}

// GetGlobalConfig returns the global store's full snapshot: rules,
// routes, and error pages.
func (h *ConfigHandler) GetGlobalConfig(c *gin.Context) {
	snap, err := h.registry.Global().GetSnapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	rules := make([]gin.H, 0, len(snap.Rules))
	for _, r := range snap.Rules {
		rules = append(rules, ruleToResponse(r))
	}
	routes := make([]gin.H, 0, len(snap.Routes))
	for _, rt := range snap.Routes {
		routes = append(routes, routeToResponse(rt))
	}
	pages := make([]gin.H, 0, len(snap.ErrorPages))
	for _, p := range snap.ErrorPages {
		pages = append(pages, errorPageToResponse(p))
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules, "routes": routes, "error_pages": pages})
}

// CreateGlobalRule creates a rule in the global store.
func (h *ConfigHandler) CreateGlobalRule(c *gin.Context) {
	h.createRule(c, h.registry.Global().TenantStore)
}

// UpdateGlobalRule updates a rule in the global store.
func (h *ConfigHandler) UpdateGlobalRule(c *gin.Context) {
	h.updateRule(c, h.registry.Global().TenantStore, c.Param("id"))
}

// DeleteGlobalRule deletes a rule from the global store.
func (h *ConfigHandler) DeleteGlobalRule(c *gin.Context) {
	h.deleteRule(c, h.registry.Global().TenantStore, c.Param("id"))
}

// CreateRouteRule creates a rule in the named route's tenant store.
func (h *ConfigHandler) CreateRouteRule(c *gin.Context) {
	ts, err := h.registry.RouteStore(c.Request.Context(), c.Param("route_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.createRule(c, ts)
}

// ListRouteRules returns the named route's rule set.
func (h *ConfigHandler) ListRouteRules(c *gin.Context) {
	ts, err := h.registry.RouteStore(c.Request.Context(), c.Param("route_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	snap, err := ts.GetSnapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	rules := make([]gin.H, 0, len(snap.Rules))
	for _, r := range snap.Rules {
		rules = append(rules, ruleToResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// UpdateRouteRule updates a rule in the named route's tenant store.
func (h *ConfigHandler) UpdateRouteRule(c *gin.Context) {
	ts, err := h.registry.RouteStore(c.Request.Context(), c.Param("route_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.updateRule(c, ts, c.Param("id"))
}

// DeleteRouteRule deletes a rule from the named route's tenant store.
func (h *ConfigHandler) DeleteRouteRule(c *gin.Context) {
	ts, err := h.registry.RouteStore(c.Request.Context(), c.Param("route_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.deleteRule(c, ts, c.Param("id"))
}

func (h *ConfigHandler) createRule(c *gin.Context, ts *store.TenantStore) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule, err := ts.CreateRule(c.Request.Context(), middleware.Actor(c), req.toRule(""))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ruleToResponse(rule))
}

func (h *ConfigHandler) updateRule(c *gin.Context, ts *store.TenantStore, id string) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule, err := ts.UpdateRule(c.Request.Context(), middleware.Actor(c), id, req.toRule(id))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ruleToResponse(rule))
}

func (h *ConfigHandler) deleteRule(c *gin.Context, ts *store.TenantStore, id string) {
	if err := ts.DeleteRule(c.Request.Context(), middleware.Actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReorderRouteRules densifies the named route's rule priorities per the
// supplied order.
func (h *ConfigHandler) ReorderRouteRules(c *gin.Context) {
	ts, err := h.registry.RouteStore(c.Request.Context(), c.Param("route_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.reorderRules(c, ts)
}

// ReorderGlobalRules densifies the global store's rule priorities per the
// supplied order. Mirrors ReorderRouteRules: the global tier's enabled
// rules are subject to the same dense-sequence invariant (spec.md §3) as
// any route's.
func (h *ConfigHandler) ReorderGlobalRules(c *gin.Context) {
	h.reorderRules(c, h.registry.Global().TenantStore)
}

func (h *ConfigHandler) reorderRules(c *gin.Context, ts *store.TenantStore) {
	var req struct {
		ActiveIDsInOrder []string `json:"active_ids_in_order" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ts.Reorder(c.Request.Context(), middleware.Actor(c), req.ActiveIDsInOrder); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RouteRequest is the wire shape of a route create/update body.
type RouteRequest struct {
	IncomingHost      string `json:"incoming_host" binding:"required"`
	OriginType        string `json:"origin_type" binding:"required"`
	OriginURL         string `json:"origin_url"`
	OriginServiceName string `json:"origin_service_name"`
	Enabled           bool   `json:"enabled"`
}

func (r RouteRequest) toRoute(id string) store.Route {
	return store.Route{
		ID:                id,
		IncomingHost:      r.IncomingHost,
		OriginType:        r.OriginType,
		OriginURL:         r.OriginURL,
		OriginServiceName: r.OriginServiceName,
		Enabled:           r.Enabled,
	}
}

func routeToResponse(r store.Route) gin.H {
	return gin.H{
		"id":                  r.ID,
		"incoming_host":       r.IncomingHost,
		"origin_type":         r.OriginType,
		"origin_url":          r.OriginURL,
		"origin_service_name": r.OriginServiceName,
		"enabled":             r.Enabled,
	}
}

// CreateRoute creates a route and its admission rule.
func (h *ConfigHandler) CreateRoute(c *gin.Context) {
	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	route, err := h.registry.Global().CreateRoute(c.Request.Context(), middleware.Actor(c), req.toRoute(""))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, routeToResponse(route))
}

// ListRoutes returns every configured route.
func (h *ConfigHandler) ListRoutes(c *gin.Context) {
	snap, err := h.registry.Global().GetSnapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	routes := make([]gin.H, 0, len(snap.Routes))
	for _, rt := range snap.Routes {
		routes = append(routes, routeToResponse(rt))
	}
	c.JSON(http.StatusOK, gin.H{"routes": routes})
}

// UpdateRoute updates a route's configuration.
func (h *ConfigHandler) UpdateRoute(c *gin.Context) {
	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("route_id")
	route, err := h.registry.Global().UpdateRoute(c.Request.Context(), middleware.Actor(c), id, req.toRoute(id))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, routeToResponse(route))
}

// DeleteRoute deletes a route, its admission rule, and its tenant store.
func (h *ConfigHandler) DeleteRoute(c *gin.Context) {
	id := c.Param("route_id")
	if err := h.registry.Global().DeleteRoute(c.Request.Context(), middleware.Actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	if err := h.registry.DropRouteStore(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ErrorPageRequest is the wire shape of an error-page upsert body.
type ErrorPageRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ContentType string `json:"content_type" binding:"required"`
	Body        string `json:"body" binding:"required"`
}

func errorPageToResponse(p store.ErrorPage) gin.H {
	return gin.H{
		"http_code":    p.HTTPCode,
		"name":         p.Name,
		"description":  p.Description,
		"content_type": p.ContentType,
		"body":         p.Body,
	}
}

// UpsertErrorPage creates or replaces the error page for the path's code.
func (h *ConfigHandler) UpsertErrorPage(c *gin.Context) {
	code, err := parseHTTPCode(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req ErrorPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page, err := h.registry.Global().UpsertErrorPage(c.Request.Context(), middleware.Actor(c), store.ErrorPage{
		HTTPCode:    code,
		Name:        req.Name,
		Description: req.Description,
		ContentType: req.ContentType,
		Body:        req.Body,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, errorPageToResponse(page))
}

// DeleteErrorPage removes the configured error page for the path's code.
func (h *ConfigHandler) DeleteErrorPage(c *gin.Context) {
	code, err := parseHTTPCode(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.registry.Global().DeleteErrorPage(c.Request.Context(), middleware.Actor(c), code); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
