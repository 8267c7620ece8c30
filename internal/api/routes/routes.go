// Package routes wires the API handlers into a gin engine.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/sentrywall/core/internal/api/handlers"
	"github.com/sentrywall/core/internal/api/middleware"
	"github.com/sentrywall/core/internal/pipeline"
	"github.com/sentrywall/core/internal/scheduler"
	"github.com/sentrywall/core/internal/services"
	"github.com/sentrywall/core/internal/store"
)

// Deps collects everything Register needs to wire its routes. One struct keeps Register's signature stable as handlers grow.
type Deps struct {
	Registry     *store.Registry
	Orchestrator *pipeline.Orchestrator
	Auth         *services.AuthService
	FeedRefresh  scheduler.Tick
	EventAgg     scheduler.Tick
}

// Register attaches the health, ingress, auth, ops and configuration API
// surfaces to router. Configuration writes require an administrator
// session (spec.md §6); reads require any authenticated session.
func Register(router *gin.Engine, deps Deps) {
	router.GET("/healthz", handlers.HealthHandler)

	ingress := handlers.NewIngressHandler(deps.Orchestrator)
	router.POST("/ingress/*path", ingress.Handle)

	authHandler := handlers.NewAuthHandler(deps.Auth)
	router.POST("/api/auth/login", authHandler.Login)

	ops := handlers.NewOpsHandler(deps.FeedRefresh, deps.EventAgg)
	opsGroup := router.Group("/ops", middleware.RequireAuth(deps.Auth), middleware.RequireWrite())
	opsGroup.POST("/feeds/refresh", ops.RefreshFeeds)
	opsGroup.POST("/events/aggregate", ops.AggregateEvents)

	cfg := handlers.NewConfigHandler(deps.Registry)
	api := router.Group("/api", middleware.RequireAuth(deps.Auth))
	{
		api.GET("/global/config", cfg.GetGlobalConfig)

		writable := api.Group("", middleware.RequireWrite())
		writable.POST("/global/rules", cfg.CreateGlobalRule)
		writable.PUT("/global/rules/:id", cfg.UpdateGlobalRule)
		writable.DELETE("/global/rules/:id", cfg.DeleteGlobalRule)
		writable.POST("/global/rules/reorder", cfg.ReorderGlobalRules)

		api.GET("/routes", cfg.ListRoutes)
		writable.POST("/routes", cfg.CreateRoute)
		writable.PUT("/routes/:route_id", cfg.UpdateRoute)
		writable.DELETE("/routes/:route_id", cfg.DeleteRoute)

		api.GET("/routes/:route_id/rules", cfg.ListRouteRules)
		writable.POST("/routes/:route_id/rules", cfg.CreateRouteRule)
		writable.PUT("/routes/:route_id/rules/:id", cfg.UpdateRouteRule)
		writable.DELETE("/routes/:route_id/rules/:id", cfg.DeleteRouteRule)
		writable.POST("/routes/:route_id/rules/reorder", cfg.ReorderRouteRules)

		writable.PUT("/global/error-pages/:code", cfg.UpsertErrorPage)
		writable.DELETE("/global/error-pages/:code", cfg.DeleteErrorPage)
	}
}
