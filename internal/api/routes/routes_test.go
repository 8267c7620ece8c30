package routes

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sentrywall/core/internal/config"
	"github.com/sentrywall/core/internal/models"
	"github.com/sentrywall/core/internal/origin"
	"github.com/sentrywall/core/internal/pipeline"
	"github.com/sentrywall/core/internal/services"
	"github.com/sentrywall/core/internal/sinks"
	"github.com/sentrywall/core/internal/store"
)

func TestRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	registry, err := store.NewRegistry(t.TempDir(), sinks.NewLogAuditSink(nil))
	require.NoError(t, err)

	authDB, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, authDB.AutoMigrate(&models.AdminUser{}))

	cfg := config.Config{JWTSecret: "test-secret", AdminSessionTTL: time.Hour}
	auth := services.NewAuthService(authDB, cfg)
	dispatcher := origin.New(nil, nil)
	orchestrator := pipeline.New(registry, dispatcher, nil, nil)

	Register(router, Deps{
		Registry:     registry,
		Orchestrator: orchestrator,
		Auth:         auth,
		FeedRefresh:  func(ctx context.Context) error { return nil },
		EventAgg:     func(ctx context.Context) error { return nil },
	})

	routeList := router.Routes()
	assert.NotEmpty(t, routeList)

	foundHealth := false
	foundIngress := false
	for _, r := range routeList {
		if r.Path == "/healthz" {
			foundHealth = true
		}
		if r.Path == "/ingress/*path" {
			foundIngress = true
		}
	}
	assert.True(t, foundHealth, "health route should be registered")
	assert.True(t, foundIngress, "ingress route should be registered")
}
