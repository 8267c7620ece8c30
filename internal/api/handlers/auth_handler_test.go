package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sentrywall/core/internal/config"
	"github.com/sentrywall/core/internal/models"
	"github.com/sentrywall/core/internal/services"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, *services.AuthService) {
	t.Helper()
	dbName := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.AdminUser{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	authService := services.NewAuthService(db, config.Config{JWTSecret: "test-secret", AdminSessionTTL: time.Hour})
	return NewAuthHandler(authService), authService
}

func newAuthHandlerRouter(h *AuthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", h.Login)
	return r
}

func TestAuthHandlerLoginSuccess(t *testing.T) {
	handler, authService := setupAuthHandler(t)
	if _, err := authService.Register(t.Context(), "test@example.com", "password123", "Test User"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	r := newAuthHandlerRouter(handler)
	body, _ := json.Marshal(map[string]string{"email": "test@example.com", "password": "password123"})
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["token"] == "" {
		t.Fatalf("expected a token in the response")
	}
}

func TestAuthHandlerLoginInvalidCredentials(t *testing.T) {
	handler, _ := setupAuthHandler(t)
	r := newAuthHandlerRouter(handler)

	body, _ := json.Marshal(map[string]string{"email": "nobody@example.com", "password": "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthHandlerLoginMissingFields(t *testing.T) {
	handler, _ := setupAuthHandler(t)
	r := newAuthHandlerRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", w.Code)
	}
}
