package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sentrywall/core/internal/config"
	"github.com/sentrywall/core/internal/models"
	"github.com/sentrywall/core/internal/waferr"
)

func setupAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.AdminUser{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{JWTSecret: "test-secret", AdminSessionTTL: time.Hour}
}

func TestAuthServiceRegisterFirstUserIsAdministrator(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := NewAuthService(db, testConfig())
	ctx := context.Background()

	admin, err := svc.Register(ctx, "admin@example.com", "password123", "Admin")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if admin.Role != models.RoleAdministrator {
		t.Fatalf("expected first user to be administrator, got %s", admin.Role)
	}
	if admin.PasswordHash == "password123" {
		t.Fatalf("expected password to be hashed")
	}

	viewer, err := svc.Register(ctx, "viewer@example.com", "password123", "Viewer")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if viewer.Role != models.RoleViewer {
		t.Fatalf("expected second user to default to viewer, got %s", viewer.Role)
	}
}

func TestAuthServiceLoginSuccessIssuesToken(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := NewAuthService(db, testConfig())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "test@example.com", "password123", "Test"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := svc.Login(ctx, "test@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a non-empty token")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Email != "test@example.com" || claims.Role != models.RoleAdministrator {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestAuthServiceLoginWrongPasswordIsUnauthorized(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := NewAuthService(db, testConfig())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "test@example.com", "password123", "Test"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := svc.Login(ctx, "test@example.com", "wrongpassword")
	if !errors.Is(err, waferr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestAuthServiceLoginLocksAfterFiveFailures(t *testing.T) {
	db := setupAuthTestDB(t)
	svc := NewAuthService(db, testConfig())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "test@example.com", "password123", "Test"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := svc.Login(ctx, "test@example.com", "wrongpassword"); !errors.Is(err, waferr.ErrUnauthorized) {
			t.Fatalf("attempt %d: expected unauthorized, got %v", i+1, err)
		}
	}

	var u models.AdminUser
	if err := db.Where("email = ?", "test@example.com").First(&u).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if u.FailedLoginAttempts != 5 {
		t.Fatalf("expected 5 recorded failures, got %d", u.FailedLoginAttempts)
	}
	if u.LockedUntil == nil || !u.LockedUntil.After(time.Now()) {
		t.Fatalf("expected account to be locked")
	}

	_, err := svc.Login(ctx, "test@example.com", "password123")
	if !errors.Is(err, waferr.ErrForbidden) {
		t.Fatalf("expected locked account to report forbidden even with correct password, got %v", err)
	}
}
