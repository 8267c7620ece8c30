// Package services hosts operations that sit above the tenant stores and
// pipeline — admin account management and session issuance.
package services

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/sentrywall/core/internal/config"
	"github.com/sentrywall/core/internal/models"
	"github.com/sentrywall/core/internal/waferr"
)

// Claims is the JWT payload an admin session carries. The pipeline and
// config API never see a password; every authorization decision downstream
// of Login resolves to this {actor, role} pair (spec.md §6).
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService manages the admin_users table and issues/validates session
// tokens against it.
type AuthService struct {
	db  *gorm.DB
	cfg config.Config
}

// NewAuthService returns an AuthService backed by db, signing tokens with
// cfg.JWTSecret and cfg.AdminSessionTTL.
func NewAuthService(db *gorm.DB, cfg config.Config) *AuthService {
	return &AuthService{db: db, cfg: cfg}
}

// Register creates a new admin user. The very first registered user becomes
// RoleAdministrator; every subsequent registration defaults to RoleViewer.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*models.AdminUser, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.AdminUser{}).Count(&count).Error; err != nil {
		return nil, waferr.Wrap(waferr.KindInternal, "count admin users", err)
	}

	u := &models.AdminUser{
		Email:   email,
		Name:    name,
		Role:    models.RoleViewer,
		Enabled: true,
	}
	if count == 0 {
		u.Role = models.RoleAdministrator
	}
	if err := u.SetPassword(password); err != nil {
		return nil, waferr.Wrap(waferr.KindInternal, "hash password", err)
	}

	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, waferr.Wrap(waferr.KindConflict, "create admin user", err)
	}
	return u, nil
}

// Login verifies email/password against the admin_users table, enforcing
// the same-process lockout policy as models.AdminUser, and returns a signed
// session token on success.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	var u models.AdminUser
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return "", waferr.New(waferr.KindUnauthorized, "invalid credentials")
	}

	if u.IsLocked() {
		return "", waferr.New(waferr.KindForbidden, "account locked")
	}

	if !u.Enabled {
		return "", waferr.New(waferr.KindForbidden, "account disabled")
	}

	if !u.CheckPassword(password) {
		u.RecordFailedLogin()
		if err := s.db.WithContext(ctx).Save(&u).Error; err != nil {
			return "", waferr.Wrap(waferr.KindInternal, "persist failed login", err)
		}
		return "", waferr.New(waferr.KindUnauthorized, "invalid credentials")
	}

	u.RecordSuccessfulLogin()
	if err := s.db.WithContext(ctx).Save(&u).Error; err != nil {
		return "", waferr.Wrap(waferr.KindInternal, "persist successful login", err)
	}

	return s.issueToken(u)
}

func (s *AuthService) issueToken(u models.AdminUser) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.UUID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AdminSessionTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", waferr.Wrap(waferr.KindInternal, "sign session token", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a bearer token, returning the
// {actor, role} pair callers use to authorize config-API requests.
func (s *AuthService) ValidateToken(tokenString string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return Claims{}, waferr.Wrap(waferr.KindUnauthorized, "invalid session token", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, waferr.New(waferr.KindUnauthorized, "invalid session token")
	}
	return *claims, nil
}
