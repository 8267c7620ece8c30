package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RoleAdministrator may write through the configuration API; RoleViewer
// may only read it (spec.md §6).
const (
	RoleAdministrator = "administrator"
	RoleViewer        = "viewer"
)

// maxFailedLoginAttempts locks an account for lockoutDuration once reached.
const maxFailedLoginAttempts = 5

const lockoutDuration = 15 * time.Minute

// AdminUser is an operator of the configuration API. There is no tenant
// scoping on a user: every admin session resolves to one {actor, role}
// pair that authorizes against every tenant store.
type AdminUser struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	UUID         string `json:"uuid" gorm:"uniqueIndex"`
	Email        string `json:"email" gorm:"uniqueIndex"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	Role         string `json:"role" gorm:"default:'viewer'"`
	Enabled      bool   `json:"enabled" gorm:"default:true"`

	FailedLoginAttempts int        `json:"-" gorm:"default:0"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AdminUser) TableName() string { return "admin_users" }

// BeforeCreate generates a UUID for new admin users.
func (u *AdminUser) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == "" {
		u.UUID = uuid.New().String()
	}
	return nil
}

// SetPassword hashes and sets the user's password.
func (u *AdminUser) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword compares the provided password with the stored hash.
func (u *AdminUser) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// IsLocked reports whether the account is still within its lockout window.
func (u *AdminUser) IsLocked() bool {
	return u.LockedUntil != nil && u.LockedUntil.After(time.Now())
}

// RecordFailedLogin increments the failure counter, locking the account for
// lockoutDuration once maxFailedLoginAttempts is reached.
func (u *AdminUser) RecordFailedLogin() {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxFailedLoginAttempts {
		locked := time.Now().Add(lockoutDuration)
		u.LockedUntil = &locked
	}
}

// RecordSuccessfulLogin clears any lockout state and stamps LastLoginAt.
func (u *AdminUser) RecordSuccessfulLogin() {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	now := time.Now()
	u.LastLoginAt = &now
}

// CanWrite reports whether the user's role permits configuration writes.
func (u *AdminUser) CanWrite() bool {
	return u.Role == RoleAdministrator
}
