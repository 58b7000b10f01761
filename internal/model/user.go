package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/praxisdev/identity-api/internal/breach"
	apperrors "github.com/praxisdev/identity-api/pkg/errors"
)

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusPending  = "pending"
)

// User represents an account holder
type User struct {
	Base
	Email                string     `json:"email" db:"email"`
	Name                 string     `json:"name" db:"name"`
	Password             string     `json:"password,omitempty" db:"-"`
	PasswordHash         string     `json:"-" db:"password_hash"`
	Status               string     `json:"status" db:"status"`
	EmailVerified        bool       `json:"email_verified" db:"email_verified"`
	LastLoginAt          *time.Time `json:"last_login_at" db:"last_login_at"`
	LastPasswordChangeAt *time.Time `json:"last_password_change_at" db:"last_password_change_at"`
	FailedLoginAttempts  int        `json:"failed_login_attempts" db:"failed_login_attempts"`
	LockedUntil          *time.Time `json:"locked_until" db:"locked_until"`
	Settings             JSONMap    `json:"settings" db:"settings"`

	// Per-attempt validation state. Both fields are reset at the start of
	// every validation pass and are never persisted.
	Breach breach.Result              `json:"-" db:"-"`
	Errors apperrors.ValidationErrors `json:"-" db:"-"`
}

// RecordID implements breach.Record.
func (u *User) RecordID() string {
	if u.ID == uuid.Nil {
		return ""
	}
	return u.ID.String()
}

// IsPersisted reports whether the user already exists in storage, as opposed
// to a record being created in this attempt.
func (u *User) IsPersisted() bool {
	return u.ID != uuid.Nil
}

// PasswordChanged reports whether this attempt carries a new plaintext
// password. Profile updates that leave the password alone return false.
func (u *User) PasswordChanged() bool {
	return u.Password != ""
}

func (u *User) BreachResult() *breach.Result {
	return &u.Breach
}

func (u *User) AddFieldError(field, kind string, meta map[string]any) {
	u.Errors.Add(field, kind, meta)
}

// Locked reports whether the account is under a login lockout.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// UserFilter represents user search parameters
type UserFilter struct {
	SearchTerm string `json:"search_term" form:"search_term"`
	Status     string `json:"status" form:"status"`
	Pagination
}

// CreateUserRequest represents user creation parameters
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// UpdateUserRequest represents user update parameters
type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Status   *string `json:"status" binding:"omitempty,oneof=active inactive pending"`
	Settings JSONMap `json:"settings"`
}

// ChangePasswordRequest represents a password change by a signed-in user
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}
