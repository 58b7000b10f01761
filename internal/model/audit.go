package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SecurityEvent is an audit-trail entry for security-relevant actions. Events
// are written to the outbox in the same transaction as the action they
// describe and published asynchronously.
type SecurityEvent struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	Action    string          `json:"action" db:"action"`
	Metadata  json.RawMessage `json:"metadata" db:"metadata"`
	IPAddress string          `json:"ip_address" db:"ip_address"`
	UserAgent string          `json:"user_agent" db:"user_agent"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Security event actions
const (
	SecurityActionUserCreated     = "user.created"
	SecurityActionUserDeleted     = "user.deleted"
	SecurityActionLogin           = "auth.login"
	SecurityActionLoginFailed     = "auth.login_failed"
	SecurityActionLogout          = "auth.logout"
	SecurityActionPasswordChanged = "user.password_changed"
	SecurityActionPasswordReset   = "user.password_reset"

	SecurityActionBreachRejected    = "breach.password_rejected"
	SecurityActionBreachWarned      = "breach.password_warned"
	SecurityActionBreachLookupError = "breach.lookup_failed"
)
