package email

import (
	"context"
)

// Service sends transactional mail. Callers treat failures as non-fatal
// unless the email carries a credential (reset links).
type Service interface {
	SendVerification(ctx context.Context, email string, token string) error
	SendPasswordReset(ctx context.Context, email string, token string) error
	SendWelcome(ctx context.Context, email string, name string) error
}

// NoopService drops every message. Used in development and tests.
type NoopService struct{}

func NewNoopService() Service { return NoopService{} }

func (NoopService) SendVerification(context.Context, string, string) error  { return nil }
func (NoopService) SendPasswordReset(context.Context, string, string) error { return nil }
func (NoopService) SendWelcome(context.Context, string, string) error       { return nil }
