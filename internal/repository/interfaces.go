package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/praxisdev/identity-api/internal/model"
)

// All repository interfaces in one file
type (
	// UserRepository handles account storage
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
		UpdateLoginState(ctx context.Context, user *model.User) error
		UpdateEmailVerified(ctx context.Context, userID uuid.UUID, verified bool) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter *model.UserFilter) ([]*model.User, error)
	}

	// TokenRepository stores one-shot verification and reset tokens
	TokenRepository interface {
		StoreVerificationToken(ctx context.Context, userID uuid.UUID, token string, expiry time.Time) error
		ValidateVerificationToken(ctx context.Context, token string) (uuid.UUID, error)
		InvalidateVerificationToken(ctx context.Context, token string) error
		StoreResetToken(ctx context.Context, userID uuid.UUID, token string, expiry time.Time) error
		ValidateResetToken(ctx context.Context, token string) (uuid.UUID, error)
		InvalidateResetToken(ctx context.Context, token string) error
	}

	// SecurityEventRepository persists the audit trail
	SecurityEventRepository interface {
		Create(ctx context.Context, event *model.SecurityEvent) error
		// CreateWithOutbox writes the event and its outbox entry in one
		// transaction so the published stream cannot diverge from the trail.
		CreateWithOutbox(ctx context.Context, event *model.SecurityEvent, outbox *model.OutboxEvent) error
		ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.SecurityEvent, error)
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	// OutboxRepository drives asynchronous event publication
	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkForRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
		CountPending(ctx context.Context) (int64, error)
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
