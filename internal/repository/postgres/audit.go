package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/praxisdev/identity-api/internal/model"
	"github.com/praxisdev/identity-api/internal/repository"
)

type securityEventRepository struct {
	BaseRepository
}

func NewSecurityEventRepository(base BaseRepository) repository.SecurityEventRepository {
	return &securityEventRepository{base}
}

const insertSecurityEventQuery = `
	INSERT INTO security_events (
		id, user_id, action, metadata, ip_address, user_agent, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (r *securityEventRepository) Create(ctx context.Context, event *model.SecurityEvent) error {
	prepareSecurityEvent(event)
	_, err := r.db.ExecContext(ctx, insertSecurityEventQuery,
		event.ID,
		event.UserID,
		event.Action,
		event.Metadata,
		event.IPAddress,
		event.UserAgent,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create security event: %w", err)
	}
	return nil
}

// CreateWithOutbox writes the trail entry and its outbox row atomically.
func (r *securityEventRepository) CreateWithOutbox(ctx context.Context, event *model.SecurityEvent, outbox *model.OutboxEvent) error {
	prepareSecurityEvent(event)
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, insertSecurityEventQuery,
			event.ID,
			event.UserID,
			event.Action,
			event.Metadata,
			event.IPAddress,
			event.UserAgent,
			event.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to create security event: %w", err)
		}

		query := `
			INSERT INTO outbox_events (
				id, event_type, payload, status, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.ExecContext(ctx, query,
			outbox.ID,
			outbox.EventType,
			outbox.Payload,
			outbox.Status,
			outbox.CreatedAt,
			outbox.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to enqueue outbox event: %w", err)
		}
		return nil
	})
}

func (r *securityEventRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.SecurityEvent, error) {
	query := `
		SELECT * FROM security_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var events []*model.SecurityEvent
	if err := r.db.SelectContext(ctx, &events, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list security events: %w", err)
	}

	return events, nil
}

func (r *securityEventRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM security_events
		WHERE created_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete security events: %w", err)
	}

	return result.RowsAffected()
}

func prepareSecurityEvent(event *model.SecurityEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
}
