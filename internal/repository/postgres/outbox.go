package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praxisdev/identity-api/internal/model"
	"github.com/praxisdev/identity-api/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, payload, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()
	event.UpdatedAt = time.Now()
	if event.Status == "" {
		event.Status = model.OutboxStatusPending
	}

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.Payload,
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// GetPendingEvents returns events due for publication, oldest first. Events
// waiting on a retry backoff are excluded until their retry_at passes.
func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, event_type, payload, status, error_message,
		       created_at, processed_at, updated_at, retry_count, retry_at
		FROM outbox_events
		WHERE status = $1
		AND (retry_at IS NULL OR retry_at <= NOW())
		ORDER BY created_at ASC
		LIMIT $2
	`

	var events []*model.OutboxEvent
	err := r.db.SelectContext(ctx, &events, query, model.OutboxStatusPending, limit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return events, err
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = $1, error_message = NULL, processed_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`

	if _, err := r.db.ExecContext(ctx, query, model.OutboxStatusProcessed, id); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// MarkForRetry keeps the event pending with an incremented retry counter and
// a backoff deadline.
func (r *outboxRepository) MarkForRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error {
	query := `
		UPDATE outbox_events
		SET error_message = $1, retry_count = retry_count + 1, retry_at = $2, updated_at = NOW()
		WHERE id = $3
	`

	if _, err := r.db.ExecContext(ctx, query, errorMessage, retryAt, id); err != nil {
		return fmt.Errorf("failed to mark event for retry: %w", err)
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE outbox_events
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`

	if _, err := r.db.ExecContext(ctx, query, model.OutboxStatusFailed, errorMessage, id); err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	return nil
}

func (r *outboxRepository) CountPending(ctx context.Context) (int64, error) {
	query := `
		SELECT COUNT(*) FROM outbox_events WHERE status = $1
	`

	var count int64
	if err := r.db.GetContext(ctx, &count, query, model.OutboxStatusPending); err != nil {
		return 0, fmt.Errorf("failed to count pending events: %w", err)
	}
	return count, nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = $1
		AND processed_at < $2
	`
	result, err := r.db.ExecContext(ctx, query, model.OutboxStatusProcessed, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}

	return result.RowsAffected()
}
