package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/praxisdev/identity-api/internal/repository"
)

// RetentionWorker prunes aged security events and processed outbox rows on a
// fixed interval. Pending outbox rows are never touched.
type RetentionWorker struct {
	events    repository.SecurityEventRepository
	outbox    repository.OutboxRepository
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger
}

func NewRetentionWorker(events repository.SecurityEventRepository, outbox repository.OutboxRepository,
	retentionDays int, interval time.Duration, logger zerolog.Logger) *RetentionWorker {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &RetentionWorker{
		events:    events,
		outbox:    outbox,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger.With().Str("component", "retention_worker").Logger(),
	}
}

func (w *RetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error().Err(err).Msg("retention sweep failed")
			}
		}
	}
}

func (w *RetentionWorker) sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-w.retention)

	events, err := w.events.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune security events: %w", err)
	}

	outboxRows, err := w.outbox.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune outbox: %w", err)
	}

	w.logger.Info().
		Int64("security_events", events).
		Int64("outbox_events", outboxRows).
		Time("cutoff", cutoff).
		Msg("retention sweep complete")
	return nil
}
