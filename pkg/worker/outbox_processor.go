package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/praxisdev/identity-api/internal/model"
	"github.com/praxisdev/identity-api/internal/repository"
	"github.com/praxisdev/identity-api/pkg/messaging"
	"github.com/praxisdev/identity-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// MaxRetries counts publish attempts per event before it is parked as
	// failed. RetryBackoff doubles on every attempt.
	MaxRetries   int
	RetryBackoff time.Duration
}

type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewOutboxProcessor builds the polling publisher. Metrics may be nil.
func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = time.Minute
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger.With().Str("component", "outbox_processor").Logger(),
		metrics: m,
	}
}

// Start polls until the context is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info().
		Int("batch_size", p.config.BatchSize).
		Dur("poll_interval", p.config.PollInterval).
		Msg("starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("shutting down outbox processor")
			return ctx.Err()
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error().Err(err).Msg("failed to process outbox batch")
			}
		}
	}
}

func (p *OutboxProcessor) processBatch(ctx context.Context) error {
	events, err := p.repo.GetPendingEvents(ctx, p.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending events: %w", err)
	}

	for _, event := range events {
		p.processEvent(ctx, event)
	}

	p.updateQueueGauge(ctx)
	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) {
	start := time.Now()
	err := p.broker.Publish(ctx, event.EventType, event.Payload)
	if p.metrics != nil {
		p.metrics.OutboxProcessingLatency.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		p.handleFailure(ctx, event, err)
		return
	}

	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		p.logger.Error().Err(err).
			Str("event_id", event.ID.String()).
			Msg("failed to mark event processed")
		return
	}
	if p.metrics != nil {
		p.metrics.OutboxEventsProcessed.Inc()
	}
}

func (p *OutboxProcessor) handleFailure(ctx context.Context, event *model.OutboxEvent, cause error) {
	if p.metrics != nil {
		p.metrics.OutboxEventsFailed.Inc()
	}

	if event.RetryCount+1 >= p.config.MaxRetries {
		p.logger.Error().Err(cause).
			Str("event_id", event.ID.String()).
			Str("event_type", event.EventType).
			Int("retries", event.RetryCount).
			Msg("giving up on outbox event")
		if err := p.repo.MarkFailed(ctx, event.ID, cause.Error()); err != nil {
			p.logger.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to park event")
		}
		return
	}

	retryAt := time.Now().Add(p.config.RetryBackoff << uint(event.RetryCount))
	p.logger.Warn().Err(cause).
		Str("event_id", event.ID.String()).
		Time("retry_at", retryAt).
		Msg("publish failed, scheduling retry")
	if err := p.repo.MarkForRetry(ctx, event.ID, cause.Error(), retryAt); err != nil {
		p.logger.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to schedule retry")
	}
}

func (p *OutboxProcessor) updateQueueGauge(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	pending, err := p.repo.CountPending(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to count pending events")
		return
	}
	p.metrics.OutboxQueueSize.Set(float64(pending))
}
