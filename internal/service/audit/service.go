package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/praxisdev/identity-api/internal/model"
	"github.com/praxisdev/identity-api/internal/repository"
)

// Recorder captures security events without ever failing the calling
// operation.
type Recorder interface {
	Record(ctx context.Context, userID uuid.UUID, action string, opts *RecordOptions)
}

type RecordOptions struct {
	Metadata  interface{}
	IPAddress string
	UserAgent string
}

type requestInfoKey struct{}

// RequestInfo carries the client details middleware captured for a request.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

// WithRequestInfo returns a context carrying the client details. Record falls
// back to them when the caller does not supply its own.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

type Service struct {
	repo   repository.SecurityEventRepository
	logger zerolog.Logger
}

func NewService(repo repository.SecurityEventRepository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Record persists the event together with its outbox row in one transaction.
// Errors are logged and swallowed: auditing must not fail logins or password
// changes.
func (s *Service) Record(ctx context.Context, userID uuid.UUID, action string, opts *RecordOptions) {
	event := &model.SecurityEvent{
		ID:        uuid.New(),
		UserID:    userID,
		Action:    action,
		CreatedAt: time.Now(),
	}

	if opts != nil {
		event.IPAddress = opts.IPAddress
		event.UserAgent = opts.UserAgent
		if opts.Metadata != nil {
			metadata, err := json.Marshal(opts.Metadata)
			if err != nil {
				s.logger.Error().Err(err).Str("action", action).Msg("failed to encode event metadata")
				return
			}
			event.Metadata = metadata
		}
	}

	// Fill request details from the context when the caller did not pass
	// them explicitly.
	if event.IPAddress == "" {
		if info, ok := ctx.Value(requestInfoKey{}).(RequestInfo); ok {
			event.IPAddress = info.IPAddress
			event.UserAgent = info.UserAgent
		}
	}

	outboxEvent, err := model.NewOutboxEvent(action, event)
	if err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to encode security event")
		return
	}

	if err := s.repo.CreateWithOutbox(ctx, event, outboxEvent); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to record security event")
	}
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.SecurityEvent, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}
