package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxisdev/identity-api/internal/model"
	"github.com/praxisdev/identity-api/internal/repository"
	"github.com/praxisdev/identity-api/pkg/messaging"
	"github.com/praxisdev/identity-api/pkg/metrics"
)

type fakeOutboxRepo struct {
	pending     []*model.OutboxEvent
	processed   []uuid.UUID
	retried     []uuid.UUID
	failed      []uuid.UUID
	lastRetryAt time.Time
	lastError   string
}

var _ repository.OutboxRepository = (*fakeOutboxRepo)(nil)

func (f *fakeOutboxRepo) Create(_ context.Context, _ *model.OutboxEvent) error { return nil }

func (f *fakeOutboxRepo) GetPendingEvents(_ context.Context, _ int) ([]*model.OutboxEvent, error) {
	return f.pending, nil
}

func (f *fakeOutboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	f.processed = append(f.processed, id)
	return nil
}

func (f *fakeOutboxRepo) MarkForRetry(_ context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error {
	f.retried = append(f.retried, id)
	f.lastError = errorMessage
	f.lastRetryAt = retryAt
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(_ context.Context, id uuid.UUID, errorMessage string) error {
	f.failed = append(f.failed, id)
	f.lastError = errorMessage
	return nil
}

func (f *fakeOutboxRepo) CountPending(_ context.Context) (int64, error) {
	return int64(len(f.pending)), nil
}

func (f *fakeOutboxRepo) DeleteProcessedBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeBroker struct {
	topics []string
	err    error
}

var _ messaging.Broker = (*fakeBroker)(nil)

func (b *fakeBroker) Publish(_ context.Context, topic string, _ []byte) error {
	if b.err != nil {
		return b.err
	}
	b.topics = append(b.topics, topic)
	return nil
}

func (b *fakeBroker) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return nil, nil
}

func (b *fakeBroker) Close() error { return nil }

func pendingEvent(t *testing.T, eventType string, retryCount int) *model.OutboxEvent {
	t.Helper()
	event, err := model.NewOutboxEvent(eventType, map[string]string{"k": "v"})
	require.NoError(t, err)
	event.RetryCount = retryCount
	return event
}

func TestProcessBatchPublishesAndMarksProcessed(t *testing.T) {
	repo := &fakeOutboxRepo{pending: []*model.OutboxEvent{
		pendingEvent(t, "auth.login", 0),
		pendingEvent(t, "user.created", 0),
	}}
	broker := &fakeBroker{}
	m := metrics.NewMetricsWith(prometheus.NewRegistry(), "test", "")
	p := NewOutboxProcessor(repo, broker, OutboxProcessorConfig{}, zerolog.Nop(), m)

	require.NoError(t, p.processBatch(context.Background()))
	assert.Equal(t, []string{"auth.login", "user.created"}, broker.topics)
	assert.Len(t, repo.processed, 2)
	assert.Empty(t, repo.retried)
	assert.Equal(t, float64(2), promtestutil.ToFloat64(m.OutboxEventsProcessed))
	assert.Equal(t, float64(2), promtestutil.ToFloat64(m.OutboxQueueSize))
}

func TestProcessEventSchedulesRetryOnPublishFailure(t *testing.T) {
	event := pendingEvent(t, "auth.login", 0)
	repo := &fakeOutboxRepo{pending: []*model.OutboxEvent{event}}
	broker := &fakeBroker{err: errors.New("redis down")}
	p := NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		MaxRetries:   3,
		RetryBackoff: time.Minute,
	}, zerolog.Nop(), nil)

	require.NoError(t, p.processBatch(context.Background()))
	assert.Equal(t, []uuid.UUID{event.ID}, repo.retried)
	assert.Empty(t, repo.failed)
	assert.Equal(t, "redis down", repo.lastError)
	assert.WithinDuration(t, time.Now().Add(time.Minute), repo.lastRetryAt, 5*time.Second)
}

func TestProcessEventParksAfterMaxRetries(t *testing.T) {
	event := pendingEvent(t, "auth.login", 2)
	repo := &fakeOutboxRepo{pending: []*model.OutboxEvent{event}}
	broker := &fakeBroker{err: errors.New("still down")}
	p := NewOutboxProcessor(repo, broker, OutboxProcessorConfig{MaxRetries: 3}, zerolog.Nop(), nil)

	require.NoError(t, p.processBatch(context.Background()))
	assert.Empty(t, repo.retried)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.failed)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	p := NewOutboxProcessor(&fakeOutboxRepo{}, &fakeBroker{}, OutboxProcessorConfig{
		PollInterval: 10 * time.Millisecond,
	}, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("processor did not stop on cancel")
	}
}
