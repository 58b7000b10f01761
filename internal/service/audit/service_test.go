package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxisdev/identity-api/internal/model"
)

type fakeEventRepo struct {
	events   []*model.SecurityEvent
	outboxed []*model.OutboxEvent
	err      error
}

func (r *fakeEventRepo) Create(_ context.Context, event *model.SecurityEvent) error {
	r.events = append(r.events, event)
	return r.err
}

func (r *fakeEventRepo) CreateWithOutbox(_ context.Context, event *model.SecurityEvent, outbox *model.OutboxEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	r.outboxed = append(r.outboxed, outbox)
	return nil
}

func (r *fakeEventRepo) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*model.SecurityEvent, error) {
	var out []*model.SecurityEvent
	for _, e := range r.events {
		if e.UserID == userID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, r.err
}

func (r *fakeEventRepo) DeleteBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, r.err
}

func TestRecordWritesEventAndOutboxRow(t *testing.T) {
	repo := &fakeEventRepo{}
	svc := NewService(repo, zerolog.Nop())
	userID := uuid.New()

	svc.Record(context.Background(), userID, model.SecurityActionLogin, &RecordOptions{
		Metadata:  map[string]interface{}{"method": "password"},
		IPAddress: "203.0.113.9",
		UserAgent: "curl/8.0",
	})

	require.Len(t, repo.events, 1)
	event := repo.events[0]
	assert.Equal(t, userID, event.UserID)
	assert.Equal(t, model.SecurityActionLogin, event.Action)
	assert.Equal(t, "203.0.113.9", event.IPAddress)
	assert.Equal(t, "curl/8.0", event.UserAgent)

	require.Len(t, repo.outboxed, 1)
	assert.Equal(t, model.SecurityActionLogin, repo.outboxed[0].EventType)

	var published model.SecurityEvent
	require.NoError(t, json.Unmarshal(repo.outboxed[0].Payload, &published))
	assert.Equal(t, event.ID, published.ID)
}

func TestRecordFillsClientDetailsFromContext(t *testing.T) {
	repo := &fakeEventRepo{}
	svc := NewService(repo, zerolog.Nop())

	ctx := WithRequestInfo(context.Background(), RequestInfo{
		IPAddress: "198.51.100.4",
		UserAgent: "test-agent",
	})
	svc.Record(ctx, uuid.New(), model.SecurityActionLogout, nil)

	require.Len(t, repo.events, 1)
	assert.Equal(t, "198.51.100.4", repo.events[0].IPAddress)
	assert.Equal(t, "test-agent", repo.events[0].UserAgent)
}

func TestRecordPrefersExplicitDetailsOverContext(t *testing.T) {
	repo := &fakeEventRepo{}
	svc := NewService(repo, zerolog.Nop())

	ctx := WithRequestInfo(context.Background(), RequestInfo{IPAddress: "198.51.100.4"})
	svc.Record(ctx, uuid.New(), model.SecurityActionLogin, &RecordOptions{
		IPAddress: "203.0.113.9",
		UserAgent: "cli",
	})

	require.Len(t, repo.events, 1)
	assert.Equal(t, "203.0.113.9", repo.events[0].IPAddress)
	assert.Equal(t, "cli", repo.events[0].UserAgent)
}

func TestRecordSwallowsRepositoryErrors(t *testing.T) {
	repo := &fakeEventRepo{err: fmt.Errorf("connection refused")}
	svc := NewService(repo, zerolog.Nop())

	// Must not panic or surface the error.
	svc.Record(context.Background(), uuid.New(), model.SecurityActionLogin, nil)
	assert.Empty(t, repo.events)
}

func TestListByUserDelegates(t *testing.T) {
	repo := &fakeEventRepo{}
	svc := NewService(repo, zerolog.Nop())
	userID := uuid.New()

	svc.Record(context.Background(), userID, model.SecurityActionLogin, nil)
	svc.Record(context.Background(), uuid.New(), model.SecurityActionLogin, nil)

	events, err := svc.ListByUser(context.Background(), userID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, userID, events[0].UserID)
}
