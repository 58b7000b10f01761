package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutePassesThroughWhileClosed(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 3, Timeout: time.Minute})

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, "closed", cb.State())

	boom := errors.New("boom")
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, "closed", cb.State(), "a single failure must not trip the breaker")
}

func TestExecuteOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		require.Error(t, cb.Execute(func() error { return boom }))
	}
	require.Equal(t, "open", cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open breaker must not invoke the call")
}

func TestExecuteHalfOpenTrial(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 1, Timeout: 20 * time.Millisecond})
	boom := errors.New("boom")

	require.Error(t, cb.Execute(func() error { return boom }))
	require.Equal(t, "open", cb.State())

	time.Sleep(60 * time.Millisecond)

	// A failed trial re-opens immediately.
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, "open", cb.State())

	time.Sleep(60 * time.Millisecond)

	// A successful trial closes the breaker again.
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, "closed", cb.State())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})
	boom := errors.New("boom")

	require.Error(t, cb.Execute(func() error { return boom }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Error(t, cb.Execute(func() error { return boom }))

	assert.Equal(t, "closed", cb.State(), "failures before a success do not accumulate")
}
