package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), nil, "op", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), nil, "op", func() error {
		calls++
		if calls < 3 {
			return TransientErr("mock", "service unavailable", nil)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	permanent := PermanentErr("mock", "card_declined", "declined")
	err := Do(context.Background(), fastPolicy(5), nil, "op", func() error {
		calls++
		return permanent
	})
	assert.Equal(t, 1, calls, "permanent failures must not be retried")
	assert.ErrorIs(t, err, permanent)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), nil, "op", func() error {
		calls++
		return TransientErr("mock", "timed out", nil)
	})
	assert.Equal(t, 3, calls)
	assert.True(t, IsTransient(err), "last transient error is surfaced")
}

func TestDoRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, RetryPolicy{MaxAttempts: 10, BaseDelay: time.Hour}, nil, "op", func() error {
		calls++
		cancel() // cancel while the backoff sleep is pending
		return TransientErr("mock", "service unavailable", nil)
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsTransientClassification(t *testing.T) {
	assert.True(t, IsTransient(TransientErr("mock", "service unavailable", nil)))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(PermanentErr("mock", "card_declined", "declined")))
	assert.False(t, IsTransient(errors.New("plain error")))
	assert.False(t, IsTransient(nil))
}
