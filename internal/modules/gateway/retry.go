package gateway

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy bounds gateway call attempts. Only transient failures are
// retried; the backoff doubles each attempt starting from BaseDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond}
}

// Do runs fn under the policy. It returns nil on the first success, the
// original error on a permanent failure, and the last error once attempts
// are exhausted. The caller decides what the failure means for local state.
func Do(ctx context.Context, p RetryPolicy, logger *slog.Logger, op string, fn func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	delay := p.BaseDelay
	var err error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		if logger != nil {
			logger.WarnContext(ctx, "gateway call retrying",
				"op", op, "attempt", attempt, "delay", delay.String(), "err", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return err
}
