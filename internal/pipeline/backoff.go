package pipeline

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy is a bounded exponential backoff schedule for transient
// failures. It is independent of any concurrency primitive: Do simply blocks
// between attempts and honors context cancellation.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the RPC retry behavior used by the indexer when
// nothing else is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    15 * time.Second,
	}
}

// Do runs op until it succeeds, the attempt budget is exhausted, or the
// context is cancelled. The delay doubles after each failure, capped at
// MaxDelay.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return fmt.Errorf("pipeline: %d attempts exhausted: %w", attempts, lastErr)
}
