// Package retry provides the bounded retry policy shared by the push and
// dispatch paths. Attempts are capped, delays double from BaseDelay up to
// MaxDelay, and context cancellation aborts the wait immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 10 * time.Second
)

// Policy describes how an operation is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Sleeper overrides how delays are performed (useful for tests). When nil,
	// a context-aware timer sleep is used.
	Sleeper func(ctx context.Context, d time.Duration) error
}

// Default returns the policy used when callers do not configure one.
func Default() Policy {
	return Policy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
	}
}

// Do runs fn until it succeeds, the error is classified non-retryable, or the
// attempt budget is exhausted. The retryable predicate decides which errors are
// worth another attempt; a nil predicate retries everything. The last error is
// wrapped with the operation name and attempt count.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error, retryable func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if err := p.sleep(ctx, p.delay(attempt)); err != nil {
			return err
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

func (p Policy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	delay := base << (attempt - 1)
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleeper != nil {
		return p.Sleeper(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
