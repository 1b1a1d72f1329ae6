package retry_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"notesd/internal/retry"
)

func fakeSleeper(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	policy := retry.Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Sleeper: fakeSleeper(&delays)}

	calls := 0
	err := policy.Do(context.Background(), "push", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("remote hiccup")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(delays) != 2 || delays[0] != 100*time.Millisecond || delays[1] != 200*time.Millisecond {
		t.Fatalf("unexpected backoff schedule %v", delays)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	permanent := errors.New("bad credentials")
	policy := retry.Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, Sleeper: fakeSleeper(&[]time.Duration{})}

	calls := 0
	err := policy.Do(context.Background(), "dispatch", func(context.Context) error {
		calls++
		return permanent
	}, func(err error) bool { return false })
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	policy := retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleeper: fakeSleeper(&delays)}

	err := policy.Do(context.Background(), "push", func(context.Context) error {
		return errors.New("still failing")
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "push: failed after 3 attempts") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestDoCapsDelayAtMax(t *testing.T) {
	var delays []time.Duration
	policy := retry.Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 2 * time.Second, Sleeper: fakeSleeper(&delays)}

	_ = policy.Do(context.Background(), "op", func(context.Context) error {
		return errors.New("nope")
	}, nil)
	for _, d := range delays {
		if d > 2*time.Second {
			t.Fatalf("delay %v exceeds cap", d)
		}
	}
}

func TestDoAbortsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := retry.Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	calls := 0
	err := policy.Do(ctx, "op", func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	}, nil)
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
