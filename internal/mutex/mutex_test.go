package mutex_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"notesd/internal/mutex"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	s := mutex.New()
	tok, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	tok.Release()

	tok2, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	tok2.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := mutex.New()
	tok, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	tok.Release()
	tok.Release()

	tok2, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after double release: %v", err)
	}
	tok2.Release()
}

func TestAcquireTimesOutWithoutSideEffects(t *testing.T) {
	s := mutex.New()
	holder, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Acquire(ctx); !errors.Is(err, mutex.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// The timed-out waiter must not occupy a queue slot.
	holder.Release()
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	tok, err := s.Acquire(ctx2)
	if err != nil {
		t.Fatalf("Acquire after timeout: %v", err)
	}
	tok.Release()
}

func TestWaitersServedInArrivalOrder(t *testing.T) {
	s := mutex.New()
	holder, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	const waiters = 8
	order := make([]int, 0, waiters)
	var mu sync.Mutex
	ready := make(chan struct{}, waiters)
	done := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ready <- struct{}{}
			tok, err := s.Acquire(context.Background())
			if err != nil {
				t.Errorf("waiter %d: %v", id, err)
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			tok.Release()
		}(i)
		// Queue waiters one at a time so arrival order is deterministic.
		<-ready
		time.Sleep(5 * time.Millisecond)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	holder.Release()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waiters did not drain")
	}

	for i, id := range order {
		if id != i {
			t.Fatalf("FIFO order violated: %v", order)
		}
	}
}

func TestConcurrentAcquireIsExclusive(t *testing.T) {
	s := mutex.New()
	var inside int
	var peak int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := s.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer tok.Release()
			mu.Lock()
			inside++
			if inside > peak {
				peak = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Fatalf("peak concurrent owners = %d, want 1", peak)
	}
}
