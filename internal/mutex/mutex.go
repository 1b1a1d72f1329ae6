// Package mutex implements the mutation serializer guarding the working copy.
//
// Exactly one logical mutation (sync, webhook write, commit/push) may touch the
// checkout at a time. Waiters are granted ownership in arrival order so commits
// from concurrent webhook deliveries land in the history in the order the
// requests arrived.
package mutex

import (
	"context"
	"errors"
	"sync"
)

// ErrTimeout is returned when Acquire gives up before ownership is granted.
// The caller has no side effects to undo.
var ErrTimeout = errors.New("mutation lock: acquire timed out")

// Serializer is an exclusive, non-reentrant lock with FIFO waiters.
type Serializer struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

// New constructs an unheld serializer.
func New() *Serializer {
	return &Serializer{}
}

// Token represents exclusive ownership of the working copy for one mutation.
// Release is safe to call more than once; every exit path of the owning
// operation must release it, typically via defer.
type Token struct {
	s    *Serializer
	once sync.Once
}

// Release returns ownership to the next waiter in arrival order.
func (t *Token) Release() {
	if t == nil || t.s == nil {
		return
	}
	t.once.Do(t.s.release)
}

// Acquire blocks until the serializer is owned by the caller or ctx expires.
// Expiry maps to ErrTimeout; cancellation is reported as the context error.
func (s *Serializer) Acquire(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	if !s.held && len(s.waiters) == 0 {
		s.held = true
		s.mu.Unlock()
		return &Token{s: s}, nil
	}

	grant := make(chan struct{})
	s.waiters = append(s.waiters, grant)
	s.mu.Unlock()

	select {
	case <-grant:
		return &Token{s: s}, nil
	case <-ctx.Done():
		if s.abandon(grant) {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, ctx.Err()
		}
		// Ownership was granted while we were giving up; pass it on so the
		// queue keeps moving.
		<-grant
		s.release()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// abandon removes a waiter from the queue. It reports false when the waiter is
// no longer queued, meaning release already selected it for ownership.
func (s *Serializer) abandon(grant chan struct{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.waiters {
		if w == grant {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Serializer) release() {
	s.mu.Lock()
	if len(s.waiters) == 0 {
		s.held = false
		s.mu.Unlock()
		return
	}
	next := s.waiters[0]
	s.waiters = s.waiters[1:]
	s.mu.Unlock()
	close(next)
}
