package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"notesd/internal/dispatch"
	"notesd/internal/retry"
	"notesd/internal/testsupport"
)

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		Sleeper:     func(context.Context, time.Duration) error { return nil },
	}
}

func newClient(t *testing.T, serverURL string, attempts int) *dispatch.Client {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithDispatch("acme/notes", "summarize.yml"))
	client := dispatch.New(cfg,
		dispatch.WithBaseURL(serverURL),
		dispatch.WithToken(func() string { return "test-token" }),
		dispatch.WithRetryPolicy(fastPolicy(attempts)),
	)
	if client == nil {
		t.Fatal("expected enabled client")
	}
	return client
}

func TestDispatchSendsWorkflowRequest(t *testing.T) {
	var (
		gotPath   string
		gotAuth   string
		gotInputs map[string]string
		gotRef    string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			Ref    string            `json:"ref"`
			Inputs map[string]string `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		gotRef = body.Ref
		gotInputs = body.Inputs
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newClient(t, server.URL, 1)
	err := client.Dispatch(context.Background(), "20250101-120000-standup.txt", "abc123")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if gotPath != "/repos/acme/notes/actions/workflows/summarize.yml/dispatches" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotRef != "main" {
		t.Fatalf("ref = %q", gotRef)
	}
	if gotInputs["filename"] != "20250101-120000-standup.txt" || gotInputs["revision"] != "abc123" {
		t.Fatalf("inputs = %#v", gotInputs)
	}
}

func TestDispatchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newClient(t, server.URL, 3)
	if err := client.Dispatch(context.Background(), "note.txt", "rev"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestDispatchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newClient(t, server.URL, 3)
	err := client.Dispatch(context.Background(), "note.txt", "rev")
	if !errors.Is(err, dispatch.ErrPermanent) {
		t.Fatalf("expected ErrPermanent, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestDispatchExhaustsTransientRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newClient(t, server.URL, 2)
	err := client.Dispatch(context.Background(), "note.txt", "rev")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if errors.Is(err, dispatch.ErrPermanent) {
		t.Fatalf("rate limiting should stay transient: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestDispatchRequiresToken(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDispatch("acme/notes", "summarize.yml"))
	client := dispatch.New(cfg, dispatch.WithToken(func() string { return "" }))
	if client == nil {
		t.Fatal("expected enabled client")
	}
	if err := client.Dispatch(context.Background(), "note.txt", "rev"); !errors.Is(err, dispatch.ErrPermanent) {
		t.Fatalf("expected ErrPermanent, got %v", err)
	}
}

func TestNewReturnsNilWhenDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if client := dispatch.New(cfg); client != nil {
		t.Fatal("expected nil client when dispatch disabled")
	}
	var client *dispatch.Client
	if err := client.Dispatch(context.Background(), "note.txt", "rev"); err != nil {
		t.Fatalf("nil client should no-op, got %v", err)
	}
}
