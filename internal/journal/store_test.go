package journal_test

import (
	"context"
	"fmt"
	"testing"

	"notesd/internal/journal"
	"notesd/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	ctx := context.Background()
	delivery, err := store.Record(ctx, "Team Standup")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if delivery.ID == "" {
		t.Fatal("expected delivery ID to be assigned")
	}
	if delivery.Status != journal.StatusReceived {
		t.Fatalf("status = %q, want %q", delivery.Status, journal.StatusReceived)
	}

	fetched, err := store.Get(ctx, delivery.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched == nil || fetched.Title != "Team Standup" {
		t.Fatalf("unexpected fetched delivery: %#v", fetched)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	testsupport.RecordDelivery(t, store, "First")
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenJournal(t, cfg)
	deliveries, err := reopened.List(context.Background())
	if err != nil {
		t.Fatalf("List after reopen: %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery after reopen, got %d", len(deliveries))
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	delivery, err := store.Get(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if delivery != nil {
		t.Fatalf("expected nil for missing delivery, got %#v", delivery)
	}
}

func TestUpdatePersistsProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	ctx := context.Background()
	delivery := testsupport.RecordDelivery(t, store, "Planning")
	delivery.Filename = "20250101-120000-planning.txt"
	delivery.Status = journal.StatusCommitted
	delivery.Revision = "abc123"
	if err := store.Update(ctx, delivery); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fetched, err := store.Get(ctx, delivery.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Filename != "20250101-120000-planning.txt" {
		t.Fatalf("filename = %q", fetched.Filename)
	}
	if fetched.Status != journal.StatusCommitted {
		t.Fatalf("status = %q", fetched.Status)
	}
	if fetched.Revision != "abc123" {
		t.Fatalf("revision = %q", fetched.Revision)
	}
}

func TestRecordRejectedKeepsReason(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	ctx := context.Background()
	delivery, err := store.RecordRejected(ctx, "", "missing title")
	if err != nil {
		t.Fatalf("RecordRejected: %v", err)
	}
	if delivery.Status != journal.StatusRejected {
		t.Fatalf("status = %q", delivery.Status)
	}
	if delivery.ErrorMessage != "missing title" {
		t.Fatalf("error message = %q", delivery.ErrorMessage)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	ctx := context.Background()
	for i, status := range []journal.Status{
		journal.StatusPushed,
		journal.StatusPushPending,
		journal.StatusPushPending,
		journal.StatusFailed,
	} {
		delivery := testsupport.RecordDelivery(t, store, fmt.Sprintf("Meeting %d", i))
		if err := store.SetStatus(ctx, delivery.ID, status); err != nil {
			t.Fatalf("SetStatus: %v", err)
		}
	}

	pending, err := store.PushPending(ctx)
	if err != nil {
		t.Fatalf("PushPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 push_pending deliveries, got %d", len(pending))
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 deliveries, got %d", len(all))
	}
}

func TestMarkPushPendingResolved(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		delivery := testsupport.RecordDelivery(t, store, fmt.Sprintf("Deferred %d", i))
		if err := store.SetStatus(ctx, delivery.ID, journal.StatusPushPending); err != nil {
			t.Fatalf("SetStatus: %v", err)
		}
	}

	resolved, err := store.MarkPushPendingResolved(ctx)
	if err != nil {
		t.Fatalf("MarkPushPendingResolved: %v", err)
	}
	if resolved != 3 {
		t.Fatalf("resolved = %d, want 3", resolved)
	}

	pending, err := store.PushPending(ctx)
	if err != nil {
		t.Fatalf("PushPending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no push_pending deliveries, got %d", len(pending))
	}
}

func TestClearTerminalKeepsRecoverableRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	ctx := context.Background()
	statuses := []journal.Status{
		journal.StatusPushed,
		journal.StatusRejected,
		journal.StatusFailed,
		journal.StatusPushPending,
		journal.StatusWritten,
	}
	for i, status := range statuses {
		delivery := testsupport.RecordDelivery(t, store, fmt.Sprintf("Meeting %d", i))
		if err := store.SetStatus(ctx, delivery.ID, status); err != nil {
			t.Fatalf("SetStatus: %v", err)
		}
	}

	removed, err := store.ClearTerminal(ctx)
	if err != nil {
		t.Fatalf("ClearTerminal: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, delivery := range remaining {
		if delivery.Status.Terminal() {
			t.Fatalf("terminal delivery survived: %+v", delivery)
		}
	}
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d, want 2", len(remaining))
	}
}

func TestSummarize(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	ctx := context.Background()
	statuses := []journal.Status{
		journal.StatusPushed,
		journal.StatusPushed,
		journal.StatusPushPending,
		journal.StatusRejected,
		journal.StatusWritten,
	}
	for i, status := range statuses {
		delivery := testsupport.RecordDelivery(t, store, fmt.Sprintf("Meeting %d", i))
		if err := store.SetStatus(ctx, delivery.ID, status); err != nil {
			t.Fatalf("SetStatus: %v", err)
		}
	}

	summary, err := store.Summarize(ctx)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Total != 5 || summary.Pushed != 2 || summary.PushPending != 1 || summary.Rejected != 1 || summary.InFlight != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestSetFailedRecordsMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	ctx := context.Background()
	delivery := testsupport.RecordDelivery(t, store, "Broken")
	if err := store.SetFailed(ctx, delivery.ID, "disk full"); err != nil {
		t.Fatalf("SetFailed: %v", err)
	}

	fetched, err := store.Get(ctx, delivery.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != journal.StatusFailed || fetched.ErrorMessage != "disk full" {
		t.Fatalf("unexpected delivery: %+v", fetched)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := journal.ParseStatus(" Push_Pending "); !ok || status != journal.StatusPushPending {
		t.Fatalf("ParseStatus push_pending = %q, %v", status, ok)
	}
	if _, ok := journal.ParseStatus("bogus"); ok {
		t.Fatal("expected unknown status to fail")
	}
}
