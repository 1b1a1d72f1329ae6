package testsupport

import (
	"context"
	"testing"

	"notesd/internal/config"
	"notesd/internal/journal"
)

// MustOpenJournal opens a journal.Store for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RecordDelivery creates a received delivery for tests using the provided store.
func RecordDelivery(t testing.TB, store *journal.Store, title string) *journal.Delivery {
	t.Helper()

	delivery, err := store.Record(context.Background(), title)
	if err != nil {
		t.Fatalf("store.Record: %v", err)
	}
	return delivery
}
