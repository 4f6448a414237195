package testsupport

import (
	"context"
	"testing"

	"dailycast/internal/config"
	"dailycast/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedEntry inserts an index entry and matching discovered content record.
func SeedEntry(t testing.TB, st *store.Store, topic, title, realURL, date string) *store.ContentRecord {
	t.Helper()

	ctx := context.Background()
	entry := &store.IndexEntry{
		Topic:         topic,
		Title:         title,
		URL:           realURL,
		RealURL:       realURL,
		Source:        "example.com",
		PublishedDate: date,
	}
	if _, err := st.UpsertIndexEntry(ctx, entry); err != nil {
		t.Fatalf("UpsertIndexEntry: %v", err)
	}
	record, _, err := st.UpsertContentRecord(ctx, &store.ContentRecord{
		RealURL:       realURL,
		Title:         title,
		Topic:         topic,
		Source:        "example.com",
		PublishedDate: date,
	})
	if err != nil {
		t.Fatalf("UpsertContentRecord: %v", err)
	}
	return record
}

// AdvanceTo walks a record forward through the status chain until it reaches
// the target status.
func AdvanceTo(t testing.TB, st *store.Store, record *store.ContentRecord, target store.Status) *store.ContentRecord {
	t.Helper()

	ctx := context.Background()
	current := record.Status
	for current != target {
		next, ok := current.Next()
		if !ok {
			t.Fatalf("cannot advance from %s toward %s", current, target)
		}
		if err := st.AdvanceStatus(ctx, record.ID, current, next, store.FieldUpdates{}); err != nil {
			t.Fatalf("AdvanceStatus %s -> %s: %v", current, next, err)
		}
		current = next
	}
	updated, err := st.ContentByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("ContentByID: %v", err)
	}
	return updated
}
