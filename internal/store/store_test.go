package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"dailycast/internal/store"
	"dailycast/internal/testsupport"
)

func TestUpsertIndexEntryDeduplicates(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	entry := &store.IndexEntry{
		Topic:         "Technology",
		Title:         "Chips get smaller",
		URL:           "https://news.example.com/rss/abc",
		RealURL:       "https://example.com/chips",
		Source:        "example.com",
		PublishedDate: "2026-08-27",
	}
	inserted, err := st.UpsertIndexEntry(ctx, entry)
	if err != nil {
		t.Fatalf("UpsertIndexEntry: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to create a row")
	}

	dup := *entry
	dup.Title = "Chips get even smaller"
	inserted, err = st.UpsertIndexEntry(ctx, &dup)
	if err != nil {
		t.Fatalf("UpsertIndexEntry duplicate: %v", err)
	}
	if inserted {
		t.Fatal("expected duplicate topic+url+date to be ignored")
	}

	otherTopic := *entry
	otherTopic.Topic = "Science"
	inserted, err = st.UpsertIndexEntry(ctx, &otherTopic)
	if err != nil {
		t.Fatalf("UpsertIndexEntry other topic: %v", err)
	}
	if !inserted {
		t.Fatal("expected same url under a different topic to insert")
	}

	entries, err := st.EntriesByDate(ctx, "2026-08-27")
	if err != nil {
		t.Fatalf("EntriesByDate: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	topics, err := st.TopicsFor(ctx, "https://example.com/chips", "2026-08-27")
	if err != nil {
		t.Fatalf("TopicsFor: %v", err)
	}
	if len(topics) != 2 || topics[0] != "Technology" || topics[1] != "Science" {
		t.Fatalf("unexpected topics %v", topics)
	}
}

func TestUpsertContentRecordNeverClobbers(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	record, created, err := st.UpsertContentRecord(ctx, &store.ContentRecord{
		RealURL:       "https://example.com/a",
		Title:         "First",
		Topic:         "Technology",
		PublishedDate: "2026-08-27",
	})
	if err != nil {
		t.Fatalf("UpsertContentRecord: %v", err)
	}
	if !created {
		t.Fatal("expected record creation")
	}
	if record.Status != store.StatusDiscovered {
		t.Fatalf("expected discovered status, got %s", record.Status)
	}

	clean := "the article body"
	if err := st.AdvanceStatus(ctx, record.ID, store.StatusDiscovered, store.StatusScraped, store.FieldUpdates{CleanText: &clean}); err != nil {
		t.Fatalf("AdvanceStatus: %v", err)
	}

	again, created, err := st.UpsertContentRecord(ctx, &store.ContentRecord{
		RealURL:       "https://example.com/a",
		Title:         "Renamed",
		Topic:         "Science",
		PublishedDate: "2026-08-27",
	})
	if err != nil {
		t.Fatalf("UpsertContentRecord second: %v", err)
	}
	if created {
		t.Fatal("expected existing record to be reused")
	}
	if again.Status != store.StatusScraped {
		t.Fatalf("expected scraped status preserved, got %s", again.Status)
	}
	if again.Title != "First" || again.Topic != "Technology" {
		t.Fatalf("existing fields clobbered: %+v", again)
	}
	if again.CleanText != clean {
		t.Fatalf("clean text lost: %q", again.CleanText)
	}
}

func TestAdvanceStatusConflict(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	record := testsupport.SeedEntry(t, st, "Technology", "A", "https://example.com/a", "2026-08-27")

	if err := st.AdvanceStatus(ctx, record.ID, store.StatusDiscovered, store.StatusScraped, store.FieldUpdates{}); err != nil {
		t.Fatalf("first advance: %v", err)
	}
	err := st.AdvanceStatus(ctx, record.ID, store.StatusDiscovered, store.StatusScraped, store.FieldUpdates{})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	err = st.AdvanceStatus(ctx, 9999, store.StatusDiscovered, store.StatusScraped, store.FieldUpdates{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdvanceStatusPersistsStageOutputs(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	record := testsupport.SeedEntry(t, st, "Science", "B", "https://example.com/b", "2026-08-27")

	clean := "scraped body"
	if err := st.AdvanceStatus(ctx, record.ID, store.StatusDiscovered, store.StatusScraped, store.FieldUpdates{CleanText: &clean}); err != nil {
		t.Fatalf("advance to scraped: %v", err)
	}

	summary := "one paragraph summary"
	at := time.Now().UTC()
	if err := st.AdvanceStatus(ctx, record.ID, store.StatusScraped, store.StatusSummarized, store.FieldUpdates{SummaryText: &summary, SummarizedAt: &at}); err != nil {
		t.Fatalf("advance to summarized: %v", err)
	}

	audio := "/tmp/audio/segment.mp3"
	if err := st.AdvanceStatus(ctx, record.ID, store.StatusSummarized, store.StatusSynthesized, store.FieldUpdates{AudioPath: &audio}); err != nil {
		t.Fatalf("advance to synthesized: %v", err)
	}

	got, err := st.ContentByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("ContentByID: %v", err)
	}
	if got.Status != store.StatusSynthesized {
		t.Fatalf("unexpected status %s", got.Status)
	}
	if got.CleanText != clean || got.SummaryText != summary || got.AudioPath != audio {
		t.Fatalf("stage outputs missing: %+v", got)
	}
	if got.SummarizedAt == nil {
		t.Fatal("expected summarized_at to be set")
	}
}

func TestMarkFailedKeepsOutputs(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	record := testsupport.SeedEntry(t, st, "Technology", "C", "https://example.com/c", "2026-08-27")
	clean := "partial progress"
	if err := st.AdvanceStatus(ctx, record.ID, store.StatusDiscovered, store.StatusScraped, store.FieldUpdates{CleanText: &clean}); err != nil {
		t.Fatalf("advance: %v", err)
	}

	if err := st.MarkFailed(ctx, record.ID, "summarize", "model returned empty response"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	got, err := st.ContentByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("ContentByID: %v", err)
	}
	if got.Status != store.StatusFailed {
		t.Fatalf("expected failed status, got %s", got.Status)
	}
	if got.FailureStage != "summarize" || got.FailureReason == "" {
		t.Fatalf("failure context missing: %+v", got)
	}
	if got.CleanText != clean {
		t.Fatal("expected accumulated outputs to survive failure")
	}
}

func TestRequeueFailedResetsStage(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	record := testsupport.SeedEntry(t, st, "Technology", "Retry", "https://example.com/retry", "2026-08-27")
	clean := "salvaged text"
	if err := st.AdvanceStatus(ctx, record.ID, store.StatusDiscovered, store.StatusScraped, store.FieldUpdates{CleanText: &clean}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := st.MarkFailed(ctx, record.ID, "summarize", "model timeout"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	other := testsupport.SeedEntry(t, st, "Technology", "Other stage", "https://example.com/other", "2026-08-27")
	if err := st.MarkFailed(ctx, other.ID, "scrape", "fetch blocked"); err != nil {
		t.Fatalf("MarkFailed other: %v", err)
	}

	requeued, err := st.RequeueFailed(ctx, "2026-08-27", "summarize", store.StatusScraped)
	if err != nil {
		t.Fatalf("RequeueFailed: %v", err)
	}
	if requeued != 1 {
		t.Fatalf("expected 1 requeued record, got %d", requeued)
	}

	got, err := st.ContentByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("ContentByID: %v", err)
	}
	if got.Status != store.StatusScraped {
		t.Fatalf("expected scraped status after requeue, got %s", got.Status)
	}
	if got.FailureStage != "" || got.FailureReason != "" {
		t.Fatalf("failure fields should be cleared: %+v", got)
	}
	if got.CleanText != clean {
		t.Fatal("expected earlier outputs to survive a requeue")
	}

	// The record that failed at a different stage is untouched.
	untouched, err := st.ContentByID(ctx, other.ID)
	if err != nil {
		t.Fatalf("ContentByID other: %v", err)
	}
	if untouched.Status != store.StatusFailed || untouched.FailureStage != "scrape" {
		t.Fatalf("record failed at another stage should stay failed: %+v", untouched)
	}
}

func TestContentByDateAndStatusOrdering(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.SeedEntry(t, st, "Technology", "First", "https://example.com/1", "2026-08-27")
	second := testsupport.SeedEntry(t, st, "Technology", "Second", "https://example.com/2", "2026-08-27")
	testsupport.SeedEntry(t, st, "Technology", "Other day", "https://example.com/3", "2026-08-26")

	records, err := st.ContentByDateAndStatus(ctx, "2026-08-27", store.StatusDiscovered)
	if err != nil {
		t.Fatalf("ContentByDateAndStatus: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != first.ID || records[1].ID != second.ID {
		t.Fatalf("unexpected order: %d then %d", records[0].ID, records[1].ID)
	}

	all, err := st.ContentByDateAndStatus(ctx, "2026-08-27")
	if err != nil {
		t.Fatalf("ContentByDateAndStatus all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records without status filter, got %d", len(all))
	}
}

func TestRetentionMarkAndPurge(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	old := testsupport.SeedEntry(t, st, "Technology", "Old", "https://example.com/old", "2026-08-20")
	testsupport.SeedEntry(t, st, "Technology", "Fresh", "https://example.com/fresh", "2026-08-27")

	marked, err := st.MarkPurgeable(ctx, "2026-08-25")
	if err != nil {
		t.Fatalf("MarkPurgeable: %v", err)
	}
	if marked != 1 {
		t.Fatalf("expected 1 marked record, got %d", marked)
	}

	purgeable, err := st.PurgeableContent(ctx)
	if err != nil {
		t.Fatalf("PurgeableContent: %v", err)
	}
	if len(purgeable) != 1 || purgeable[0].ID != old.ID {
		t.Fatalf("unexpected purgeable set: %+v", purgeable)
	}

	deleted, err := st.DeleteContent(ctx, old.ID)
	if err != nil {
		t.Fatalf("DeleteContent: %v", err)
	}
	if !deleted {
		t.Fatal("expected row deletion")
	}
	deleted, err = st.DeleteContent(ctx, old.ID)
	if err != nil {
		t.Fatalf("DeleteContent repeat: %v", err)
	}
	if deleted {
		t.Fatal("expected second deletion to be a no-op")
	}
}

func TestDeleteIndexOlderThan(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.SeedEntry(t, st, "Technology", "Old", "https://example.com/old", "2026-08-18")
	testsupport.SeedEntry(t, st, "Technology", "Boundary", "https://example.com/boundary", "2026-08-21")
	testsupport.SeedEntry(t, st, "Technology", "Fresh", "https://example.com/fresh", "2026-08-27")

	removed, err := st.DeleteIndexOlderThan(ctx, "2026-08-21")
	if err != nil {
		t.Fatalf("DeleteIndexOlderThan: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed entry, got %d", removed)
	}

	remaining, err := st.IndexCountByDate(ctx, "2026-08-21")
	if err != nil {
		t.Fatalf("IndexCountByDate: %v", err)
	}
	if remaining != 1 {
		t.Fatal("cutoff date itself should be retained")
	}
}

func TestOverviewAndStatsByDate(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a := testsupport.SeedEntry(t, st, "Technology", "A", "https://example.com/a", "2026-08-27")
	testsupport.SeedEntry(t, st, "Science", "B", "https://example.com/b", "2026-08-27")
	testsupport.AdvanceTo(t, st, a, store.StatusPublished)

	stats, err := st.StatsByDate(ctx, "2026-08-27")
	if err != nil {
		t.Fatalf("StatsByDate: %v", err)
	}
	if stats.IndexCount != 2 {
		t.Fatalf("expected 2 index entries, got %d", stats.IndexCount)
	}
	if stats.ByStatus[store.StatusPublished] != 1 || stats.ByStatus[store.StatusDiscovered] != 1 {
		t.Fatalf("unexpected status counts: %v", stats.ByStatus)
	}
	if len(stats.Topics) != 2 {
		t.Fatalf("expected 2 topics, got %v", stats.Topics)
	}

	overview, err := st.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if overview.IndexTotal != 2 || overview.ContentTotal != 2 {
		t.Fatalf("unexpected totals: %+v", overview)
	}
	if len(overview.ByDate) != 1 || overview.ByDate[0].Date != "2026-08-27" {
		t.Fatalf("unexpected per-date stats: %+v", overview.ByDate)
	}
}

func TestStatusChainHelpers(t *testing.T) {
	if !store.StatusDiscovered.Before(store.StatusPublished) {
		t.Fatal("discovered should precede published")
	}
	if store.StatusPublished.Before(store.StatusDiscovered) {
		t.Fatal("published must not precede discovered")
	}
	if store.StatusFailed.Before(store.StatusPublished) {
		t.Fatal("failed sits outside the chain")
	}

	next, ok := store.StatusSynthesized.Next()
	if !ok || next != store.StatusPublished {
		t.Fatalf("expected published after synthesized, got %s", next)
	}
	if _, ok := store.StatusPublished.Next(); ok {
		t.Fatal("published is terminal")
	}

	if status, ok := store.ParseStatus(" Scraped "); !ok || status != store.StatusScraped {
		t.Fatalf("ParseStatus failed: %s %v", status, ok)
	}
	if _, ok := store.ParseStatus("bogus"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestMaintenance(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.SeedEntry(t, st, "Technology", "A", "https://example.com/a", "2026-08-27")

	if err := st.Maintenance(context.Background()); err != nil {
		t.Fatalf("Maintenance: %v", err)
	}
}
