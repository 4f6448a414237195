package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"dailycast/internal/config"
	"dailycast/internal/dates"
	"dailycast/internal/logging"
	"dailycast/internal/pipeline"
	"dailycast/internal/services"
	"dailycast/internal/stage"
	"dailycast/internal/store"
	"dailycast/internal/testsupport"
)

const testDate = "2026-08-27"

type fakeFetcher struct {
	byTopic map[string][]stage.Discovery
	errs    map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, topic, _ string) ([]stage.Discovery, error) {
	if err := f.errs[topic]; err != nil {
		return nil, err
	}
	return f.byTopic[topic], nil
}

type fakeScraper struct {
	mu       sync.Mutex
	failURLs map[string]bool
	calls    map[string]int
}

func (f *fakeScraper) Scrape(_ context.Context, realURL string) (stage.Article, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[realURL]++
	f.mu.Unlock()

	if f.failURLs[realURL] {
		return stage.Article{}, services.Wrap(services.ErrScrape, "scrape", "fetch", realURL, nil)
	}
	text := "clean text for " + realURL
	return stage.Article{Text: text, CharCount: len(text)}, nil
}

type fakeSummarizer struct {
	failTopics map[string]error
}

func (f *fakeSummarizer) Summarize(_ context.Context, topic string, records []*store.ContentRecord) (map[int64]stage.Summary, error) {
	if err := f.failTopics[topic]; err != nil {
		return nil, err
	}
	out := make(map[int64]stage.Summary, len(records))
	for _, record := range records {
		out[record.ID] = stage.Summary{Text: "summary of " + topic}
	}
	return out, nil
}

type fakeSynthesizer struct {
	dir        string
	failTopics map[string]bool
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, topic, script, date string) (string, error) {
	if f.failTopics[topic] {
		return "", services.Wrap(services.ErrSynthesis, "synthesize", "tts", topic, nil)
	}
	path := filepath.Join(f.dir, fmt.Sprintf("%s_%s.mp3", topic, date))
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeSynthesizer) Narrate(_ context.Context, text, name, date string) (string, error) {
	path := filepath.Join(f.dir, fmt.Sprintf("%s_%s.mp3", name, date))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakePublisher struct {
	err      error
	manifest *stage.Manifest
}

func (f *fakePublisher) Publish(_ context.Context, manifest *stage.Manifest) error {
	if f.err != nil {
		return f.err
	}
	f.manifest = manifest
	manifest.DigestPath = filepath.Join(os.TempDir(), "daily_digest_"+manifest.Date+".mp3")
	manifest.FeedPath = filepath.Join(os.TempDir(), "podcast.xml")
	return nil
}

func discovery(topic, realURL string) stage.Discovery {
	return stage.Discovery{
		Topic:         topic,
		Title:         "Title for " + realURL,
		URL:           realURL + "?via=aggregator",
		RealURL:       realURL,
		Source:        "example.com",
		PublishedDate: testDate,
	}
}

type fixture struct {
	cfg         *config.Config
	store       *store.Store
	fetcher     *fakeFetcher
	scraper     *fakeScraper
	summarizer  *fakeSummarizer
	synthesizer *fakeSynthesizer
	publisher   *fakePublisher
	orch        *pipeline.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Workflow.RetryAttempts = 1
	cfg.Workflow.RetryInitialDelayMS = 1
	st := testsupport.MustOpenStore(t, cfg)

	f := &fixture{
		cfg:   cfg,
		store: st,
		fetcher: &fakeFetcher{byTopic: map[string][]stage.Discovery{
			"Technology": {
				discovery("Technology", "https://example.com/chips"),
				discovery("Technology", "https://example.com/shared"),
			},
			"Science": {
				discovery("Science", "https://example.com/shared"),
			},
		}},
		scraper:     &fakeScraper{},
		summarizer:  &fakeSummarizer{},
		synthesizer: &fakeSynthesizer{dir: t.TempDir()},
		publisher:   &fakePublisher{},
	}
	f.orch = pipeline.New(cfg, st, stage.Set{
		Fetcher:     f.fetcher,
		Scraper:     f.scraper,
		Summarizer:  f.summarizer,
		Synthesizer: f.synthesizer,
		Publisher:   f.publisher,
	}, logging.NewNop())
	return f
}

func (f *fixture) run(t *testing.T, opts pipeline.Options) *pipeline.Result {
	t.Helper()
	result, err := f.orch.Run(context.Background(), dates.MustParse(testDate), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return result
}

func TestRunCompleteDeduplicatesSharedURL(t *testing.T) {
	f := newFixture(t)
	result := f.run(t, pipeline.Options{})

	// Three discoveries, two distinct real URLs: the shared article is one
	// content record under its first topic.
	if result.Total != 2 {
		t.Fatalf("expected 2 content records, got %d", result.Total)
	}
	if result.Outcome != pipeline.OutcomeComplete {
		t.Fatalf("expected complete outcome, got %s", result.Outcome)
	}
	if result.Published != 2 {
		t.Fatalf("expected 2 published records, got %d", result.Published)
	}
	if result.Outcome.ExitCode() != 0 {
		t.Fatalf("unexpected exit code %d", result.Outcome.ExitCode())
	}

	record, err := f.store.ContentByRealURL(context.Background(), "https://example.com/shared")
	if err != nil {
		t.Fatalf("ContentByRealURL: %v", err)
	}
	if record.Topic != "Technology" {
		t.Fatalf("shared record should keep its first topic, got %q", record.Topic)
	}
	if record.Status != store.StatusPublished {
		t.Fatalf("expected published record, got %s", record.Status)
	}

	topics, err := f.store.TopicsFor(context.Background(), "https://example.com/shared", testDate)
	if err != nil {
		t.Fatalf("TopicsFor: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("index should keep both topic associations, got %v", topics)
	}

	if f.publisher.manifest == nil || f.publisher.manifest.IntroPath == "" || f.publisher.manifest.OutroPath == "" {
		t.Fatal("expected intro and outro narration in the manifest")
	}
}

func TestRunScrapeFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.scraper.failURLs = map[string]bool{"https://example.com/chips": true}

	result := f.run(t, pipeline.Options{})
	if result.Outcome != pipeline.OutcomePartial {
		t.Fatalf("expected partial outcome, got %s", result.Outcome)
	}
	if result.Published != 1 || result.Failed != 1 {
		t.Fatalf("expected 1 published and 1 failed, got %+v", result)
	}

	record, err := f.store.ContentByRealURL(context.Background(), "https://example.com/chips")
	if err != nil {
		t.Fatalf("ContentByRealURL: %v", err)
	}
	if record.Status != store.StatusFailed || record.FailureStage != "scrape" {
		t.Fatalf("expected scrape failure recorded, got %+v", record)
	}
}

func TestRunRetriesFailedRecordsOnNextRun(t *testing.T) {
	f := newFixture(t)
	f.scraper.failURLs = map[string]bool{"https://example.com/chips": true}

	first := f.run(t, pipeline.Options{})
	if first.Outcome != pipeline.OutcomePartial {
		t.Fatalf("first run: expected partial outcome, got %s", first.Outcome)
	}

	// The site recovers; the next day's run must pick the failed record
	// back up at the scrape stage.
	f.scraper.failURLs = nil
	second := f.run(t, pipeline.Options{})
	if second.Outcome != pipeline.OutcomeComplete {
		t.Fatalf("second run: expected complete outcome, got %s", second.Outcome)
	}
	if second.Failed != 0 {
		t.Fatalf("second run: expected no failed records, got %d", second.Failed)
	}

	record, err := f.store.ContentByRealURL(context.Background(), "https://example.com/chips")
	if err != nil {
		t.Fatalf("ContentByRealURL: %v", err)
	}
	if record.Status != store.StatusPublished {
		t.Fatalf("recovered record should reach published, got %s", record.Status)
	}
	if record.FailureStage != "" || record.FailureReason != "" {
		t.Fatalf("failure fields should be cleared on retry, got %+v", record)
	}
	if f.scraper.calls["https://example.com/chips"] != 2 {
		t.Fatalf("expected the failed URL to be scraped again, got %d calls",
			f.scraper.calls["https://example.com/chips"])
	}
}

func TestRunSharedURLFeedsEverySearchTopic(t *testing.T) {
	f := newFixture(t)
	result := f.run(t, pipeline.Options{})
	if result.Outcome != pipeline.OutcomeComplete {
		t.Fatalf("expected complete outcome, got %s", result.Outcome)
	}

	// Science's only article shares its URL with Technology; the topic must
	// still get its own audio segment.
	if f.publisher.manifest == nil {
		t.Fatal("expected a published manifest")
	}
	byTopic := make(map[string]stage.TopicSegment, len(f.publisher.manifest.Segments))
	for _, segment := range f.publisher.manifest.Segments {
		byTopic[segment.Topic] = segment
	}
	for _, topic := range []string{"Science", "Technology"} {
		segment, ok := byTopic[topic]
		if !ok {
			t.Fatalf("expected a segment for %s, got %v", topic, f.publisher.manifest.Segments)
		}
		if segment.AudioPath == "" || segment.Script == "" {
			t.Fatalf("segment for %s missing audio or script: %+v", topic, segment)
		}
	}

	// The shared record still transitions exactly once, under its first topic.
	techRecords := byTopic["Technology"].Records
	if len(techRecords) != 2 {
		t.Fatalf("Technology should own both records, got %v", techRecords)
	}
	if len(byTopic["Science"].Records) != 0 {
		t.Fatalf("Science must not double-advance the shared record, got %v", byTopic["Science"].Records)
	}
}

func TestRunTopicSummarizationFailureFailsBatch(t *testing.T) {
	f := newFixture(t)
	f.fetcher.byTopic["Science"] = []stage.Discovery{discovery("Science", "https://example.com/quark")}
	f.summarizer.failTopics = map[string]error{
		"Science": services.Wrap(services.ErrSummarization, "summarize", "generate summary", "Science", nil),
	}

	result := f.run(t, pipeline.Options{})
	if result.Outcome != pipeline.OutcomePartial {
		t.Fatalf("expected partial outcome, got %s", result.Outcome)
	}

	record, err := f.store.ContentByRealURL(context.Background(), "https://example.com/quark")
	if err != nil {
		t.Fatalf("ContentByRealURL: %v", err)
	}
	if record.Status != store.StatusFailed || record.FailureStage != "summarize" {
		t.Fatalf("expected summarize failure, got %+v", record)
	}
	if record.CleanText == "" {
		t.Fatal("failed record should keep its scraped text")
	}
}

func TestRunConfigurationErrorAborts(t *testing.T) {
	f := newFixture(t)
	f.summarizer.failTopics = map[string]error{
		"Technology": services.Wrap(services.ErrConfiguration, "summarize", "client", "invalid key", nil),
	}

	_, err := f.orch.Run(context.Background(), dates.MustParse(testDate), pipeline.Options{})
	if err == nil {
		t.Fatal("expected run to abort on configuration error")
	}
}

func TestRunEmptyDiscovery(t *testing.T) {
	f := newFixture(t)
	f.fetcher.byTopic = map[string][]stage.Discovery{}

	result := f.run(t, pipeline.Options{})
	if result.Outcome != pipeline.OutcomeEmpty {
		t.Fatalf("expected empty outcome, got %s", result.Outcome)
	}
	if result.Outcome.ExitCode() != 2 {
		t.Fatalf("unexpected exit code %d", result.Outcome.ExitCode())
	}
	if f.publisher.manifest != nil {
		t.Fatal("publisher must not run on an empty day")
	}
}

func TestRunAllFailedAborts(t *testing.T) {
	f := newFixture(t)
	f.scraper.failURLs = map[string]bool{
		"https://example.com/chips":  true,
		"https://example.com/shared": true,
	}

	result := f.run(t, pipeline.Options{})
	if result.Outcome != pipeline.OutcomeAborted {
		t.Fatalf("expected aborted outcome, got %s", result.Outcome)
	}
	if result.Outcome.ExitCode() != 1 {
		t.Fatalf("unexpected exit code %d", result.Outcome.ExitCode())
	}
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	first := f.run(t, pipeline.Options{})
	if first.Outcome != pipeline.OutcomeComplete {
		t.Fatalf("first run: expected complete, got %s", first.Outcome)
	}

	second := f.run(t, pipeline.Options{})
	if second.Total != first.Total {
		t.Fatalf("rerun changed record count: %d vs %d", second.Total, first.Total)
	}
	if second.Outcome != pipeline.OutcomeComplete {
		t.Fatalf("rerun: expected complete, got %s", second.Outcome)
	}

	// Published records must not be scraped again.
	if f.scraper.calls["https://example.com/chips"] != 1 {
		t.Fatalf("expected 1 scrape call, got %d", f.scraper.calls["https://example.com/chips"])
	}
}

func TestRunSkipPublish(t *testing.T) {
	f := newFixture(t)
	result := f.run(t, pipeline.Options{SkipPublish: true})

	if f.publisher.manifest != nil {
		t.Fatal("publisher must not run with SkipPublish")
	}
	if result.Outcome != pipeline.OutcomeComplete {
		t.Fatalf("expected complete outcome at synthesis, got %s", result.Outcome)
	}

	records, err := f.store.ContentByDateAndStatus(context.Background(), testDate, store.StatusSynthesized)
	if err != nil {
		t.Fatalf("ContentByDateAndStatus: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 synthesized records, got %d", len(records))
	}
}

func TestRunPublishFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = services.Wrap(services.ErrPublish, "publish", "write feed", "disk full", nil)

	result, err := f.orch.Run(context.Background(), dates.MustParse(testDate), pipeline.Options{})
	if err == nil {
		t.Fatal("expected publish failure to surface")
	}
	if result.Outcome != pipeline.OutcomeAborted {
		t.Fatalf("expected aborted outcome, got %s", result.Outcome)
	}

	// Records stay synthesized so a rerun can publish them.
	records, listErr := f.store.ContentByDateAndStatus(context.Background(), testDate, store.StatusSynthesized)
	if listErr != nil {
		t.Fatalf("ContentByDateAndStatus: %v", listErr)
	}
	if len(records) != 2 {
		t.Fatalf("expected records to remain synthesized, got %d", len(records))
	}
}
