package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dailycast/internal/config"
	"dailycast/internal/dates"
	"dailycast/internal/logging"
	"dailycast/internal/services"
	"dailycast/internal/services/speech"
	"dailycast/internal/stage"
	"dailycast/internal/store"
)

// Orchestrator drives one day's records through the pipeline: discover,
// scrape, summarize, synthesize, publish. Stage failures are isolated per
// record; only configuration and publish failures abort the run.
type Orchestrator struct {
	cfg    *config.Config
	store  *store.Store
	stages stage.Set
	logger *slog.Logger
	retry  services.RetryPolicy
}

// Options tunes a single run.
type Options struct {
	// SkipPublish stops the run after synthesis, leaving segments in the
	// temp audio directory.
	SkipPublish bool
}

// New constructs an orchestrator.
func New(cfg *config.Config, st *store.Store, stages stage.Set, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:    cfg,
		store:  st,
		stages: stages,
		logger: logger,
		retry: services.RetryPolicy{
			Attempts:     cfg.Workflow.RetryAttempts,
			InitialDelay: time.Duration(cfg.Workflow.RetryInitialDelayMS) * time.Millisecond,
		},
	}
}

// Run executes the pipeline for one publication date.
func (o *Orchestrator) Run(ctx context.Context, target dates.Target, opts Options) (*Result, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(logging.WithDate(ctx, target.Day()), runID)
	logger := logging.WithContext(ctx, o.logger)

	if o.cfg.Workflow.RunTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(o.cfg.Workflow.RunTimeoutSeconds)*time.Second)
		defer cancel()
	}

	result := &Result{RunID: runID, Date: target.Day()}
	logger.Info("pipeline run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("topics", len(o.cfg.Topics)))

	if err := o.discover(ctx, target.Day(), result, logger); err != nil {
		result.Outcome = OutcomeAborted
		return result, err
	}

	o.scrape(ctx, target.Day(), result, logger)

	if err := o.summarize(ctx, target.Day(), result, logger); err != nil {
		o.finish(ctx, target.Day(), result, opts, logger)
		return result, err
	}

	segments := o.synthesize(ctx, target.Day(), result, logger)

	if !opts.SkipPublish && len(segments) > 0 {
		if err := o.publish(ctx, target.Day(), segments, result, logger); err != nil {
			o.finish(ctx, target.Day(), result, opts, logger)
			return result, err
		}
	}

	o.finish(ctx, target.Day(), result, opts, logger)
	return result, nil
}

// discover queries every configured topic and persists new index entries and
// content records. Per-topic failures are logged; the run aborts only when
// the discovery adapter reports a configuration problem.
func (o *Orchestrator) discover(ctx context.Context, date string, result *Result, logger *slog.Logger) error {
	logger = logger.With(logging.String(logging.FieldStage, "discover"))
	for _, topic := range o.cfg.Topics {
		var found []stage.Discovery
		err := services.Retry(ctx, o.retry, func(ctx context.Context) error {
			var fetchErr error
			found, fetchErr = o.stages.Fetcher.Fetch(ctx, topic, date)
			return fetchErr
		})
		if err != nil {
			if services.Fatal(err) {
				return err
			}
			logger.Warn("topic discovery failed",
				logging.String(logging.FieldTopic, topic),
				logging.Error(err))
			continue
		}

		for _, discovery := range found {
			entry := &store.IndexEntry{
				Topic:         discovery.Topic,
				Title:         discovery.Title,
				URL:           discovery.URL,
				RealURL:       discovery.RealURL,
				Source:        discovery.Source,
				FeedDate:      discovery.FeedDate,
				PublishedDate: discovery.PublishedDate,
			}
			if _, err := o.store.UpsertIndexEntry(ctx, entry); err != nil {
				return fmt.Errorf("persist index entry: %w", err)
			}
			if _, _, err := o.store.UpsertContentRecord(ctx, &store.ContentRecord{
				RealURL:       discovery.RealURL,
				Title:         discovery.Title,
				Topic:         discovery.Topic,
				Source:        discovery.Source,
				PublishedDate: discovery.PublishedDate,
			}); err != nil {
				return fmt.Errorf("persist content record: %w", err)
			}
		}
	}

	records, err := o.store.ContentByDateAndStatus(ctx, date)
	if err != nil {
		return err
	}
	result.Discovered = len(records)
	logger.Info("discovery complete", logging.Int("records", len(records)))
	return nil
}

// scrape extracts article text for every discovered record using the worker
// pool. Failures are isolated per record.
func (o *Orchestrator) scrape(ctx context.Context, date string, result *Result, logger *slog.Logger) {
	logger = logger.With(logging.String(logging.FieldStage, "scrape"))
	o.requeueFailed(ctx, date, "scrape", store.StatusDiscovered, logger)
	records, err := o.store.ContentByDateAndStatus(ctx, date, store.StatusDiscovered)
	if err != nil {
		logger.Error("list records for scraping", logging.Error(err))
		return
	}

	var mu sync.Mutex
	scraped := 0
	forEachRecord(ctx, o.cfg.Workflow.Workers, records, func(ctx context.Context, record *store.ContentRecord) {
		recordLogger := logger.With(
			logging.Int64(logging.FieldRecordID, record.ID),
			logging.String(logging.FieldURL, record.RealURL))

		var article stage.Article
		err := services.Retry(ctx, o.retry, func(ctx context.Context) error {
			var scrapeErr error
			article, scrapeErr = o.stages.Scraper.Scrape(ctx, record.RealURL)
			return scrapeErr
		})
		if err != nil {
			recordLogger.Warn("scrape failed", logging.Error(err))
			if markErr := o.store.MarkFailed(ctx, record.ID, "scrape", services.Reason(err)); markErr != nil {
				recordLogger.Error("persist scrape failure", logging.Error(markErr))
			}
			return
		}

		if ok := o.advance(ctx, record.ID, store.StatusDiscovered, store.StatusScraped,
			store.FieldUpdates{CleanText: &article.Text}, recordLogger); ok {
			mu.Lock()
			scraped++
			mu.Unlock()
		}
	})

	result.Scraped = scraped
	logger.Info("scraping complete",
		logging.Int("scraped", scraped),
		logging.Int("attempted", len(records)))
}

// summarize batches scraped records by topic and writes the shared topic
// summary to each. A fatal adapter error (rejected credentials) aborts the
// run; other topic failures mark the batch failed and continue.
func (o *Orchestrator) summarize(ctx context.Context, date string, result *Result, logger *slog.Logger) error {
	logger = logger.With(logging.String(logging.FieldStage, "summarize"))
	o.requeueFailed(ctx, date, "summarize", store.StatusScraped, logger)
	records, err := o.store.ContentByDateAndStatus(ctx, date, store.StatusScraped)
	if err != nil {
		return err
	}

	for _, group := range o.groupByTopic(ctx, date, records, logger) {
		topicLogger := logger.With(logging.String(logging.FieldTopic, group.topic))

		var summaries map[int64]stage.Summary
		err := services.Retry(ctx, o.retry, func(ctx context.Context) error {
			var sumErr error
			summaries, sumErr = o.stages.Summarizer.Summarize(ctx, group.topic, group.records)
			return sumErr
		})
		if err != nil {
			if services.Fatal(err) {
				return err
			}
			topicLogger.Warn("topic summarization failed", logging.Error(err))
			for _, record := range group.records {
				if !group.owns(record) {
					continue
				}
				if markErr := o.store.MarkFailed(ctx, record.ID, "summarize", services.Reason(err)); markErr != nil {
					topicLogger.Error("persist summarize failure", logging.Error(markErr))
				}
			}
			continue
		}

		now := time.Now().UTC()
		for _, record := range group.records {
			// Shared-URL records advance under their primary topic only;
			// secondary groups just fold their content into the batch.
			if !group.owns(record) {
				continue
			}
			summary, ok := summaries[record.ID]
			if !ok || summary.Text == "" {
				if markErr := o.store.MarkFailed(ctx, record.ID, "summarize", "no summary produced"); markErr != nil {
					topicLogger.Error("persist summarize failure", logging.Error(markErr))
				}
				continue
			}
			if o.advance(ctx, record.ID, store.StatusScraped, store.StatusSummarized,
				store.FieldUpdates{SummaryText: &summary.Text, SummarizedAt: &now}, topicLogger) {
				result.Summarized++
			}
		}
	}

	logger.Info("summarization complete", logging.Int("summarized", result.Summarized))
	return nil
}

// synthesize produces one audio segment per topic from the shared topic
// summaries and advances the covered records.
func (o *Orchestrator) synthesize(ctx context.Context, date string, result *Result, logger *slog.Logger) []stage.TopicSegment {
	logger = logger.With(logging.String(logging.FieldStage, "synthesize"))
	o.requeueFailed(ctx, date, "synthesize", store.StatusSummarized, logger)
	records, err := o.store.ContentByDateAndStatus(ctx, date, store.StatusSummarized)
	if err != nil {
		logger.Error("list records for synthesis", logging.Error(err))
		return nil
	}

	var segments []stage.TopicSegment
	for _, group := range o.groupByTopic(ctx, date, records, logger) {
		topicLogger := logger.With(logging.String(logging.FieldTopic, group.topic))
		script := group.records[0].SummaryText

		var audioPath string
		err := services.Retry(ctx, o.retry, func(ctx context.Context) error {
			var synthErr error
			audioPath, synthErr = o.stages.Synthesizer.Synthesize(ctx, group.topic, script, date)
			return synthErr
		})
		if err != nil {
			topicLogger.Warn("topic synthesis failed", logging.Error(err))
			for _, record := range group.records {
				if !group.owns(record) {
					continue
				}
				if markErr := o.store.MarkFailed(ctx, record.ID, "synthesize", services.Reason(err)); markErr != nil {
					topicLogger.Error("persist synthesize failure", logging.Error(markErr))
				}
			}
			continue
		}

		// A group whose only articles are shared keeps its segment even
		// though the records advance under another topic.
		segment := stage.TopicSegment{Topic: group.topic, Script: script, AudioPath: audioPath}
		for _, record := range group.records {
			if !group.owns(record) {
				continue
			}
			if o.advance(ctx, record.ID, store.StatusSummarized, store.StatusSynthesized,
				store.FieldUpdates{AudioPath: &audioPath}, topicLogger) {
				segment.Records = append(segment.Records, record.ID)
				result.Synthesized++
			}
		}
		segments = append(segments, segment)
	}

	logger.Info("synthesis complete",
		logging.Int("segments", len(segments)),
		logging.Int("records", result.Synthesized))
	return segments
}

// publish assembles the digest, refreshes the feed, and advances every
// synthesized record. Publish failures abort the run.
func (o *Orchestrator) publish(ctx context.Context, date string, segments []stage.TopicSegment, result *Result, logger *slog.Logger) error {
	logger = logger.With(logging.String(logging.FieldStage, "publish"))
	manifest := &stage.Manifest{Date: date, Segments: segments}

	introPath, err := o.stages.Synthesizer.Narrate(ctx, speech.IntroText(date), "intro", date)
	if err != nil {
		logger.Warn("intro narration failed, publishing without it", logging.Error(err))
	} else {
		manifest.IntroPath = introPath
	}
	outroPath, err := o.stages.Synthesizer.Narrate(ctx, speech.OutroText(), "outro", date)
	if err != nil {
		logger.Warn("outro narration failed, publishing without it", logging.Error(err))
	} else {
		manifest.OutroPath = outroPath
	}

	if err := o.stages.Publisher.Publish(ctx, manifest); err != nil {
		return err
	}
	result.DigestPath = manifest.DigestPath
	result.FeedPath = manifest.FeedPath

	for _, segment := range segments {
		for _, id := range segment.Records {
			if o.advance(ctx, id, store.StatusSynthesized, store.StatusPublished, store.FieldUpdates{}, logger) {
				result.Published++
			}
		}
	}

	logger.Info("publish complete",
		logging.String("digest", manifest.DigestPath),
		logging.Int("published", result.Published))
	return nil
}

// advance performs a compare-and-set transition. On conflict the record is
// re-read once: a record already at or past the target counts as done.
func (o *Orchestrator) advance(ctx context.Context, id int64, from, to store.Status, updates store.FieldUpdates, logger *slog.Logger) bool {
	err := o.store.AdvanceStatus(ctx, id, from, to, updates)
	if err == nil {
		return true
	}
	if errors.Is(err, store.ErrConflict) {
		record, readErr := o.store.ContentByID(ctx, id)
		if readErr == nil && record != nil && !record.Status.Before(to) && record.Status != store.StatusFailed {
			return true
		}
	}
	logger.Warn("status transition rejected",
		logging.Int64(logging.FieldRecordID, id),
		logging.String("from", string(from)),
		logging.String("to", string(to)),
		logging.Error(err))
	return false
}

// finish tallies terminal records and classifies the run outcome.
func (o *Orchestrator) finish(ctx context.Context, date string, result *Result, opts Options, logger *slog.Logger) {
	records, err := o.store.ContentByDateAndStatus(ctx, date)
	if err != nil {
		logger.Error("tally run results", logging.Error(err))
	}

	terminalStatus := store.StatusPublished
	if opts.SkipPublish {
		terminalStatus = store.StatusSynthesized
	}

	result.Total = len(records)
	terminal := 0
	failed := 0
	for _, record := range records {
		switch {
		case record.Status == store.StatusFailed:
			failed++
		case !record.Status.Before(terminalStatus):
			terminal++
		}
	}
	result.Failed = failed
	if !opts.SkipPublish {
		result.Published = terminal
	}
	result.Outcome = computeOutcome(result.Total, terminal)

	logger.Info("pipeline run finished",
		logging.String(logging.FieldEventType, "run_finish"),
		logging.String("outcome", string(result.Outcome)),
		logging.Int("total", result.Total),
		logging.Int("terminal", terminal),
		logging.Int("failed", failed))
}

// requeueFailed resets records that failed at this stage on an earlier run
// so the stage picks them up again.
func (o *Orchestrator) requeueFailed(ctx context.Context, date, stageName string, to store.Status, logger *slog.Logger) {
	requeued, err := o.store.RequeueFailed(ctx, date, stageName, to)
	if err != nil {
		logger.Error("requeue failed records", logging.Error(err))
		return
	}
	if requeued > 0 {
		logger.Info("retrying previously failed records", logging.Int64("records", requeued))
	}
}

type topicGroup struct {
	topic   string
	records []*store.ContentRecord
}

// owns reports whether a record advances under this group. A shared-URL
// record belongs to every topic that indexed it but transitions exactly once,
// under its primary topic.
func (g topicGroup) owns(record *store.ContentRecord) bool {
	return record.Topic == g.topic
}

// groupByTopic buckets records into every topic whose search found them, in
// deterministic order. A URL discovered under several topics contributes its
// content to each of those topics' batches.
func (o *Orchestrator) groupByTopic(ctx context.Context, date string, records []*store.ContentRecord, logger *slog.Logger) []topicGroup {
	buckets := make(map[string][]*store.ContentRecord)
	for _, record := range records {
		topics, err := o.store.TopicsFor(ctx, record.RealURL, date)
		if err != nil {
			logger.Warn("look up topics for record",
				logging.Int64(logging.FieldRecordID, record.ID),
				logging.Error(err))
			topics = nil
		}
		primarySeen := false
		for _, topic := range topics {
			if topic == record.Topic {
				primarySeen = true
			}
			buckets[topic] = append(buckets[topic], record)
		}
		if !primarySeen {
			buckets[record.Topic] = append(buckets[record.Topic], record)
		}
	}
	topics := make([]string, 0, len(buckets))
	for topic := range buckets {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	groups := make([]topicGroup, 0, len(topics))
	for _, topic := range topics {
		groups = append(groups, topicGroup{topic: topic, records: buckets[topic]})
	}
	return groups
}
