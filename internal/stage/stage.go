package stage

import (
	"context"

	"dailycast/internal/store"
)

// Discovery is one headline found for a topic query before it is persisted.
type Discovery struct {
	Topic         string
	Title         string
	URL           string
	RealURL       string
	Source        string
	FeedDate      string
	PublishedDate string
}

// Article is the extracted body text of a discovered headline.
type Article struct {
	Text      string
	CharCount int
}

// Summary is the model-written digest of one article.
type Summary struct {
	Text string
}

// TopicSegment is a synthesized audio segment covering one topic's summaries.
type TopicSegment struct {
	Topic     string
	Script    string
	AudioPath string
	Records   []int64
}

// Manifest describes one day's published output.
type Manifest struct {
	Date         string
	IntroPath    string
	OutroPath    string
	DigestPath   string
	MetadataPath string
	FeedPath     string
	Segments     []TopicSegment
	Published    int
	Failed       int
	Total        int
}

// Fetcher discovers headlines for a topic on a given publication date.
type Fetcher interface {
	Fetch(ctx context.Context, topic, date string) ([]Discovery, error)
}

// Scraper extracts readable article text from a resolved URL.
type Scraper interface {
	Scrape(ctx context.Context, realURL string) (Article, error)
}

// Summarizer condenses a batch of articles under one topic into per-record
// summaries. The returned map is keyed by content record ID.
type Summarizer interface {
	Summarize(ctx context.Context, topic string, records []*store.ContentRecord) (map[int64]Summary, error)
}

// Synthesizer converts a topic script into an audio segment on disk.
// Narrate produces standalone narration (intro and outro) outside any topic.
type Synthesizer interface {
	Synthesize(ctx context.Context, topic, script, date string) (string, error)
	Narrate(ctx context.Context, text, name, date string) (string, error)
}

// Publisher assembles the day's segments into the final digest and refreshes
// the podcast feed.
type Publisher interface {
	Publish(ctx context.Context, manifest *Manifest) error
}

// Set bundles the adapters the orchestrator drives.
type Set struct {
	Fetcher     Fetcher
	Scraper     Scraper
	Summarizer  Summarizer
	Synthesizer Synthesizer
	Publisher   Publisher
}
