package testsupport

import (
	"path/filepath"
	"testing"

	"dailycast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.IndexDB = filepath.Join(base, "search_index.db")
	cfg.Paths.ContentDB = filepath.Join(base, "article_data.db")
	cfg.Paths.AudioDir = filepath.Join(base, "audio")
	cfg.Paths.TempAudioDir = filepath.Join(base, "audio", "tmp")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.TopicsFile = filepath.Join(base, "topics.md")
	cfg.Gemini.APIKey = "test"
	cfg.Topics = []string{"Technology", "Science"}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithTopics overrides the configured topic list.
func WithTopics(topics ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Topics = topics
	}
}

// WithRetention overrides the retention windows, in days.
func WithRetention(index, content, audio, logs int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Retention.IndexDays = index
		cfg.Retention.ContentDays = content
		cfg.Retention.AudioDays = audio
		cfg.Retention.LogDays = logs
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.IndexDB)
}
