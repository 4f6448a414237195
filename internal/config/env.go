package config

import "os"

// applyEnv layers recognized environment variables over file values. Only
// non-empty variables override; the mapping mirrors the documented
// deployment surface so systemd units and CI can configure the pipeline
// without a config file.
func (c *Config) applyEnv() {
	overlay := map[string]*string{
		"GEMINI_API_KEY":      &c.Gemini.APIKey,
		"GCLOUD_TTS_CREDS":    &c.Speech.CredentialsFile,
		"SEARCH_DB_PATH":      &c.Paths.IndexDB,
		"ARTICLE_DB_PATH":     &c.Paths.ContentDB,
		"AUDIO_OUTPUT_DIR":    &c.Paths.AudioDir,
		"TEMP_AUDIO_DIR":      &c.Paths.TempAudioDir,
		"LOG_DIR":             &c.Paths.LogDir,
		"TOPICS_FILE":         &c.Paths.TopicsFile,
		"LOG_LEVEL":           &c.Logging.Level,
		"PODCAST_FEED_URL":    &c.Feed.FeedURL,
		"AUDIO_BASE_URL":      &c.Feed.AudioBaseURL,
		"PODCAST_OWNER_NAME":  &c.Feed.OwnerName,
		"PODCAST_OWNER_EMAIL": &c.Feed.OwnerEmail,
	}
	for name, field := range overlay {
		if value := os.Getenv(name); value != "" {
			*field = value
		}
	}
}
