package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. Credential checks are left
// to the adapters that need them so read-only maintenance commands work
// without API keys.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFeed(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.IndexDB == "" {
		return errors.New("paths.index_db must be set")
	}
	if c.Paths.ContentDB == "" {
		return errors.New("paths.content_db must be set")
	}
	if c.Paths.IndexDB == c.Paths.ContentDB {
		return errors.New("paths.index_db and paths.content_db must be distinct files")
	}
	if c.Paths.AudioDir == "" {
		return errors.New("paths.audio_dir must be set")
	}
	if c.Paths.TempAudioDir == "" {
		return errors.New("paths.temp_audio_dir must be set")
	}
	return nil
}

func (c *Config) validateFeed() error {
	if c.Feed.Title == "" {
		return errors.New("feed.title must be set")
	}
	if c.Feed.Language == "" {
		return errors.New("feed.language must be set")
	}
	return nil
}

func (c *Config) validateRetention() error {
	windows := map[string]int{
		"retention.index_days":   c.Retention.IndexDays,
		"retention.content_days": c.Retention.ContentDays,
		"retention.audio_days":   c.Retention.AudioDays,
		"retention.log_days":     c.Retention.LogDays,
	}
	for name, days := range windows {
		if days < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers < 1 {
		return errors.New("workflow.workers must be at least 1")
	}
	if c.Workflow.RetryAttempts < 1 {
		return errors.New("workflow.retry_attempts must be at least 1")
	}
	if c.Workflow.StageTimeoutSeconds < 1 {
		return errors.New("workflow.stage_timeout_seconds must be at least 1")
	}
	if c.Workflow.RequestsPerMinute < 1 {
		return errors.New("workflow.requests_per_minute must be at least 1")
	}
	return nil
}

func (c *Config) validateSpeech() error {
	if c.Speech.SpeakingRate < 0.25 || c.Speech.SpeakingRate > 4.0 {
		return errors.New("speech.speaking_rate must be between 0.25 and 4.0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
