package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains database, audio, and log location configuration.
type Paths struct {
	IndexDB      string `toml:"index_db"`
	ContentDB    string `toml:"content_db"`
	AudioDir     string `toml:"audio_dir"`
	TempAudioDir string `toml:"temp_audio_dir"`
	LogDir       string `toml:"log_dir"`
	TopicsFile   string `toml:"topics_file"`
}

// Feed contains the podcast channel metadata and public URLs.
type Feed struct {
	Title        string `toml:"title"`
	Description  string `toml:"description"`
	Link         string `toml:"link"`
	FeedURL      string `toml:"feed_url"`
	AudioBaseURL string `toml:"audio_base_url"`
	Language     string `toml:"language"`
	Category     string `toml:"category"`
	Author       string `toml:"author"`
	OwnerName    string `toml:"owner_name"`
	OwnerEmail   string `toml:"owner_email"`
	Explicit     bool   `toml:"explicit"`
}

// Gemini contains configuration for the summarization service.
type Gemini struct {
	APIKey          string `toml:"api_key"`
	Model           string `toml:"model"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	MaxArticleChars int    `toml:"max_article_chars"`
}

// Speech contains configuration for the text-to-speech service.
type Speech struct {
	CredentialsFile string  `toml:"credentials_file"`
	Voice           string  `toml:"voice"`
	LanguageCode    string  `toml:"language_code"`
	SpeakingRate    float64 `toml:"speaking_rate"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
}

// Fetch contains configuration for news discovery and scraping.
type Fetch struct {
	MaxResultsPerTopic int    `toml:"max_results_per_topic"`
	UserAgent          string `toml:"user_agent"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	MinArticleChars    int    `toml:"min_article_chars"`
}

// Retention contains the independent age windows enforced by the cleaner.
// The index window keeps discovery metadata longer than derived content so
// dedup keeps working after content rows are purged.
type Retention struct {
	IndexDays   int `toml:"index_days"`
	ContentDays int `toml:"content_days"`
	AudioDays   int `toml:"audio_days"`
	LogDays     int `toml:"log_days"`
}

// Workflow contains pipeline execution tuning.
type Workflow struct {
	Workers             int `toml:"workers"`
	RetryAttempts       int `toml:"retry_attempts"`
	RetryInitialDelayMS int `toml:"retry_initial_delay_ms"`
	StageTimeoutSeconds int `toml:"stage_timeout_seconds"`
	RunTimeoutSeconds   int `toml:"run_timeout_seconds"`
	RequestsPerMinute   int `toml:"requests_per_minute"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config centralizes every knob the pipeline and CLI need.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Feed      Feed      `toml:"feed"`
	Gemini    Gemini    `toml:"gemini"`
	Speech    Speech    `toml:"speech"`
	Fetch     Fetch     `toml:"fetch"`
	Retention Retention `toml:"retention"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
	Topics    []string  `toml:"topics"`
}

// DefaultConfigPath returns the canonical per-user config location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dailycast/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// overrides (including a .env file in the working directory) are applied on
// top of file values. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dailycast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a pipeline run writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Paths.IndexDB),
		filepath.Dir(c.Paths.ContentDB),
		c.Paths.AudioDir,
		c.Paths.TempAudioDir,
		c.Paths.LogDir,
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() error {
	pathFields := []*string{
		&c.Paths.IndexDB,
		&c.Paths.ContentDB,
		&c.Paths.AudioDir,
		&c.Paths.TempAudioDir,
		&c.Paths.LogDir,
		&c.Paths.TopicsFile,
		&c.Speech.CredentialsFile,
	}
	for _, field := range pathFields {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	topics := c.Topics[:0]
	for _, topic := range c.Topics {
		if trimmed := strings.TrimSpace(topic); trimmed != "" {
			topics = append(topics, trimmed)
		}
	}
	c.Topics = topics
	return nil
}

// ExpandPath resolves a leading ~ against the user's home directory.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return trimmed, nil
}

// CreateSample writes the annotated sample configuration to the given path.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
