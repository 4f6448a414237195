package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadParsesFileAndExpandsPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
topics = ["Technology", " Science ", ""]

[paths]
index_db = "` + dir + `/db/index.db"
content_db = "` + dir + `/db/content.db"
audio_dir = "` + dir + `/audio"
temp_audio_dir = "` + dir + `/audio/temp"
log_dir = "` + dir + `/logs"

[retention]
index_days = 14
content_days = 5
audio_days = 7
log_days = 30
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, fromFile, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !fromFile {
		t.Fatal("expected config to load from file")
	}
	if resolved != path {
		t.Fatalf("resolved path = %s, want %s", resolved, path)
	}
	if cfg.Retention.IndexDays != 14 || cfg.Retention.ContentDays != 5 {
		t.Fatalf("retention not applied: %+v", cfg.Retention)
	}
	if len(cfg.Topics) != 2 || cfg.Topics[1] != "Science" {
		t.Fatalf("topics not trimmed: %v", cfg.Topics)
	}
	// Unset sections keep defaults.
	if cfg.Workflow.Workers != defaultWorkers {
		t.Fatalf("workers = %d, want default %d", cfg.Workflow.Workers, defaultWorkers)
	}
}

func TestEnvOverridesFileValues(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("AUDIO_BASE_URL", "https://cdn.example.com/audio/")

	cfg := Default()
	cfg.applyEnv()

	if cfg.Gemini.APIKey != "env-key" {
		t.Fatalf("gemini key = %q", cfg.Gemini.APIKey)
	}
	if cfg.Feed.AudioBaseURL != "https://cdn.example.com/audio/" {
		t.Fatalf("audio base url = %q", cfg.Feed.AudioBaseURL)
	}
}

func TestValidateRejectsSharedDatabaseFile(t *testing.T) {
	cfg := Default()
	cfg.Paths.IndexDB = "/tmp/one.db"
	cfg.Paths.ContentDB = "/tmp/one.db"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "distinct") {
		t.Fatalf("expected distinct-files error, got %v", err)
	}
}

func TestValidateRejectsBadWorkflow(t *testing.T) {
	cfg := Default()
	cfg.Workflow.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero workers")
	}

	cfg = Default()
	cfg.Workflow.RetryAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero retry attempts")
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "yaml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}

func TestCreateSampleRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if err := CreateSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[retention]") {
		t.Fatal("sample config missing retention section")
	}
}
