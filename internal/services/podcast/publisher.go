package podcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dailycast/internal/config"
	"dailycast/internal/logging"
	"dailycast/internal/services"
	"dailycast/internal/services/speech"
	"dailycast/internal/stage"
)

// Metadata is the JSON sidecar written next to each digest.
type Metadata struct {
	EpisodeDate  string   `json:"episode_date"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Topics       []string `json:"topics"`
	AudioFile    string   `json:"audio_file"`
	FileSize     int64    `json:"file_size"`
	ArticleCount int      `json:"article_count"`
	PublishedAt  string   `json:"published_at"`
}

// Publisher assembles topic segments into the day's digest, writes the
// metadata sidecar, and regenerates the podcast feed from everything in the
// audio directory.
type Publisher struct {
	audioDir     string
	audioBaseURL string
	feedCfg      config.Feed
	logger       *slog.Logger
}

// New builds a publisher from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{
		audioDir:     cfg.Paths.AudioDir,
		audioBaseURL: strings.TrimRight(cfg.Feed.AudioBaseURL, "/") + "/",
		feedCfg:      cfg.Feed,
		logger:       logger.With(logging.String(logging.FieldStage, "publish")),
	}
}

// Publish implements stage.Publisher.
func (p *Publisher) Publish(ctx context.Context, manifest *stage.Manifest) error {
	if manifest == nil || len(manifest.Segments) == 0 {
		return services.Wrap(services.ErrPublish, "publish", "assemble", "no segments to publish", nil)
	}
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrPublish, "publish", "assemble", "", err)
	}

	segmentPaths := make([]string, 0, len(manifest.Segments)+2)
	if manifest.IntroPath != "" {
		segmentPaths = append(segmentPaths, manifest.IntroPath)
	}
	for _, segment := range manifest.Segments {
		segmentPaths = append(segmentPaths, segment.AudioPath)
	}
	if manifest.OutroPath != "" {
		segmentPaths = append(segmentPaths, manifest.OutroPath)
	}

	digestPath := filepath.Join(p.audioDir, fmt.Sprintf("daily_digest_%s.mp3", manifest.Date))
	if err := speech.MergeSegments(segmentPaths, digestPath); err != nil {
		return services.Wrap(services.ErrPublish, "publish", "assemble digest", manifest.Date, err)
	}
	manifest.DigestPath = digestPath

	metadataPath, err := p.writeMetadata(manifest, digestPath)
	if err != nil {
		return err
	}
	manifest.MetadataPath = metadataPath

	feedPath, err := p.RegenerateFeed(ctx)
	if err != nil {
		return err
	}
	manifest.FeedPath = feedPath

	p.logger.Info("digest published",
		logging.String(logging.FieldDate, manifest.Date),
		logging.String("digest", digestPath),
		logging.String("feed", feedPath),
		logging.Int("segments", len(manifest.Segments)))
	return nil
}

func (p *Publisher) writeMetadata(manifest *stage.Manifest, digestPath string) (string, error) {
	info, err := os.Stat(digestPath)
	if err != nil {
		return "", services.Wrap(services.ErrPublish, "publish", "stat digest", digestPath, err)
	}

	topics := make([]string, 0, len(manifest.Segments))
	articles := 0
	for _, segment := range manifest.Segments {
		topics = append(topics, segment.Topic)
		articles += len(segment.Records)
	}

	metadata := Metadata{
		EpisodeDate:  manifest.Date,
		Title:        fmt.Sprintf("Daily News Digest - %s", manifest.Date),
		Description:  fmt.Sprintf("Your daily news digest for %s", manifest.Date),
		Topics:       topics,
		AudioFile:    filepath.Base(digestPath),
		FileSize:     info.Size(),
		ArticleCount: articles,
		PublishedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrPublish, "publish", "marshal metadata", manifest.Date, err)
	}
	path := filepath.Join(p.audioDir, fmt.Sprintf("metadata_%s.json", manifest.Date))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", services.Wrap(services.ErrPublish, "publish", "write metadata", path, err)
	}
	return path, nil
}

// RegenerateFeed rebuilds podcast.xml from the digests currently in the
// audio directory. It is also called after retention deletes old episodes.
func (p *Publisher) RegenerateFeed(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrPublish, "publish", "feed", "", err)
	}

	episodes, err := p.scanEpisodes()
	if err != nil {
		return "", err
	}

	contents, err := BuildFeed(p.feedCfg, episodes)
	if err != nil {
		return "", services.Wrap(services.ErrPublish, "publish", "build feed", "", err)
	}
	feedPath := filepath.Join(p.audioDir, "podcast.xml")
	if err := WriteFeed(feedPath, contents); err != nil {
		return "", services.Wrap(services.ErrPublish, "publish", "write feed", feedPath, err)
	}
	return feedPath, nil
}

func (p *Publisher) scanEpisodes() ([]Episode, error) {
	matches, err := filepath.Glob(filepath.Join(p.audioDir, "daily_digest_*.mp3"))
	if err != nil {
		return nil, services.Wrap(services.ErrPublish, "publish", "scan audio dir", p.audioDir, err)
	}

	episodes := make([]Episode, 0, len(matches))
	for _, path := range matches {
		name := filepath.Base(path)
		date := strings.TrimSuffix(strings.TrimPrefix(name, "daily_digest_"), ".mp3")
		if _, err := time.Parse("2006-01-02", date); err != nil {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		episode := Episode{
			Date:     date,
			Title:    fmt.Sprintf("Daily News Digest - %s", date),
			Summary:  fmt.Sprintf("Your daily news digest for %s", date),
			AudioURL: p.audioBaseURL + name,
			Size:     info.Size(),
		}
		if metadata, ok := p.readMetadata(date); ok {
			if len(metadata.Topics) > 0 {
				episode.Summary = fmt.Sprintf("%s. Topics: %s.", episode.Summary, strings.Join(metadata.Topics, ", "))
			}
		}
		episodes = append(episodes, episode)
	}
	return episodes, nil
}

func (p *Publisher) readMetadata(date string) (Metadata, bool) {
	var metadata Metadata
	body, err := os.ReadFile(filepath.Join(p.audioDir, fmt.Sprintf("metadata_%s.json", date)))
	if err != nil {
		return metadata, false
	}
	if err := json.Unmarshal(body, &metadata); err != nil {
		return metadata, false
	}
	return metadata, true
}
