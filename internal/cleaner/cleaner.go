package cleaner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dailycast/internal/config"
	"dailycast/internal/logging"
	"dailycast/internal/services"
	"dailycast/internal/store"
)

// FeedRefresher regenerates the podcast feed after episodes are removed.
type FeedRefresher interface {
	RegenerateFeed(ctx context.Context) (string, error)
}

// Report tallies what a cleanup pass removed.
type Report struct {
	ContentRemoved    int64
	IndexRemoved      int64
	AudioFilesRemoved int
	TempFilesRemoved  int
	LogFilesRemoved   int
	DanglingAudioRefs int
}

// Cleaner enforces the retention windows: content rows, index entries,
// digest audio, temp segments, and log files each have their own horizon.
type Cleaner struct {
	cfg     *config.Config
	store   *store.Store
	refresh FeedRefresher
	logger  *slog.Logger
	now     func() time.Time
}

// New constructs a cleaner. refresh may be nil when no feed exists yet.
func New(cfg *config.Config, st *store.Store, refresh FeedRefresher, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cleaner{
		cfg:     cfg,
		store:   st,
		refresh: refresh,
		logger:  logger.With(logging.String(logging.FieldStage, "clean")),
		now:     time.Now,
	}
}

// Run executes a full retention pass. Failures are collected into the error;
// the pass keeps going so one bad file cannot stall retention forever.
func (c *Cleaner) Run(ctx context.Context) (Report, error) {
	report := Report{}
	now := c.now().UTC()
	var errs []error

	contentCutoff := cutoffDate(now, c.cfg.Retention.ContentDays)
	if removed, dangling, err := c.purgeContentBefore(ctx, contentCutoff); err != nil {
		errs = append(errs, err)
	} else {
		report.ContentRemoved = removed
		report.DanglingAudioRefs = dangling
	}

	indexCutoff := cutoffDate(now, c.cfg.Retention.IndexDays)
	if removed, err := c.store.DeleteIndexOlderThan(ctx, indexCutoff); err != nil {
		errs = append(errs, services.Wrap(services.ErrRetention, "clean", "index", indexCutoff, err))
	} else {
		report.IndexRemoved = removed
	}

	report.TempFilesRemoved = c.emptyTempDir()

	audioCutoff := now.AddDate(0, 0, -c.cfg.Retention.AudioDays)
	report.AudioFilesRemoved = logging.PruneOldFiles(c.logger, audioCutoff,
		logging.RetentionTarget{Dir: c.cfg.Paths.AudioDir, Pattern: "daily_digest_*.mp3"},
		logging.RetentionTarget{Dir: c.cfg.Paths.AudioDir, Pattern: "metadata_*.json"},
	)

	logCutoff := now.AddDate(0, 0, -c.cfg.Retention.LogDays)
	report.LogFilesRemoved = logging.PruneOldFiles(c.logger, logCutoff,
		logging.RetentionTarget{Dir: c.cfg.Paths.LogDir, Pattern: "*.log"},
	)

	if report.AudioFilesRemoved > 0 && c.refresh != nil {
		if _, err := c.refresh.RegenerateFeed(ctx); err != nil {
			errs = append(errs, services.Wrap(services.ErrRetention, "clean", "feed refresh", "", err))
		}
	}

	c.logger.Info("retention pass finished",
		logging.Int64("content_removed", report.ContentRemoved),
		logging.Int64("index_removed", report.IndexRemoved),
		logging.Int("audio_removed", report.AudioFilesRemoved),
		logging.Int("temp_removed", report.TempFilesRemoved),
		logging.Int("logs_removed", report.LogFilesRemoved))
	return report, errors.Join(errs...)
}

// CleanDate removes everything recorded for a single publication date.
func (c *Cleaner) CleanDate(ctx context.Context, date string) (Report, error) {
	report := Report{}

	if _, err := c.store.MarkPurgeableByDate(ctx, date); err != nil {
		return report, services.Wrap(services.ErrRetention, "clean", "mark date", date, err)
	}
	removed, dangling, err := c.deletePurgeable(ctx)
	if err != nil {
		return report, err
	}
	report.ContentRemoved = removed
	report.DanglingAudioRefs = dangling

	indexRemoved, err := c.store.DeleteIndexByDate(ctx, date)
	if err != nil {
		return report, services.Wrap(services.ErrRetention, "clean", "index date", date, err)
	}
	report.IndexRemoved = indexRemoved

	for _, name := range []string{
		fmt.Sprintf("daily_digest_%s.mp3", date),
		fmt.Sprintf("metadata_%s.json", date),
	} {
		path := filepath.Join(c.cfg.Paths.AudioDir, name)
		if err := os.Remove(path); err == nil {
			report.AudioFilesRemoved++
		} else if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("could not remove episode file", logging.String("path", path), logging.Error(err))
		}
	}

	if report.AudioFilesRemoved > 0 && c.refresh != nil {
		if _, err := c.refresh.RegenerateFeed(ctx); err != nil {
			return report, services.Wrap(services.ErrRetention, "clean", "feed refresh", date, err)
		}
	}
	return report, nil
}

// purgeContentBefore flags then deletes content older than the cutoff date.
func (c *Cleaner) purgeContentBefore(ctx context.Context, cutoff string) (int64, int, error) {
	if _, err := c.store.MarkPurgeable(ctx, cutoff); err != nil {
		return 0, 0, services.Wrap(services.ErrRetention, "clean", "mark content", cutoff, err)
	}
	return c.deletePurgeable(ctx)
}

// deletePurgeable removes flagged records audio-file-first: a crash between
// the file and the row leaves only a dangling row, which the next pass
// deletes without complaint.
func (c *Cleaner) deletePurgeable(ctx context.Context) (int64, int, error) {
	records, err := c.store.PurgeableContent(ctx)
	if err != nil {
		return 0, 0, services.Wrap(services.ErrRetention, "clean", "list purgeable", "", err)
	}

	var removed int64
	dangling := 0
	for _, record := range records {
		if record.AudioPath != "" {
			switch err := os.Remove(record.AudioPath); {
			case err == nil:
			case errors.Is(err, os.ErrNotExist):
				dangling++
			default:
				c.logger.Warn("could not remove segment audio, keeping record for retry",
					logging.Int64(logging.FieldRecordID, record.ID),
					logging.String("path", record.AudioPath),
					logging.Error(err))
				continue
			}
		}
		deleted, err := c.store.DeleteContent(ctx, record.ID)
		if err != nil {
			return removed, dangling, services.Wrap(services.ErrRetention, "clean", "delete record",
				fmt.Sprintf("record %d", record.ID), err)
		}
		if deleted {
			removed++
		}
	}
	return removed, dangling, nil
}

// emptyTempDir deletes everything in the temp audio directory. Segments only
// matter for the run that created them.
func (c *Cleaner) emptyTempDir() int {
	entries, err := os.ReadDir(c.cfg.Paths.TempAudioDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("could not read temp audio dir", logging.Error(err))
		}
		return 0
	}
	removed := 0
	for _, entry := range entries {
		path := filepath.Join(c.cfg.Paths.TempAudioDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			c.logger.Warn("could not remove temp file", logging.String("path", path), logging.Error(err))
			continue
		}
		removed++
	}
	return removed
}

func cutoffDate(now time.Time, days int) string {
	return now.AddDate(0, 0, -days).Format("2006-01-02")
}
