package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget specifies a directory and filename pattern to prune.
type RetentionTarget struct {
	Dir     string
	Pattern string
}

// PruneOldFiles removes files matching the provided targets whose
// modification time is older than the cutoff. Returns the number of files
// removed; individual failures are logged and skipped so pruning never
// blocks the caller.
func PruneOldFiles(logger *slog.Logger, cutoff time.Time, targets ...RetentionTarget) int {
	if logger == nil {
		logger = NewNop()
	}
	removed := 0
	for _, target := range targets {
		dir := strings.TrimSpace(target.Dir)
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if pat := strings.TrimSpace(target.Pattern); pat != "" {
				matched, err := filepath.Match(pat, name)
				if err != nil || !matched {
					continue
				}
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			fullPath := filepath.Join(dir, name)
			if err := os.Remove(fullPath); err != nil {
				logger.Warn("retention remove failed; file remains",
					String("path", fullPath),
					Error(err),
				)
				continue
			}
			removed++
			logger.Debug("file pruned", String("path", fullPath))
		}
	}
	return removed
}
