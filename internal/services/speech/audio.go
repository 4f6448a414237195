package speech

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"dailycast/internal/services"
)

// IntroText returns the spoken introduction for a digest date.
func IntroText(date string) string {
	return fmt.Sprintf("Here is your news digest for %s. Today's top stories cover the following topics.", date)
}

// OutroText returns the spoken closing for every digest.
func OutroText() string {
	return "Thank you for listening to your daily news digest. Stay informed and have a great day."
}

// MergeSegments concatenates MP3 segments into a single digest file. MP3
// frames are self-delimiting, so byte concatenation produces a playable
// stream. The digest is written to a temp file and renamed into place.
func MergeSegments(segmentPaths []string, destPath string) error {
	if len(segmentPaths) == 0 {
		return services.Wrap(services.ErrSynthesis, "synthesize", "merge", "no segments to merge", nil)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return services.Wrap(services.ErrSynthesis, "synthesize", "merge", destPath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".digest-*.mp3")
	if err != nil {
		return services.Wrap(services.ErrSynthesis, "synthesize", "merge", "create temp digest", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	for _, segment := range segmentPaths {
		src, err := os.Open(segment)
		if err != nil {
			return services.Wrap(services.ErrSynthesis, "synthesize", "merge", segment, err)
		}
		_, copyErr := io.Copy(tmp, src)
		src.Close()
		if copyErr != nil {
			return services.Wrap(services.ErrSynthesis, "synthesize", "merge", segment, copyErr)
		}
	}

	if err := tmp.Close(); err != nil {
		return services.Wrap(services.ErrSynthesis, "synthesize", "merge", "close temp digest", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return services.Wrap(services.ErrSynthesis, "synthesize", "merge", destPath, err)
	}
	return nil
}
