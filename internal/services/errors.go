package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the error taxonomy. Adapters translate raw
// third-party failures into one of these at the boundary so the
// orchestrator's per-item handling stays uniform.
var (
	ErrDiscovery     = errors.New("discovery error")
	ErrScrape        = errors.New("scrape error")
	ErrSummarization = errors.New("summarization error")
	ErrSynthesis     = errors.New("synthesis error")
	ErrPublish       = errors.New("publish error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrRetention     = errors.New("retention error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether an error should abort the entire run rather than
// fail a single record. Configuration problems (missing or rejected
// credentials, unreachable services) and publish failures are fatal; the
// rest are per-item.
func Fatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrPublish)
}

// Retryable reports whether a failed adapter call is worth another attempt.
// Configuration errors never heal on retry.
func Retryable(err error) bool {
	return err != nil && !errors.Is(err, ErrConfiguration)
}

// Reason extracts a stable, human-readable failure reason for persistence
// on a record.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
