// Package logging builds the slog loggers used across dailycast.
//
// It provides a compact console handler for interactive runs, a JSON
// handler for automation, context helpers that thread run/stage/date
// identifiers into every record, and mtime-based file pruning shared by
// the retention cleaner.
package logging
