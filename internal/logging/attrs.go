package logging

import (
	"log/slog"
)

// Shared attribute keys so log queries stay consistent across packages.
const (
	FieldStage     = "stage"
	FieldTopic     = "topic"
	FieldRecordID  = "record_id"
	FieldRunID     = "run_id"
	FieldDate      = "date"
	FieldURL       = "url"
	FieldEventType = "event_type"
)

// String builds a string attribute.
func String(key, value string) slog.Attr { return slog.String(key, value) }

// Int builds an int attribute.
func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

// Int64 builds an int64 attribute.
func Int64(key string, value int64) slog.Attr { return slog.Int64(key, value) }

// Error builds the conventional error attribute, tolerating nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
