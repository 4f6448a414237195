// Package dates resolves the single logical processing date for a pipeline
// run and provides the date parsing helpers shared by the fetch and
// maintenance surfaces.
//
// The Target value is resolved exactly once at the top of the call graph and
// handed to every component; nothing downstream recomputes "now" for date
// logic, which keeps stages and tests deterministic.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// DayFormat is the canonical YYYY-MM-DD layout used across both stores,
// file names, and the CLI.
const DayFormat = "2006-01-02"

// Target is the resolved processing date for one pipeline run.
type Target struct {
	day  string
	time time.Time
}

// Resolve produces the target date from an explicit override or the
// "yesterday" default relative to the supplied clock value.
func Resolve(override string, now time.Time) (Target, error) {
	if trimmed := strings.TrimSpace(override); trimmed != "" {
		parsed, err := time.ParseInLocation(DayFormat, trimmed, time.UTC)
		if err != nil {
			return Target{}, fmt.Errorf("parse target date %q: expected YYYY-MM-DD: %w", trimmed, err)
		}
		return fromTime(parsed), nil
	}
	yesterday := now.UTC().AddDate(0, 0, -1)
	return fromTime(yesterday), nil
}

// MustParse builds a Target from a canonical YYYY-MM-DD string and panics on
// malformed input. Intended for tests and compile-time-constant dates.
func MustParse(day string) Target {
	t, err := Resolve(day, time.Time{})
	if err != nil {
		panic(err)
	}
	return t
}

func fromTime(t time.Time) Target {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return Target{day: day.Format(DayFormat), time: day}
}

// Day returns the date in YYYY-MM-DD form.
func (t Target) Day() string { return t.day }

// Time returns midnight UTC of the target day.
func (t Target) Time() time.Time { return t.time }

// AddDays returns a target shifted by n days; negative values move into the
// past. Used to compute retention cutoffs from the run date.
func (t Target) AddDays(n int) Target {
	return fromTime(t.time.AddDate(0, 0, n))
}

func (t Target) String() string { return t.day }

// feedDateLayouts covers the publication date formats observed in news RSS
// feeds. RFC1123 variants come first because they dominate in practice.
var feedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	DayFormat,
}

// ParseFeedDate normalizes an RSS publication date to YYYY-MM-DD. The second
// return value is false when no known layout matches.
func ParseFeedDate(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}
	for _, layout := range feedDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC().Format(DayFormat), true
		}
	}
	return "", false
}

// Range expands an inclusive start..end date range into individual days,
// used by the maintenance stats surface.
func Range(start, end string) ([]string, error) {
	from, err := time.ParseInLocation(DayFormat, strings.TrimSpace(start), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse range start %q: %w", start, err)
	}
	to, err := time.ParseInLocation(DayFormat, strings.TrimSpace(end), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse range end %q: %w", end, err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("range end %s precedes start %s", end, start)
	}
	var days []string
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, 1) {
		days = append(days, cur.Format(DayFormat))
	}
	return days, nil
}
