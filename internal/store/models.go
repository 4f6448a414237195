package store

import (
	"strings"
	"time"
)

// Status represents a content record's position in the pipeline.
type Status string

const (
	StatusDiscovered  Status = "discovered"
	StatusScraped     Status = "scraped"
	StatusSummarized  Status = "summarized"
	StatusSynthesized Status = "synthesized"
	StatusPublished   Status = "published"
	StatusFailed      Status = "failed"
)

var allStatuses = []Status{
	StatusDiscovered,
	StatusScraped,
	StatusSummarized,
	StatusSynthesized,
	StatusPublished,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// statusRank orders the forward progression. Failed sits outside the chain.
var statusRank = map[Status]int{
	StatusDiscovered:  0,
	StatusScraped:     1,
	StatusSummarized:  2,
	StatusSynthesized: 3,
	StatusPublished:   4,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Rank returns the status's position in the forward chain and whether the
// status participates in it. Failed and unknown statuses report false.
func (s Status) Rank() (int, bool) {
	rank, ok := statusRank[s]
	return rank, ok
}

// Before reports whether s precedes other in the forward chain. Statuses
// outside the chain never precede anything.
func (s Status) Before(other Status) bool {
	left, ok := s.Rank()
	if !ok {
		return false
	}
	right, ok := other.Rank()
	if !ok {
		return false
	}
	return left < right
}

var forwardChain = []Status{
	StatusDiscovered,
	StatusScraped,
	StatusSummarized,
	StatusSynthesized,
	StatusPublished,
}

// Next returns the status that follows s in the forward chain.
func (s Status) Next() (Status, bool) {
	rank, ok := s.Rank()
	if !ok || rank+1 >= len(forwardChain) {
		return "", false
	}
	return forwardChain[rank+1], true
}

// IndexEntry is one discovered headline in the search index.
type IndexEntry struct {
	ID            int64
	Topic         string
	Title         string
	URL           string
	RealURL       string
	Source        string
	FeedDate      string
	PublishedDate string
	InsertedAt    time.Time
}

// ContentRecord tracks one article through the pipeline.
type ContentRecord struct {
	ID            int64
	RealURL       string
	Title         string
	Topic         string
	Source        string
	PublishedDate string
	Status        Status
	CleanText     string
	SummaryText   string
	AudioPath     string
	FailureStage  string
	FailureReason string
	Purgeable     bool
	InsertedAt    time.Time
	UpdatedAt     time.Time
	SummarizedAt  *time.Time
}

// DateStats aggregates pipeline state for a single publication date.
type DateStats struct {
	Date       string
	IndexCount int
	ByStatus   map[Status]int
	Topics     []string
}

// Stats aggregates state across both databases.
type Stats struct {
	IndexTotal   int
	ContentTotal int
	ByStatus     map[Status]int
	ByDate       []DateStats
}
