package pipeline

// Outcome classifies a full pipeline run.
type Outcome string

const (
	// OutcomeComplete means every record for the date reached its terminal
	// status.
	OutcomeComplete Outcome = "complete"
	// OutcomePartial means at least one record reached its terminal status
	// while others failed.
	OutcomePartial Outcome = "partial"
	// OutcomeEmpty means discovery found nothing to process.
	OutcomeEmpty Outcome = "empty"
	// OutcomeAborted means records existed but none produced output.
	OutcomeAborted Outcome = "aborted"
)

// ExitCode maps an outcome to the process exit code. Partial runs exit zero
// with a warning; empty runs signal a distinct code so schedulers can tell
// "nothing happened" apart from failure.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeComplete, OutcomePartial:
		return 0
	case OutcomeEmpty:
		return 2
	default:
		return 1
	}
}

// Result summarizes a pipeline run.
type Result struct {
	RunID       string
	Date        string
	Outcome     Outcome
	Discovered  int
	Scraped     int
	Summarized  int
	Synthesized int
	Published   int
	Failed      int
	Total       int
	DigestPath  string
	FeedPath    string
}

func computeOutcome(total, terminal int) Outcome {
	switch {
	case total == 0:
		return OutcomeEmpty
	case terminal == total:
		return OutcomeComplete
	case terminal > 0:
		return OutcomePartial
	default:
		return OutcomeAborted
	}
}
