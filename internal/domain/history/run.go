// Package history provides domain types for recorded count runs.
package history

import (
	"time"

	domainCounting "github.com/jbctechsolutions/counttokens/internal/domain/counting"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunRecord represents a single invocation of the counter.
type RunRecord struct {
	ID            string        // Unique run ID
	CorrelationID string        // Correlation ID for tracing
	Mode          string        // text, file, or directory
	Target        string        // Path counted, or <text>
	Encoding      string        // Encoding name
	Approximation string        // none, words, or characters
	Streaming     bool          // Whether files were streamed
	MaxTokens     *int          // Budget, if one was given
	Status        string        // completed or failed
	TotalTokens   int           // Sum over counted files
	Files         int           // Files counted successfully
	FailedFiles   int           // Directory entries that failed
	ErrorMessage  string        // Error message if the run failed
	Duration      time.Duration // Total run duration
	StartedAt     time.Time     // When the run started
	CompletedAt   time.Time     // When the run completed
}

// EntryRecord is one file of a directory run, or the single result of a
// text or file run.
type EntryRecord struct {
	RunID         string // Parent run ID
	Position      int    // Enumeration order within the run
	Path          string // File path, or <text>
	Tokens        int    // Token count when counted
	LimitExceeded bool   // Whether the count exceeded the run's budget
	Error         string // Error message when counting failed
}

// Filter narrows the runs returned by a history query.
type Filter struct {
	Mode  string    // Only runs of this mode, if set
	Since time.Time // Only runs started at or after this time, if set
	Limit int       // Maximum number of runs, 0 for no limit
}

// EntriesFromResult flattens a result into entry records in result order.
func EntriesFromResult(runID, target string, r domainCounting.Result) []EntryRecord {
	if r.Kind == domainCounting.ResultScalar {
		return []EntryRecord{{
			RunID:         runID,
			Path:          target,
			Tokens:        r.Scalar.Tokens,
			LimitExceeded: r.Scalar.LimitExceeded,
		}}
	}

	entries := r.Entries()
	records := make([]EntryRecord, 0, len(entries))
	for i, fe := range entries {
		rec := EntryRecord{RunID: runID, Position: i, Path: fe.Path}
		if fe.Entry.OK() {
			rec.Tokens = fe.Entry.Outcome.Tokens
			rec.LimitExceeded = fe.Entry.Outcome.LimitExceeded
		} else {
			rec.Error = fe.Entry.Message
		}
		records = append(records, rec)
	}
	return records
}
