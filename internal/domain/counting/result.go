package counting

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Outcome is a token count, optionally flagged as exceeding a budget.
type Outcome struct {
	Tokens        int
	LimitExceeded bool
	MaxTokens     int
}

// Plain wraps a count with no budget information.
func Plain(tokens int) Outcome {
	return Outcome{Tokens: tokens}
}

// CheckBudget returns an exceeded outcome when maxTokens is set and tokens is above it.
func CheckBudget(tokens int, maxTokens *int) Outcome {
	if maxTokens != nil && tokens > *maxTokens {
		return Outcome{Tokens: tokens, LimitExceeded: true, MaxTokens: *maxTokens}
	}
	return Plain(tokens)
}

// budgetRecord is the JSON shape of an exceeded outcome.
type budgetRecord struct {
	Tokens        int  `json:"tokens"`
	LimitExceeded bool `json:"limit_exceeded"`
	MaxTokens     int  `json:"max_tokens"`
}

// MarshalJSON encodes a plain outcome as a bare number and an exceeded one as a record.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if !o.LimitExceeded {
		return json.Marshal(o.Tokens)
	}
	return json.Marshal(budgetRecord{Tokens: o.Tokens, LimitExceeded: true, MaxTokens: o.MaxTokens})
}

// String renders the outcome for text output.
func (o Outcome) String() string {
	if o.LimitExceeded {
		return fmt.Sprintf("%d (exceeds limit of %d)", o.Tokens, o.MaxTokens)
	}
	return fmt.Sprintf("%d", o.Tokens)
}

// EntryKind tags a directory entry.
type EntryKind int

const (
	EntryCounted EntryKind = iota
	EntryFailed
)

// Entry is the result for one file in a directory count.
type Entry struct {
	Kind    EntryKind
	Outcome Outcome
	Message string
}

// Counted returns a successful entry.
func Counted(tokens int) Entry {
	return Entry{Kind: EntryCounted, Outcome: Plain(tokens)}
}

// Failed returns a failed entry whose message is prefixed with "Error: ".
func Failed(err error) Entry {
	return Entry{Kind: EntryFailed, Message: "Error: " + err.Error()}
}

// OK reports whether the entry holds a count.
func (e Entry) OK() bool {
	return e.Kind == EntryCounted
}

// MarshalJSON encodes counted entries like Outcome and failures as their message.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Kind == EntryFailed {
		return json.Marshal(e.Message)
	}
	return e.Outcome.MarshalJSON()
}

// ResultKind tags a Result.
type ResultKind int

const (
	ResultScalar ResultKind = iota
	ResultDirectory
)

// FileEntry pairs a path with its entry, in enumeration order.
type FileEntry struct {
	Path  string
	Entry Entry
}

// Result is either a single outcome or an insertion-ordered mapping of paths to entries.
type Result struct {
	Kind   ResultKind
	Scalar Outcome
	Files  *orderedmap.OrderedMap[string, Entry]
}

// ScalarResult wraps a single count.
func ScalarResult(tokens int) Result {
	return Result{Kind: ResultScalar, Scalar: Plain(tokens)}
}

// NewDirectoryResult returns an empty directory result.
func NewDirectoryResult() Result {
	return Result{Kind: ResultDirectory, Files: orderedmap.New[string, Entry]()}
}

// Set records an entry. A path seen before keeps its position and takes the new entry.
func (r Result) Set(path string, e Entry) {
	r.Files.Set(path, e)
}

// Entries returns the directory entries in insertion order.
func (r Result) Entries() []FileEntry {
	if r.Files == nil {
		return nil
	}
	entries := make([]FileEntry, 0, r.Files.Len())
	for pair := r.Files.Oldest(); pair != nil; pair = pair.Next() {
		entries = append(entries, FileEntry{Path: pair.Key, Entry: pair.Value})
	}
	return entries
}

// Total returns the summed tokens and number of counted files. For a scalar
// result it returns the scalar and 1.
func (r Result) Total() (tokens, files int) {
	if r.Kind == ResultScalar {
		return r.Scalar.Tokens, 1
	}
	for _, fe := range r.Entries() {
		if fe.Entry.OK() {
			tokens += fe.Entry.Outcome.Tokens
			files++
		}
	}
	return tokens, files
}

// Failures returns the number of failed directory entries.
func (r Result) Failures() int {
	n := 0
	for _, fe := range r.Entries() {
		if !fe.Entry.OK() {
			n++
		}
	}
	return n
}

// ApplyBudget checks every count against maxTokens. Failed entries are left untouched.
func (r Result) ApplyBudget(maxTokens *int) Result {
	if maxTokens == nil {
		return r
	}
	if r.Kind == ResultScalar {
		r.Scalar = CheckBudget(r.Scalar.Tokens, maxTokens)
		return r
	}
	for pair := r.Files.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.OK() {
			pair.Value.Outcome = CheckBudget(pair.Value.Outcome.Tokens, maxTokens)
		}
	}
	return r
}

// MarshalJSON encodes the scalar or the ordered mapping.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Kind == ResultScalar {
		return r.Scalar.MarshalJSON()
	}
	if r.Files == nil || r.Files.Len() == 0 {
		return []byte("{}"), nil
	}
	return r.Files.MarshalJSON()
}
