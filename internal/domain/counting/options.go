// Package counting contains the value types shared by the token counting
// engine and its callers: approximation settings, count options, and the
// tagged result shapes returned for strings, files, and directories.
package counting

import (
	"fmt"
	"strings"

	domainErrors "github.com/jbctechsolutions/counttokens/internal/domain/errors"
	"github.com/jbctechsolutions/counttokens/internal/domain/tokenizer"
)

// Default approximation ratios.
const (
	DefaultTokensPerWord      = 4.0 / 3.0
	DefaultCharactersPerToken = 4.0
)

// DefaultChunkSize is the streaming chunk size in characters (1 MiB).
const DefaultChunkSize = 1024 * 1024

// DefaultPatterns returns the glob patterns used for directories when none are given.
// A fresh slice is returned on every call.
func DefaultPatterns() []string {
	return []string{"*.txt", "*.py", "*.md"}
}

// Approximation selects how a count is estimated without the tokenizer.
type Approximation string

const (
	ApproxNone       Approximation = ""
	ApproxWords      Approximation = "w"
	ApproxCharacters Approximation = "c"
)

// ParseApproximation parses the CLI form of an approximation method.
// Only "w", "c" and the empty string are accepted.
func ParseApproximation(s string) (Approximation, error) {
	switch Approximation(strings.TrimSpace(s)) {
	case ApproxNone:
		return ApproxNone, nil
	case ApproxWords:
		return ApproxWords, nil
	case ApproxCharacters:
		return ApproxCharacters, nil
	default:
		return ApproxNone, domainErrors.NewError(domainErrors.CodeValidation,
			fmt.Sprintf("approximation %q must be one of w, c", s), domainErrors.ErrUnknownApproximation)
	}
}

// Enabled reports whether the tokenizer is bypassed. Values other than words
// and characters count exactly.
func (a Approximation) Enabled() bool {
	return a == ApproxWords || a == ApproxCharacters
}

// String returns a human readable name.
func (a Approximation) String() string {
	switch a {
	case ApproxWords:
		return "words"
	case ApproxCharacters:
		return "characters"
	default:
		return "none"
	}
}

// Ratios holds the two approximation ratios. No validation is applied beyond
// rejecting a zero divisor when character approximation runs.
type Ratios struct {
	TokensPerWord      float64
	CharactersPerToken float64
}

// DefaultRatios returns the default approximation ratios.
func DefaultRatios() Ratios {
	return Ratios{
		TokensPerWord:      DefaultTokensPerWord,
		CharactersPerToken: DefaultCharactersPerToken,
	}
}

// Options configures a count. The zero value is not usable; start from DefaultOptions.
type Options struct {
	Encoding      string
	Approximation Approximation
	Ratios        Ratios

	// Streaming reads files in line-aligned chunks of ChunkSize characters.
	Streaming bool
	ChunkSize int

	// Directory mode.
	Patterns  []string
	Recursive bool
	// Workers > 1 counts directory files concurrently. Results keep enumeration order.
	Workers int

	// MaxTokens, when set, turns counts above it into budget-exceeded outcomes.
	MaxTokens *int
}

// DefaultOptions returns options with every default applied.
func DefaultOptions() Options {
	return Options{
		Encoding:  tokenizer.DefaultEncoding,
		Ratios:    DefaultRatios(),
		ChunkSize: DefaultChunkSize,
		Patterns:  DefaultPatterns(),
		Workers:   1,
	}
}

// WithDefaults fills unset fields with defaults.
func (o Options) WithDefaults() Options {
	if o.Encoding == "" {
		o.Encoding = tokenizer.DefaultEncoding
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if len(o.Patterns) == 0 {
		o.Patterns = DefaultPatterns()
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	return o
}

// Limit returns a pointer suitable for Options.MaxTokens.
func Limit(n int) *int {
	return &n
}
