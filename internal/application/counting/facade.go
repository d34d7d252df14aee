package counting

import (
	"context"

	domainCounting "github.com/jbctechsolutions/counttokens/internal/domain/counting"
	domainErrors "github.com/jbctechsolutions/counttokens/internal/domain/errors"
)

// Input selects what to count. Text takes precedence over File, and File
// over Directory. A nil Text means no text was given; an empty one counts as zero.
type Input struct {
	Text      *string
	File      string
	Directory string
}

// Mode names the branch Input selects: "text", "file", "directory", or "" for none.
func (in Input) Mode() string {
	switch {
	case in.Text != nil:
		return "text"
	case in.File != "":
		return "file"
	case in.Directory != "":
		return "directory"
	default:
		return ""
	}
}

// Target returns the path being counted, or "<text>" for text input.
func (in Input) Target() string {
	switch in.Mode() {
	case "text":
		return "<text>"
	case "file":
		return in.File
	default:
		return in.Directory
	}
}

// Text returns an Input counting s.
func Text(s string) Input {
	return Input{Text: &s}
}

// Count dispatches to the string, file, streaming or directory counter and
// then checks the result against opts.MaxTokens. Text is always counted
// exactly with opts.Encoding.
func (e *Engine) Count(ctx context.Context, in Input, opts domainCounting.Options) (domainCounting.Result, error) {
	opts = opts.WithDefaults()

	var result domainCounting.Result
	switch in.Mode() {
	case "text":
		tokens, err := e.CountString(*in.Text, opts.Encoding)
		if err != nil {
			return domainCounting.Result{}, err
		}
		result = domainCounting.ScalarResult(tokens)

	case "file":
		count := e.CountFile
		if opts.Streaming {
			count = e.CountLargeFile
		}
		tokens, err := count(ctx, in.File, opts)
		if err != nil {
			return domainCounting.Result{}, err
		}
		result = domainCounting.ScalarResult(tokens)

	case "directory":
		r, err := e.CountDirectory(ctx, in.Directory, opts)
		if err != nil {
			return domainCounting.Result{}, err
		}
		result = r

	default:
		return domainCounting.Result{}, domainErrors.NewError(domainErrors.CodeConfiguration,
			"nothing to count", domainErrors.ErrNoInput)
	}

	return result.ApplyBudget(opts.MaxTokens), nil
}
