package output

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	domainCounting "github.com/jbctechsolutions/counttokens/internal/domain/counting"
)

// View describes how a count result is presented.
type View struct {
	// Quiet prints only the count, or the total for a directory.
	Quiet bool
	// Path labels the single-file text block. Leave it empty for text and
	// directory input.
	Path          string
	Encoding      string
	Approximation domainCounting.Approximation
	Ratios        domainCounting.Ratios
}

// Result writes r according to the formatter's format and v.
func (f *Formatter) Result(r domainCounting.Result, v View) error {
	if v.Quiet {
		return f.Println("%s", Quiet(r))
	}

	switch f.Format() {
	case FormatJSON:
		return f.JSON(r)
	case FormatCSV:
		out, err := CSV(r)
		if err != nil {
			return err
		}
		return f.Println("%s", out)
	default:
		if r.Kind == domainCounting.ResultScalar && v.Path != "" {
			return f.Println("%s", FileBlock(r.Scalar, v))
		}
		return f.Println("%s", Text(r))
	}
}

// Quiet renders the bare count, or the sum over counted files for a directory.
func Quiet(r domainCounting.Result) string {
	if r.Kind == domainCounting.ResultScalar {
		return r.Scalar.String()
	}
	tokens, _ := r.Total()
	return strconv.Itoa(tokens)
}

// Text renders a scalar as its count and a directory as one line per file
// followed by a blank line and the total over counted files.
func Text(r domainCounting.Result) string {
	if r.Kind == domainCounting.ResultScalar {
		return r.Scalar.String()
	}

	var b strings.Builder
	for _, fe := range r.Entries() {
		if fe.Entry.OK() {
			fmt.Fprintf(&b, "%s: %s\n", fe.Path, tokensLabel(fe.Entry.Outcome))
		} else {
			fmt.Fprintf(&b, "%s: %s\n", fe.Path, fe.Entry.Message)
		}
	}
	tokens, files := r.Total()
	fmt.Fprintf(&b, "\nTotal: %d tokens across %d files", tokens, files)
	return b.String()
}

func tokensLabel(o domainCounting.Outcome) string {
	if o.LimitExceeded {
		return fmt.Sprintf("%d tokens (exceeds limit of %d)", o.Tokens, o.MaxTokens)
	}
	return fmt.Sprintf("%d tokens", o.Tokens)
}

// FileBlock renders the labeled single-file block.
func FileBlock(o domainCounting.Outcome, v View) string {
	lines := []string{
		"File: " + v.Path,
		"Encoding: " + v.Encoding,
	}
	switch v.Approximation {
	case domainCounting.ApproxWords:
		lines = append(lines, fmt.Sprintf("Approximation method: Words (tokens per word: %s)",
			formatRatio(v.Ratios.TokensPerWord)))
	case domainCounting.ApproxCharacters:
		lines = append(lines, fmt.Sprintf("Approximation method: Characters (characters per token: %s)",
			formatRatio(v.Ratios.CharactersPerToken)))
	}
	lines = append(lines, "Number of tokens: "+o.String())
	return strings.Join(lines, "\n")
}

// formatRatio prints the shortest decimal form, keeping ".0" on whole numbers.
func formatRatio(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// CSV renders a directory as a file,tokens table and a scalar as a single
// tokens column. Failed files carry their error message in the tokens column.
func CSV(r domainCounting.Result) (string, error) {
	if r.Kind == domainCounting.ResultScalar {
		return "tokens\n" + r.Scalar.String(), nil
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write([]string{"file", "tokens"}); err != nil {
		return "", err
	}
	for _, fe := range r.Entries() {
		cell := fe.Entry.Message
		if fe.Entry.OK() {
			cell = fe.Entry.Outcome.String()
		}
		if err := w.Write([]string{fe.Path, cell}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
