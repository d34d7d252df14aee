package counting

import (
	"strings"
	"unicode/utf8"

	domainCounting "github.com/jbctechsolutions/counttokens/internal/domain/counting"
	domainErrors "github.com/jbctechsolutions/counttokens/internal/domain/errors"
)

// ApproximateWords estimates tokens as the number of whitespace-separated
// words times tokensPerWord, truncated toward zero.
func ApproximateWords(text string, tokensPerWord float64) int {
	words := len(strings.Fields(text))
	return int(float64(words) * tokensPerWord)
}

// ApproximateCharacters estimates tokens as the number of characters divided
// by charactersPerToken, truncated toward zero. A zero ratio is an arithmetic error.
func ApproximateCharacters(text string, charactersPerToken float64) (int, error) {
	if charactersPerToken == 0 {
		return 0, domainErrors.NewError(domainErrors.CodeArithmetic,
			"characters per token must not be zero", domainErrors.ErrInvalidRatio)
	}
	chars := utf8.RuneCountInString(text)
	return int(float64(chars) / charactersPerToken), nil
}

// approximate dispatches to the estimator selected by method.
// Callers must check method.Enabled() first.
func approximate(text string, method domainCounting.Approximation, ratios domainCounting.Ratios) (int, error) {
	if method == domainCounting.ApproxWords {
		return ApproximateWords(text, ratios.TokensPerWord), nil
	}
	return ApproximateCharacters(text, ratios.CharactersPerToken)
}
