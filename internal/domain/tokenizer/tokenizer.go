// Package tokenizer defines the port through which counting reaches a
// byte-pair-encoding tokenizer. Implementations live in infrastructure.
package tokenizer

// DefaultEncoding is used when no encoding name is given.
const DefaultEncoding = "cl100k_base"

// Encoder turns text into token IDs under one encoding.
type Encoder interface {
	Encode(text string) []int
}

// Resolver looks up an Encoder by encoding name. Unknown names must return an
// error wrapping errors.ErrEncodingNotFound; they are never substituted.
type Resolver interface {
	Resolve(name string) (Encoder, error)
}

// Count returns the number of tokens enc produces for text.
func Count(enc Encoder, text string) int {
	if text == "" {
		return 0
	}
	return len(enc.Encode(text))
}
