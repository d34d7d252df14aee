package testutil

import (
	"fmt"
	"strings"
	"sync"

	domainErrors "github.com/jbctechsolutions/counttokens/internal/domain/errors"
	"github.com/jbctechsolutions/counttokens/internal/domain/tokenizer"
)

// WordEncoder is a deterministic stand-in for a BPE encoder: one token per
// whitespace-separated word plus one per newline. It records every text it
// encodes so tests can inspect chunk boundaries.
type WordEncoder struct {
	mu     sync.Mutex
	inputs []string
}

// Encode implements tokenizer.Encoder.
func (e *WordEncoder) Encode(text string) []int {
	e.mu.Lock()
	e.inputs = append(e.inputs, text)
	e.mu.Unlock()

	n := len(strings.Fields(text)) + strings.Count(text, "\n")
	return make([]int, n)
}

// Inputs returns a copy of every text passed to Encode.
func (e *WordEncoder) Inputs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.inputs...)
}

// FakeResolver resolves a fixed set of names to one shared WordEncoder.
type FakeResolver struct {
	Encoder *WordEncoder
	Names   map[string]bool

	mu    sync.Mutex
	calls int
}

// Ensure FakeResolver implements tokenizer.Resolver.
var _ tokenizer.Resolver = (*FakeResolver)(nil)

// NewFakeResolver knows "cl100k_base" and any extra names given.
func NewFakeResolver(names ...string) *FakeResolver {
	known := map[string]bool{tokenizer.DefaultEncoding: true}
	for _, n := range names {
		known[n] = true
	}
	return &FakeResolver{Encoder: &WordEncoder{}, Names: known}
}

// Resolve implements tokenizer.Resolver.
func (r *FakeResolver) Resolve(name string) (tokenizer.Encoder, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	if !r.Names[name] {
		return nil, domainErrors.NewError(domainErrors.CodeConfiguration,
			fmt.Sprintf("unknown encoding %q", name), domainErrors.ErrEncodingNotFound)
	}
	return r.Encoder, nil
}

// Calls returns how many times Resolve ran.
func (r *FakeResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
