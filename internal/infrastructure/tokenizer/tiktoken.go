// Package tokenizer provides token counting infrastructure using tiktoken.
// It implements the domain tokenizer.Resolver port with BPE ranks bundled
// through the offline loader, so resolving an encoding never hits the network.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"

	domainErrors "github.com/jbctechsolutions/counttokens/internal/domain/errors"
	"github.com/jbctechsolutions/counttokens/internal/domain/tokenizer"
)

// Encodings lists the encoding names the resolver knows about.
var Encodings = []string{
	tiktoken.MODEL_O200K_BASE,
	tiktoken.MODEL_CL100K_BASE,
	tiktoken.MODEL_P50K_BASE,
	tiktoken.MODEL_P50K_EDIT,
	tiktoken.MODEL_R50K_BASE,
}

var loaderOnce sync.Once

// TiktokenResolver resolves encodings by name and caches them.
// It is safe for concurrent use.
type TiktokenResolver struct {
	mu        sync.RWMutex
	encodings map[string]*encoder
}

// Ensure TiktokenResolver implements tokenizer.Resolver.
var _ tokenizer.Resolver = (*TiktokenResolver)(nil)

// NewTiktokenResolver creates a resolver backed by tiktoken-go.
func NewTiktokenResolver() *TiktokenResolver {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	})
	return &TiktokenResolver{
		encodings: make(map[string]*encoder),
	}
}

// Resolve returns the encoder for name. Unknown names fail with ErrEncodingNotFound.
func (r *TiktokenResolver) Resolve(name string) (tokenizer.Encoder, error) {
	r.mu.RLock()
	enc, ok := r.encodings[name]
	r.mu.RUnlock()
	if ok {
		return enc, nil
	}

	if !Known(name) {
		return nil, domainErrors.WithContext(
			domainErrors.NewError(domainErrors.CodeConfiguration,
				fmt.Sprintf("unknown encoding %q", name), domainErrors.ErrEncodingNotFound),
			"encoding", name)
	}

	tk, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, domainErrors.NewError(domainErrors.CodeConfiguration,
			fmt.Sprintf("failed to load encoding %q", name),
			fmt.Errorf("%w: %v", domainErrors.ErrEncodingNotFound, err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.encodings[name]; ok {
		return existing, nil
	}
	enc = &encoder{tk: tk}
	r.encodings[name] = enc
	return enc, nil
}

// Known reports whether name is one of Encodings.
func Known(name string) bool {
	for _, e := range Encodings {
		if e == name {
			return true
		}
	}
	return false
}

// encoder adapts *tiktoken.Tiktoken to tokenizer.Encoder.
type encoder struct {
	tk *tiktoken.Tiktoken
}

// Encode treats special-token text as ordinary text.
func (e *encoder) Encode(text string) []int {
	return e.tk.Encode(text, nil, nil)
}
