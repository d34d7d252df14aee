// Package counting implements the token counting engine: exact and
// approximate counts for strings and files, line-aligned streaming for large
// files, and directory aggregation with per-file error isolation.
package counting

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"

	domainCounting "github.com/jbctechsolutions/counttokens/internal/domain/counting"
	domainErrors "github.com/jbctechsolutions/counttokens/internal/domain/errors"
	"github.com/jbctechsolutions/counttokens/internal/domain/tokenizer"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/logging"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/tracing"
)

// Engine counts tokens in strings, files and directories.
// It holds no per-call state and is safe for concurrent use when its
// Resolver is.
type Engine struct {
	resolver tokenizer.Resolver
	logger   *logging.Logger
	tracer   *tracing.Tracer
}

// EngineConfig holds the collaborators of an Engine.
type EngineConfig struct {
	Resolver tokenizer.Resolver
	Logger   *logging.Logger
	Tracer   *tracing.Tracer
}

// NewEngine creates a new Engine. Resolver is required.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracing.Default()
	}

	return &Engine{
		resolver: cfg.Resolver,
		logger:   logger.With("component", "counting"),
		tracer:   tracer,
	}
}

// CountString returns the number of tokens encoding produces for text.
// An empty string counts as zero; an unknown encoding fails even then.
func (e *Engine) CountString(text, encoding string) (int, error) {
	if encoding == "" {
		encoding = tokenizer.DefaultEncoding
	}
	enc, err := e.resolver.Resolve(encoding)
	if err != nil {
		return 0, err
	}
	return tokenizer.Count(enc, text), nil
}

// CountFile reads the whole file and counts it exactly or, when
// opts.Approximation is enabled, estimates it without the tokenizer.
// Line endings are normalized to "\n" before counting.
func (e *Engine) CountFile(ctx context.Context, path string, opts domainCounting.Options) (int, error) {
	opts = opts.WithDefaults()

	ctx, span := e.tracer.StartFileSpan(ctx, path, false)
	tokens, err := e.countFile(path, opts)
	if err != nil {
		span.EndWithError(err)
		return 0, err
	}
	span.SetTokens(tokens)
	span.End()

	e.logger.DebugContext(logging.WithPath(ctx, path), "file counted", "tokens", tokens)
	return tokens, nil
}

func (e *Engine) countFile(path string, opts domainCounting.Options) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, domainErrors.IOError(path, err)
	}
	if !utf8.Valid(data) {
		return 0, domainErrors.WithContext(
			domainErrors.NewError(domainErrors.CodeDecode, "file is not valid UTF-8", domainErrors.ErrDecode),
			"path", path)
	}
	text := normalizeNewlines(string(data))

	if opts.Approximation.Enabled() {
		return approximate(text, opts.Approximation, opts.Ratios)
	}
	return e.CountString(text, opts.Encoding)
}

// newlines translates "\r\n" and lone "\r" to "\n". The pair is listed
// first so it wins at a shared position.
var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	return newlines.Replace(s)
}
