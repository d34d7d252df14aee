// Package logging provides structured logging infrastructure for count-tokens.
// It wraps Go's standard log/slog package with context-aware logging, run IDs,
// and counting-specific log attributes.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// contextKey is used for storing logger-related values in context.
type contextKey string

const (
	// CorrelationIDKey is the context key for correlation IDs.
	CorrelationIDKey contextKey = "correlation_id"
	// RunIDKey is the context key for count run IDs.
	RunIDKey contextKey = "run_id"
	// EncodingKey is the context key for the encoding name.
	EncodingKey contextKey = "encoding"
	// PathKey is the context key for the file being counted.
	PathKey contextKey = "path"
)

// Level represents log levels.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format represents log output formats.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer
	AddSource  bool
	TimeFormat string
}

// DefaultConfig returns sensible default logging configuration.
// Results go to stdout, so logs default to stderr at warn.
func DefaultConfig() Config {
	return Config{
		Level:      LevelWarn,
		Format:     FormatText,
		Output:     os.Stderr,
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// Logger wraps slog.Logger with additional functionality for count-tokens.
type Logger struct {
	slogger *slog.Logger
	level   *slog.LevelVar
}

var (
	global     *Logger
	globalOnce sync.Once
)

// Init initializes the global logger with the provided configuration.
func Init(cfg Config) *Logger {
	globalOnce.Do(func() {
		global = New(cfg)
	})
	return global
}

// Default returns the global logger, initializing it with defaults if necessary.
func Default() *Logger {
	return Init(DefaultConfig())
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(Config{Level: LevelError, Output: io.Discard})
}

// New creates a new Logger with the provided configuration.
func New(cfg Config) *Logger {
	level := &slog.LevelVar{}
	level.Set(parseLevel(cfg.Level))

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			return a
		},
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		slogger: slog.New(handler),
		level:   level,
	}
}

// parseLevel converts a Level to slog.Level.
func parseLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel dynamically changes the log level. Derived loggers share the level.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(parseLevel(level))
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slogger: l.slogger.With(args...),
		level:   l.level,
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

// DebugContext logs at debug level with context.
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// InfoContext logs at info level with context.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// WarnContext logs at warn level with context.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// ErrorContext logs at error level with context.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// enrichArgs extracts context values and adds them as log attributes.
func (l *Logger) enrichArgs(ctx context.Context, args []any) []any {
	enriched := make([]any, 0, len(args)+8)

	if v := ctx.Value(CorrelationIDKey); v != nil {
		enriched = append(enriched, "correlation_id", v)
	}
	if v := ctx.Value(RunIDKey); v != nil {
		enriched = append(enriched, "run_id", v)
	}
	if v := ctx.Value(EncodingKey); v != nil {
		enriched = append(enriched, "encoding", v)
	}
	if v := ctx.Value(PathKey); v != nil {
		enriched = append(enriched, "path", v)
	}

	enriched = append(enriched, args...)
	return enriched
}

// Underlying returns the underlying slog.Logger.
func (l *Logger) Underlying() *slog.Logger {
	return l.slogger
}

// --- Context helpers ---

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}

// WithEncoding adds an encoding name to the context.
func WithEncoding(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, EncodingKey, name)
}

// WithPath adds a file path to the context.
func WithPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, PathKey, path)
}

// CorrelationID extracts the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	if v := ctx.Value(CorrelationIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// RunID extracts the run ID from context.
func RunID(ctx context.Context) string {
	if v, ok := ctx.Value(RunIDKey).(string); ok {
		return v
	}
	return ""
}

// --- Counting log helpers ---

// LogCountStart logs the start of a count run.
func LogCountStart(ctx context.Context, logger *Logger, mode, target string) {
	logger.InfoContext(ctx, "count started",
		"mode", mode,
		"target", target,
	)
}

// LogCountComplete logs the completion of a count run.
func LogCountComplete(ctx context.Context, logger *Logger, mode string, totalTokens, files int, duration time.Duration) {
	logger.InfoContext(ctx, "count completed",
		"mode", mode,
		"total_tokens", totalTokens,
		"files", files,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogCountFailed logs a failed count run.
func LogCountFailed(ctx context.Context, logger *Logger, mode string, err error, duration time.Duration) {
	logger.ErrorContext(ctx, "count failed",
		"mode", mode,
		"error", err.Error(),
		"duration_ms", duration.Milliseconds(),
	)
}

// LogFileFailed logs a file that could not be counted in directory mode.
func LogFileFailed(ctx context.Context, logger *Logger, path string, err error) {
	logger.WarnContext(ctx, "file count failed",
		"file", path,
		"error", err.Error(),
	)
}

// LogDecodeFallback logs a switch to the fallback text encoding during streaming.
func LogDecodeFallback(ctx context.Context, logger *Logger, path, fallback string) {
	logger.WarnContext(ctx, "file is not valid UTF-8, retrying with fallback encoding",
		"file", path,
		"fallback", fallback,
	)
}

// LogChunk logs one streamed chunk.
func LogChunk(ctx context.Context, logger *Logger, index, chars, tokens int) {
	logger.DebugContext(ctx, "chunk counted",
		"chunk", index,
		"chars", chars,
		"tokens", tokens,
	)
}
