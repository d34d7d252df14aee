// Package config provides configuration structs and utilities for count-tokens.
package config

import (
	"errors"
	"fmt"
	"path/filepath"

	domainCounting "github.com/jbctechsolutions/counttokens/internal/domain/counting"
	"github.com/jbctechsolutions/counttokens/internal/domain/tokenizer"
)

// Config represents the root configuration for count-tokens.
type Config struct {
	Counting      CountingConfig      `yaml:"counting"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
	History       HistoryConfig       `yaml:"history"`
}

// CountingConfig holds the defaults applied to every count.
// Command-line flags override these values.
type CountingConfig struct {
	Encoding           string   `yaml:"encoding"`
	TokensPerWord      float64  `yaml:"tokens_per_word"`
	CharactersPerToken float64  `yaml:"characters_per_token"`
	ChunkSize          int      `yaml:"chunk_size"` // Streaming chunk size in characters
	Patterns           []string `yaml:"patterns"`   // Directory glob patterns
	Recursive          bool     `yaml:"recursive"`  // Descend into subdirectories
	Workers            int      `yaml:"workers"`    // Concurrent files in directory mode
}

// LoggingConfig holds configuration for application logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ObservabilityConfig holds configuration for observability features.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`       // Whether tracing is enabled
	ExporterType string  `yaml:"exporter_type"` // none, stdout, otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint"` // OTLP collector endpoint
	SampleRate   float64 `yaml:"sample_rate"`   // Sampling rate (0.0 to 1.0)
	ServiceName  string  `yaml:"service_name"`  // Service name for traces
}

// HistoryConfig holds configuration for the run history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // SQLite file; ~ expands to the home directory
}

// Default configuration values.
const (
	// DefaultPattern is the directory pattern used by the command line.
	// The library default covers more file types.
	DefaultPattern = "*.txt"

	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"

	// Observability defaults
	DefaultTracingEnabled      = false
	DefaultTracingExporterType = "none"
	DefaultTracingSampleRate   = 1.0
	DefaultTracingServiceName  = "count-tokens"

	// History defaults
	DefaultHistoryEnabled = false
	DefaultHistoryPath    = "~/.count-tokens/history.db"
)

// Valid log levels.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Valid log formats.
var validLogFormats = map[string]bool{
	"json": true,
	"text": true,
}

// Valid tracing exporter types.
var validTracingExporterTypes = map[string]bool{
	"none":   true,
	"stdout": true,
	"otlp":   true,
}

// NewDefaultConfig creates a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		Counting: CountingConfig{
			Encoding:           tokenizer.DefaultEncoding,
			TokensPerWord:      domainCounting.DefaultTokensPerWord,
			CharactersPerToken: domainCounting.DefaultCharactersPerToken,
			ChunkSize:          domainCounting.DefaultChunkSize,
			Patterns:           []string{DefaultPattern},
			Recursive:          false,
			Workers:            1,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:      DefaultTracingEnabled,
				ExporterType: DefaultTracingExporterType,
				SampleRate:   DefaultTracingSampleRate,
				ServiceName:  DefaultTracingServiceName,
			},
		},
		History: HistoryConfig{
			Enabled: DefaultHistoryEnabled,
			Path:    DefaultHistoryPath,
		},
	}
}

// Options converts the counting section to engine options.
func (c *CountingConfig) Options() domainCounting.Options {
	return domainCounting.Options{
		Encoding: c.Encoding,
		Ratios: domainCounting.Ratios{
			TokensPerWord:      c.TokensPerWord,
			CharactersPerToken: c.CharactersPerToken,
		},
		ChunkSize: c.ChunkSize,
		Patterns:  append([]string(nil), c.Patterns...),
		Recursive: c.Recursive,
		Workers:   c.Workers,
	}.WithDefaults()
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	var errs []error

	// Validate counting config
	if err := c.Counting.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("counting: %w", err))
	}

	// Validate logging config
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	// Validate observability config
	if err := c.Observability.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("observability: %w", err))
	}

	// Validate history config
	if err := c.History.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("history: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the CountingConfig is valid. The approximation ratios
// are deliberately unchecked apart from a zero characters-per-token divisor.
func (c *CountingConfig) Validate() error {
	var errs []error

	if c.Encoding == "" {
		errs = append(errs, errors.New("encoding is required"))
	}

	if c.CharactersPerToken == 0 {
		errs = append(errs, errors.New("characters_per_token must not be zero"))
	}

	if c.ChunkSize <= 0 {
		errs = append(errs, errors.New("chunk_size must be positive"))
	}

	for _, p := range c.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			errs = append(errs, fmt.Errorf("invalid pattern %q: %w", p, err))
		}
	}

	if c.Workers < 1 {
		errs = append(errs, errors.New("workers must be at least 1"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the LoggingConfig is valid.
func (l *LoggingConfig) Validate() error {
	var errs []error

	if l.Level != "" && !validLogLevels[l.Level] {
		errs = append(errs, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", l.Level))
	}

	if l.Format != "" && !validLogFormats[l.Format] {
		errs = append(errs, fmt.Errorf("invalid log format %q: must be one of json, text", l.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the ObservabilityConfig is valid.
func (o *ObservabilityConfig) Validate() error {
	if err := o.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}

// Validate checks if the TracingConfig is valid.
func (t *TracingConfig) Validate() error {
	var errs []error

	if t.Enabled {
		if t.ExporterType != "" && !validTracingExporterTypes[t.ExporterType] {
			errs = append(errs, fmt.Errorf("invalid exporter_type %q: must be one of none, stdout, otlp", t.ExporterType))
		}
		if t.ExporterType == "otlp" && t.OTLPEndpoint == "" {
			errs = append(errs, errors.New("otlp_endpoint is required when exporter_type is 'otlp'"))
		}
		if t.SampleRate < 0 || t.SampleRate > 1 {
			errs = append(errs, errors.New("sample_rate must be between 0.0 and 1.0"))
		}
		if t.ServiceName == "" {
			errs = append(errs, errors.New("service_name is required when tracing is enabled"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the HistoryConfig is valid.
func (h *HistoryConfig) Validate() error {
	if h.Enabled && h.Path == "" {
		return errors.New("path is required when history is enabled")
	}
	return nil
}
