// Package application provides application-level services and dependency injection.
package application

import (
	"context"
	"fmt"
	"io"
	"os"

	appCounting "github.com/jbctechsolutions/counttokens/internal/application/counting"
	"github.com/jbctechsolutions/counttokens/internal/application/observability"
	"github.com/jbctechsolutions/counttokens/internal/application/ports"
	domainCounting "github.com/jbctechsolutions/counttokens/internal/domain/counting"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/config"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/logging"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/storage"
	infraTokenizer "github.com/jbctechsolutions/counttokens/internal/infrastructure/tokenizer"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/tracing"
)

// Container holds all application dependencies and provides a central
// point for dependency injection. It manages the lifecycle of services
// and ensures proper initialization order.
type Container struct {
	// Configuration
	config  *config.Config
	verbose bool // Override log level to debug when true

	// LogOutput overrides the log destination; nil means stderr.
	logOutput io.Writer

	// History database, nil when history is disabled
	dbConn      *storage.Connection
	historyRepo ports.HistoryStoragePort

	// Counting
	resolver *infraTokenizer.TiktokenResolver
	engine   *appCounting.Engine

	// Observability
	logger               *logging.Logger
	tracer               *tracing.Tracer
	observabilityService *observability.Service
}

// Option customizes a Container.
type Option func(*Container)

// WithLogOutput sends logs to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(c *Container) {
		c.logOutput = w
	}
}

// NewContainer creates a new dependency injection container with all services
// initialized based on the provided configuration.
func NewContainer(cfg *config.Config, verbose bool, opts ...Option) (*Container, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	c := &Container{
		config:  cfg,
		verbose: verbose,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.initObservability(); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	if cfg.History.Enabled {
		if err := c.initHistory(); err != nil {
			_ = c.Close() // Clean up on error
			return nil, fmt.Errorf("failed to initialize history: %w", err)
		}
	}

	c.initServices()

	return c, nil
}

// initObservability initializes logging and tracing.
func (c *Container) initObservability() error {
	ctx := context.Background()

	// Results own stdout.
	output := io.Writer(os.Stderr)
	if c.logOutput != nil {
		output = c.logOutput
	}

	logLevel := logging.Level(c.config.Logging.Level)
	if c.verbose {
		logLevel = logging.LevelDebug
	}

	logFormat := logging.FormatText
	if c.config.Logging.Format == "json" {
		logFormat = logging.FormatJSON
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logLevel
	logCfg.Format = logFormat
	logCfg.Output = output
	c.logger = logging.New(logCfg)

	// Initialize tracer if enabled
	if c.config.Observability.Tracing.Enabled {
		tracingCfg := tracing.Config{
			Enabled:      true,
			ExporterType: tracing.ExporterType(c.config.Observability.Tracing.ExporterType),
			OTLPEndpoint: c.config.Observability.Tracing.OTLPEndpoint,
			ServiceName:  c.config.Observability.Tracing.ServiceName,
			Environment:  "production",
			SampleRate:   c.config.Observability.Tracing.SampleRate,
			Output:       output,
		}
		tracer, err := tracing.New(ctx, tracingCfg)
		if err != nil {
			return fmt.Errorf("failed to create tracer: %w", err)
		}
		c.tracer = tracer
	} else {
		// Create no-op tracer
		c.tracer = tracing.Default()
	}

	return nil
}

// initHistory opens the SQLite history database.
func (c *Container) initHistory() error {
	path, err := config.ExpandHome(c.config.History.Path)
	if err != nil {
		return err
	}

	conn, err := storage.NewConnection(path)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := conn.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	c.dbConn = conn

	db, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}

	c.historyRepo = storage.NewHistoryRepository(db)
	return nil
}

// initServices wires the counting engine and the run observer.
func (c *Container) initServices() {
	c.resolver = infraTokenizer.NewTiktokenResolver()
	c.engine = appCounting.NewEngine(appCounting.EngineConfig{
		Resolver: c.resolver,
		Logger:   c.logger,
		Tracer:   c.tracer,
	})

	c.observabilityService = observability.NewService(observability.ServiceConfig{
		Logger:  c.logger,
		Tracer:  c.tracer,
		History: c.historyRepo,
	})
}

// Count runs one observed count: it opens a run, counts, and records the
// outcome. A failure to write history is logged but does not fail the count.
func (c *Container) Count(ctx context.Context, in appCounting.Input, opts domainCounting.Options) (domainCounting.Result, error) {
	opts = opts.WithDefaults()

	ctx, run := c.observabilityService.StartRun(ctx, in.Mode(), in.Target(), opts)
	result, err := c.engine.Count(ctx, in, opts)
	if err != nil {
		_ = run.Fail(ctx, err)
		return domainCounting.Result{}, err
	}
	_ = run.Complete(ctx, result)
	return result, nil
}

// Close releases all resources held by the container.
func (c *Container) Close() error {
	ctx := context.Background()

	if c.tracer != nil {
		_ = c.tracer.Shutdown(ctx)
	}

	if c.dbConn != nil {
		return c.dbConn.Close()
	}
	return nil
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Engine returns the counting engine.
func (c *Container) Engine() *appCounting.Engine {
	return c.engine
}

// HistoryRepository returns the history store, or nil when history is disabled.
func (c *Container) HistoryRepository() ports.HistoryStoragePort {
	return c.historyRepo
}

// Logger returns the application logger.
func (c *Container) Logger() *logging.Logger {
	return c.logger
}

// Tracer returns the application tracer.
func (c *Container) Tracer() *tracing.Tracer {
	return c.tracer
}

// ObservabilityService returns the run observer service.
func (c *Container) ObservabilityService() *observability.Service {
	return c.observabilityService
}
