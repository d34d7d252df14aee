// Package observability ties a count run together: it assigns run and
// correlation IDs, opens the run span, logs start and completion, and records
// the run to history when storage is configured.
package observability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jbctechsolutions/counttokens/internal/application/ports"
	domainCounting "github.com/jbctechsolutions/counttokens/internal/domain/counting"
	"github.com/jbctechsolutions/counttokens/internal/domain/history"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/logging"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/tracing"
)

// Service provides observability features for count runs.
type Service struct {
	logger  *logging.Logger
	tracer  *tracing.Tracer
	history ports.HistoryStoragePort
}

// ServiceConfig holds configuration for the observability service.
type ServiceConfig struct {
	Logger  *logging.Logger
	Tracer  *tracing.Tracer
	History ports.HistoryStoragePort
}

// NewService creates a new observability service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracing.Default()
	}

	return &Service{
		logger:  logger,
		tracer:  tracer,
		history: cfg.History,
	}
}

// RunObserver provides observability for a single count run.
type RunObserver struct {
	service       *Service
	runID         string
	correlationID string
	mode          string
	target        string
	opts          domainCounting.Options
	startTime     time.Time
	span          *tracing.RunSpan
}

// StartRun begins observing a count run. The returned context carries the
// run ID, correlation ID, encoding and run span.
func (s *Service) StartRun(ctx context.Context, mode, target string, opts domainCounting.Options) (context.Context, *RunObserver) {
	runID := uuid.New().String()
	correlationID := logging.CorrelationID(ctx)
	if correlationID == "" {
		correlationID = uuid.New().String()
		ctx = logging.WithCorrelationID(ctx, correlationID)
	}
	ctx = logging.WithRunID(ctx, runID)
	if !opts.Approximation.Enabled() {
		ctx = logging.WithEncoding(ctx, opts.Encoding)
	}

	logging.LogCountStart(ctx, s.logger, mode, target)

	ctx, span := s.tracer.StartRunSpan(ctx, runID, mode, target)
	span.SetOptions(opts.Encoding, opts.Approximation.String(), opts.Streaming)

	return ctx, &RunObserver{
		service:       s,
		runID:         runID,
		correlationID: correlationID,
		mode:          mode,
		target:        target,
		opts:          opts,
		startTime:     time.Now(),
		span:          span,
	}
}

// Complete ends the run with a result. A history write failure is logged and returned.
func (ro *RunObserver) Complete(ctx context.Context, result domainCounting.Result) error {
	duration := time.Since(ro.startTime)
	tokens, files := result.Total()
	failed := result.Failures()

	logging.LogCountComplete(ctx, ro.service.logger, ro.mode, tokens, files, duration)

	ro.span.SetTotals(tokens, files, failed)
	ro.span.End()

	if ro.service.history == nil {
		return nil
	}

	run := ro.record(history.StatusCompleted, duration)
	run.TotalTokens = tokens
	run.Files = files
	run.FailedFiles = failed
	return ro.save(ctx, run, history.EntriesFromResult(ro.runID, ro.target, result))
}

// Fail ends the run with an error.
func (ro *RunObserver) Fail(ctx context.Context, err error) error {
	duration := time.Since(ro.startTime)

	logging.LogCountFailed(ctx, ro.service.logger, ro.mode, err, duration)
	ro.span.EndWithError(err)

	if ro.service.history == nil {
		return nil
	}

	run := ro.record(history.StatusFailed, duration)
	run.ErrorMessage = err.Error()
	return ro.save(ctx, run, nil)
}

func (ro *RunObserver) record(status string, duration time.Duration) *history.RunRecord {
	return &history.RunRecord{
		ID:            ro.runID,
		CorrelationID: ro.correlationID,
		Mode:          ro.mode,
		Target:        ro.target,
		Encoding:      ro.opts.Encoding,
		Approximation: ro.opts.Approximation.String(),
		Streaming:     ro.opts.Streaming,
		MaxTokens:     ro.opts.MaxTokens,
		Status:        status,
		Duration:      duration,
		StartedAt:     ro.startTime,
		CompletedAt:   ro.startTime.Add(duration),
	}
}

func (ro *RunObserver) save(ctx context.Context, run *history.RunRecord, entries []history.EntryRecord) error {
	if err := ro.service.history.SaveRun(ctx, run, entries); err != nil {
		ro.service.logger.Error("failed to save run record",
			"error", err,
			"run_id", ro.runID,
		)
		return err
	}
	return nil
}

// RunID returns the ID of the observed run.
func (ro *RunObserver) RunID() string {
	return ro.runID
}

// CorrelationID returns the correlation ID of the observed run.
func (ro *RunObserver) CorrelationID() string {
	return ro.correlationID
}
