package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jbctechsolutions/counttokens/internal/application/ports"
	domainErrors "github.com/jbctechsolutions/counttokens/internal/domain/errors"
	"github.com/jbctechsolutions/counttokens/internal/domain/history"
)

// HistoryRepository implements ports.HistoryStoragePort using SQLite.
type HistoryRepository struct {
	db *sql.DB
}

// Ensure HistoryRepository implements ports.HistoryStoragePort.
var _ ports.HistoryStoragePort = (*HistoryRepository)(nil)

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// SaveRun persists a run and its entries in one transaction.
func (r *HistoryRepository) SaveRun(ctx context.Context, run *history.RunRecord, entries []history.EntryRecord) error {
	if run == nil {
		return fmt.Errorf("run record is nil")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxTokens sql.NullInt64
	if run.MaxTokens != nil {
		maxTokens = sql.NullInt64{Int64: int64(*run.MaxTokens), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO count_runs (
			id, correlation_id, mode, target, encoding, approximation, streaming,
			max_tokens, status, total_tokens, files, failed_files, error_message,
			duration_ns, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.CorrelationID,
		run.Mode,
		run.Target,
		run.Encoding,
		run.Approximation,
		run.Streaming,
		maxTokens,
		run.Status,
		run.TotalTokens,
		run.Files,
		run.FailedFiles,
		run.ErrorMessage,
		run.Duration.Nanoseconds(),
		run.StartedAt.UTC().Format(time.RFC3339),
		run.CompletedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}

	if len(entries) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO count_entries (run_id, position, path, tokens, limit_exceeded, error)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare entry insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, run.ID, e.Position, e.Path, e.Tokens, e.LimitExceeded, e.Error); err != nil {
				return fmt.Errorf("failed to save entry %s: %w", e.Path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run record: %w", err)
	}
	return nil
}

const selectRunColumns = `
	SELECT id, correlation_id, mode, target, encoding, approximation, streaming,
		max_tokens, status, total_tokens, files, failed_files, error_message,
		duration_ns, started_at, completed_at
	FROM count_runs
`

// ListRuns retrieves runs matching the filter, most recent first.
func (r *HistoryRepository) ListRuns(ctx context.Context, filter history.Filter) ([]history.RunRecord, error) {
	query := selectRunColumns + " WHERE 1=1"
	args := make([]any, 0)

	if filter.Mode != "" {
		query += " AND mode = ?"
		args = append(args, filter.Mode)
	}

	if !filter.Since.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, filter.Since.UTC().Format(time.RFC3339))
	}

	query += " ORDER BY started_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []history.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run records: %w", err)
	}

	return runs, nil
}

// GetRun retrieves a single run by ID.
func (r *HistoryRepository) GetRun(ctx context.Context, id string) (*history.RunRecord, error) {
	row := r.db.QueryRowContext(ctx, selectRunColumns+" WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainErrors.WithContext(
			domainErrors.NewError(domainErrors.CodeNotFound, "run not found", domainErrors.ErrRunNotFound),
			"run_id", id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetEntries retrieves the entries of a run in enumeration order.
func (r *HistoryRepository) GetEntries(ctx context.Context, runID string) ([]history.EntryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, position, path, tokens, limit_exceeded, error
		FROM count_entries
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []history.EntryRecord
	for rows.Next() {
		var e history.EntryRecord
		var errMsg sql.NullString
		if err := rows.Scan(&e.RunID, &e.Position, &e.Path, &e.Tokens, &e.LimitExceeded, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan entry record: %w", err)
		}
		e.Error = errMsg.String
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry records: %w", err)
	}

	return entries, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*history.RunRecord, error) {
	var run history.RunRecord
	var (
		correlationID, errMsg  sql.NullString
		maxTokens              sql.NullInt64
		durationNs             int64
		startedAt, completedAt string
	)

	err := s.Scan(
		&run.ID,
		&correlationID,
		&run.Mode,
		&run.Target,
		&run.Encoding,
		&run.Approximation,
		&run.Streaming,
		&maxTokens,
		&run.Status,
		&run.TotalTokens,
		&run.Files,
		&run.FailedFiles,
		&errMsg,
		&durationNs,
		&startedAt,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run record: %w", err)
	}

	run.CorrelationID = correlationID.String
	run.ErrorMessage = errMsg.String
	if maxTokens.Valid {
		n := int(maxTokens.Int64)
		run.MaxTokens = &n
	}
	run.Duration = time.Duration(durationNs)
	run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	run.CompletedAt, _ = time.Parse(time.RFC3339, completedAt)

	return &run, nil
}
