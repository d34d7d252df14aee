// Package ports defines the application layer port interfaces following hexagonal architecture.
// Ports are abstractions that allow the application core to interact with external systems
// (adapters) without knowing their implementation details.
package ports

import (
	"context"

	"github.com/jbctechsolutions/counttokens/internal/domain/history"
)

// HistoryStoragePort defines the interface for storing and retrieving count runs.
type HistoryStoragePort interface {
	// SaveRun persists a run and its entries in one transaction.
	SaveRun(ctx context.Context, run *history.RunRecord, entries []history.EntryRecord) error

	// ListRuns retrieves runs matching the filter, most recent first.
	ListRuns(ctx context.Context, filter history.Filter) ([]history.RunRecord, error)

	// GetRun retrieves a single run by ID.
	// Returns an error wrapping errors.ErrRunNotFound if no such run exists.
	GetRun(ctx context.Context, id string) (*history.RunRecord, error)

	// GetEntries retrieves the entries of a run in enumeration order.
	GetEntries(ctx context.Context, runID string) ([]history.EntryRecord, error)
}
