package storage

import (
	"database/sql"
	"fmt"
)

// Migrate applies all database migrations in order. Applied versions are
// recorded in the migrations table and skipped on later runs.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("could not enable foreign keys: %w", err)
	}

	if err := createMigrationsTable(db); err != nil {
		return err
	}

	migrations := []struct {
		version int
		name    string
		sql     string
	}{
		{1, "create_count_runs_table", createCountRunsTable},
		{2, "create_count_entries_table", createCountEntriesTable},
		{3, "create_history_indices", createHistoryIndices},
	}

	for _, m := range migrations {
		applied, err := isMigrationApplied(db, m.version)
		if err != nil {
			return fmt.Errorf("could not check migration %d: %w", m.version, err)
		}
		if applied {
			continue
		}

		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("could not apply migration %d (%s): %w", m.version, m.name, err)
		}

		if err := recordMigration(db, m.version, m.name); err != nil {
			return fmt.Errorf("could not record migration %d: %w", m.version, err)
		}
	}

	return nil
}

// createMigrationsTable creates the migrations tracking table.
func createMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// isMigrationApplied checks if a migration has been applied.
func isMigrationApplied(db *sql.DB, version int) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// recordMigration records that a migration has been applied.
func recordMigration(db *sql.DB, version int, name string) error {
	_, err := db.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", version, name)
	return err
}

// Migration SQL statements

const createCountRunsTable = `
CREATE TABLE count_runs (
	id TEXT PRIMARY KEY,
	correlation_id TEXT,
	mode TEXT NOT NULL,
	target TEXT NOT NULL,
	encoding TEXT NOT NULL,
	approximation TEXT NOT NULL DEFAULT 'none',
	streaming BOOLEAN NOT NULL DEFAULT 0,
	max_tokens INTEGER,
	status TEXT NOT NULL,
	total_tokens INTEGER DEFAULT 0,
	files INTEGER DEFAULT 0,
	failed_files INTEGER DEFAULT 0,
	error_message TEXT,
	duration_ns INTEGER DEFAULT 0,
	started_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP NOT NULL
);
`

const createCountEntriesTable = `
CREATE TABLE count_entries (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	path TEXT NOT NULL,
	tokens INTEGER DEFAULT 0,
	limit_exceeded BOOLEAN NOT NULL DEFAULT 0,
	error TEXT,
	PRIMARY KEY (run_id, position),
	FOREIGN KEY (run_id) REFERENCES count_runs(id) ON DELETE CASCADE
);
`

const createHistoryIndices = `
CREATE INDEX idx_count_runs_started_at ON count_runs(started_at);
CREATE INDEX idx_count_runs_mode ON count_runs(mode);
`
