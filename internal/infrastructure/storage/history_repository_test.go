package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	domainErrors "github.com/jbctechsolutions/counttokens/internal/domain/errors"
	"github.com/jbctechsolutions/counttokens/internal/domain/history"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := NewConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	if err := conn.Open(); err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	db, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get database handle: %v", err)
	}
	return db
}

func newRun(id, mode string, started time.Time) *history.RunRecord {
	return &history.RunRecord{
		ID:            id,
		CorrelationID: "corr-" + id,
		Mode:          mode,
		Target:        "docs",
		Encoding:      "cl100k_base",
		Approximation: "none",
		Status:        history.StatusCompleted,
		TotalTokens:   42,
		Files:         2,
		FailedFiles:   1,
		Duration:      1500 * time.Millisecond,
		StartedAt:     started,
		CompletedAt:   started.Add(1500 * time.Millisecond),
	}
}

func TestHistoryRepository_SaveAndGetRun(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	started := time.Now().Truncate(time.Second)
	run := newRun("run-1", "directory", started)
	limit := 100
	run.MaxTokens = &limit
	run.Streaming = true

	entries := []history.EntryRecord{
		{Position: 0, Path: "docs/b.txt", Tokens: 40, LimitExceeded: false},
		{Position: 1, Path: "docs/a.txt", Error: "Error: boom"},
		{Position: 2, Path: "docs/c.txt", Tokens: 2},
	}

	if err := repo.SaveRun(ctx, run, entries); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := repo.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Mode != "directory" || got.TotalTokens != 42 || got.FailedFiles != 1 || !got.Streaming {
		t.Errorf("unexpected run %+v", got)
	}
	if got.MaxTokens == nil || *got.MaxTokens != 100 {
		t.Errorf("expected max tokens 100, got %v", got.MaxTokens)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("expected duration 1.5s, got %v", got.Duration)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("expected started %v, got %v", started, got.StartedAt)
	}

	gotEntries, err := repo.GetEntries(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetEntries: %v", err)
	}
	if len(gotEntries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(gotEntries))
	}
	if gotEntries[0].Path != "docs/b.txt" || gotEntries[1].Error != "Error: boom" || gotEntries[2].Tokens != 2 {
		t.Errorf("unexpected entries %+v", gotEntries)
	}
	for _, e := range gotEntries {
		if e.RunID != "run-1" {
			t.Errorf("expected run ID run-1, got %q", e.RunID)
		}
	}
}

func TestHistoryRepository_GetRunNotFound(t *testing.T) {
	repo := NewHistoryRepository(setupTestDB(t))

	_, err := repo.GetRun(context.Background(), "missing")
	if !errors.Is(err, domainErrors.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if domainErrors.CodeOf(err) != domainErrors.CodeNotFound {
		t.Errorf("expected NOT_FOUND code, got %s", domainErrors.CodeOf(err))
	}
}

func TestHistoryRepository_ListRuns(t *testing.T) {
	repo := NewHistoryRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	runs := []*history.RunRecord{
		newRun("run-1", "file", base),
		newRun("run-2", "directory", base.Add(time.Minute)),
		newRun("run-3", "file", base.Add(2*time.Minute)),
	}
	for _, run := range runs {
		if err := repo.SaveRun(ctx, run, nil); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter history.Filter
		want   []string
	}{
		{"all, newest first", history.Filter{}, []string{"run-3", "run-2", "run-1"}},
		{"by mode", history.Filter{Mode: "file"}, []string{"run-3", "run-1"}},
		{"limit", history.Filter{Limit: 1}, []string{"run-3"}},
		{"since", history.Filter{Since: base.Add(time.Minute)}, []string{"run-3", "run-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListRuns(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListRuns: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d runs, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("run %d: got %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestHistoryRepository_SaveRunDuplicateRollsBack(t *testing.T) {
	repo := NewHistoryRepository(setupTestDB(t))
	ctx := context.Background()

	run := newRun("run-1", "file", time.Now())
	if err := repo.SaveRun(ctx, run, []history.EntryRecord{{Path: "a.txt", Tokens: 1}}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	// Duplicate entry positions fail the transaction.
	dup := newRun("run-2", "directory", time.Now())
	err := repo.SaveRun(ctx, dup, []history.EntryRecord{{Position: 0, Path: "a"}, {Position: 0, Path: "b"}})
	if err == nil {
		t.Fatal("expected error for duplicate entry position")
	}

	if _, err := repo.GetRun(ctx, "run-2"); !errors.Is(err, domainErrors.ErrRunNotFound) {
		t.Errorf("expected rolled back run to be absent, got %v", err)
	}
}

func TestHistoryRepository_SaveRunNil(t *testing.T) {
	repo := NewHistoryRepository(setupTestDB(t))
	if err := repo.SaveRun(context.Background(), nil, nil); err == nil {
		t.Error("expected error for nil run")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 recorded migrations, got %d", count)
	}
}

func TestConnection_Lifecycle(t *testing.T) {
	conn, err := NewConnection(t.TempDir() + "/nested/history.db")
	if err != nil {
		t.Fatalf("NewConnection: %v", err)
	}

	if _, err := conn.DB(); err == nil {
		t.Error("expected error before Open")
	}
	if err := conn.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := conn.Open(); err == nil {
		t.Error("expected error opening twice")
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := conn.DB(); err == nil {
		t.Error("expected error after Close")
	}
}
