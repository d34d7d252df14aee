// Package application provides application-level services and dependency injection.
package application

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	appCounting "github.com/jbctechsolutions/counttokens/internal/application/counting"
	domainCounting "github.com/jbctechsolutions/counttokens/internal/domain/counting"
	"github.com/jbctechsolutions/counttokens/internal/domain/history"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/config"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/testutil"
)

func TestNewContainer(t *testing.T) {
	container, err := NewContainer(nil, false, WithLogOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("NewContainer failed: %v", err)
	}
	defer container.Close()

	if container.Config() == nil {
		t.Error("Config should not be nil")
	}
	if container.Engine() == nil {
		t.Error("Engine should not be nil")
	}
	if container.Logger() == nil {
		t.Error("Logger should not be nil")
	}
	if container.Tracer() == nil {
		t.Error("Tracer should not be nil")
	}
	if container.ObservabilityService() == nil {
		t.Error("ObservabilityService should not be nil")
	}
	if container.HistoryRepository() != nil {
		t.Error("HistoryRepository should be nil when history is disabled")
	}
}

func TestContainer_CountRecordsHistory(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")

	container, err := NewContainer(cfg, false, WithLogOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("NewContainer failed: %v", err)
	}
	defer container.Close()

	if container.HistoryRepository() == nil {
		t.Fatal("HistoryRepository should be set when history is enabled")
	}

	ctx := context.Background()
	result, err := container.Count(ctx, appCounting.Text("This is a test."), domainCounting.Options{})
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	testutil.AssertEqual(t, result.Scalar.Tokens, 5)

	runs, err := container.HistoryRepository().ListRuns(ctx, history.Filter{})
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	testutil.AssertEqual(t, runs[0].Mode, "text")
	testutil.AssertEqual(t, runs[0].TotalTokens, 5)
	testutil.AssertEqual(t, runs[0].Status, history.StatusCompleted)
}

func TestContainer_CountFailureIsRecorded(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")

	logs := &bytes.Buffer{}
	container, err := NewContainer(cfg, true, WithLogOutput(logs))
	if err != nil {
		t.Fatalf("NewContainer failed: %v", err)
	}
	defer container.Close()

	ctx := context.Background()
	missing := filepath.Join(t.TempDir(), "missing.txt")
	if _, err := container.Count(ctx, appCounting.Input{File: missing}, domainCounting.Options{}); err == nil {
		t.Fatal("expected error for missing file")
	}

	runs, err := container.HistoryRepository().ListRuns(ctx, history.Filter{})
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != history.StatusFailed {
		t.Fatalf("expected one failed run, got %+v", runs)
	}
	if !strings.Contains(logs.String(), "count failed") {
		t.Errorf("expected failure to be logged, got %q", logs.String())
	}
}

func TestContainer_VerboseEnablesDebug(t *testing.T) {
	logs := &bytes.Buffer{}
	container, err := NewContainer(nil, true, WithLogOutput(logs))
	if err != nil {
		t.Fatalf("NewContainer failed: %v", err)
	}
	defer container.Close()

	container.Logger().Debug("debug visible")
	if !strings.Contains(logs.String(), "debug visible") {
		t.Error("expected debug output with verbose")
	}
}

func TestContainer_BadHistoryPath(t *testing.T) {
	dir := t.TempDir()
	blocker := testutil.WriteFile(t, dir, "file", "x")

	cfg := config.NewDefaultConfig()
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(blocker, "history.db")

	if _, err := NewContainer(cfg, false, WithLogOutput(&bytes.Buffer{})); err == nil {
		t.Error("expected error when history directory cannot be created")
	}
}
