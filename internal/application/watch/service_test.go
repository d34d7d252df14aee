package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	appCounting "github.com/jbctechsolutions/counttokens/internal/application/counting"
	domainCounting "github.com/jbctechsolutions/counttokens/internal/domain/counting"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/logging"
)

type recorder struct {
	mu      sync.Mutex
	updates []Update
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 16)}
}

func (r *recorder) record(u Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recorder) wait(t *testing.T) Update {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates[len(r.updates)-1]
}

func countingFunc(calls *int, mu *sync.Mutex) CountFunc {
	return func(ctx context.Context) (domainCounting.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		*calls++
		return domainCounting.ScalarResult(*calls), nil
	}
}

func TestNewService_Validation(t *testing.T) {
	noop := func(Update) {}
	count := func(context.Context) (domainCounting.Result, error) { return domainCounting.ScalarResult(0), nil }

	tests := []struct {
		name string
		cfg  ServiceConfig
	}{
		{"text input", ServiceConfig{Input: appCounting.Text("hi"), Count: count, OnUpdate: noop}},
		{"no input", ServiceConfig{Count: count, OnUpdate: noop}},
		{"no count func", ServiceConfig{Input: appCounting.Input{File: "a.txt"}, OnUpdate: noop}},
		{"no callback", ServiceConfig{Input: appCounting.Input{File: "a.txt"}, Count: count}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewService(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}

	_, err := NewService(ServiceConfig{Input: appCounting.Text("hi"), Count: count, OnUpdate: noop})
	if !errors.Is(err, ErrTextInput) {
		t.Errorf("expected ErrTextInput, got %v", err)
	}
}

func TestService_InitialCountAndRecount(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(file, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}

	var (
		calls int
		mu    sync.Mutex
	)
	rec := newRecorder()
	svc, err := NewService(ServiceConfig{
		Input:    appCounting.Input{File: file},
		Debounce: 30 * time.Millisecond,
		Count:    countingFunc(&calls, &mu),
		OnUpdate: rec.record,
		Logger:   logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer svc.Stop()

	if !svc.IsRunning() {
		t.Error("expected service to be running")
	}

	first := rec.wait(t)
	if first.Trigger != "" || first.Result.Scalar.Tokens != 1 {
		t.Errorf("unexpected initial update %+v", first)
	}

	if err := os.WriteFile(file, []byte("one two"), 0o644); err != nil {
		t.Fatal(err)
	}
	second := rec.wait(t)
	if second.Trigger != file {
		t.Errorf("expected trigger %s, got %s", file, second.Trigger)
	}
	if second.Result.Scalar.Tokens < 2 {
		t.Errorf("expected a recount, got %+v", second.Result.Scalar)
	}
}

func TestService_DirectoryUsesPatterns(t *testing.T) {
	dir := t.TempDir()

	var (
		calls int
		mu    sync.Mutex
	)
	rec := newRecorder()
	svc, err := NewService(ServiceConfig{
		Input:    appCounting.Input{Directory: dir},
		Options:  domainCounting.Options{Patterns: []string{"*.txt"}},
		Debounce: 30 * time.Millisecond,
		Count:    countingFunc(&calls, &mu),
		OnUpdate: rec.record,
		Logger:   logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer svc.Stop()
	rec.wait(t)

	if err := os.WriteFile(filepath.Join(dir, "skip.go"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	match := filepath.Join(dir, "keep.txt")
	if err := os.WriteFile(match, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := rec.wait(t); got.Trigger != match {
		t.Errorf("expected trigger %s, got %s", match, got.Trigger)
	}
}

func TestService_StartMissingTarget(t *testing.T) {
	svc, err := NewService(ServiceConfig{
		Input:    appCounting.Input{File: filepath.Join(t.TempDir(), "missing.txt")},
		Count:    func(context.Context) (domainCounting.Result, error) { return domainCounting.ScalarResult(0), nil },
		OnUpdate: func(Update) {},
		Logger:   logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	if err := svc.Start(context.Background()); err == nil {
		t.Error("expected error for missing target")
	}
	if svc.IsRunning() {
		t.Error("service must not run after failed start")
	}
}

func TestService_StopIdempotent(t *testing.T) {
	svc, err := NewService(ServiceConfig{
		Input:    appCounting.Input{Directory: t.TempDir()},
		Count:    func(context.Context) (domainCounting.Result, error) { return domainCounting.NewDirectoryResult(), nil },
		OnUpdate: func(Update) {},
		Logger:   logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Errorf("Stop() before Start() error: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Errorf("second Stop() error: %v", err)
	}
}
