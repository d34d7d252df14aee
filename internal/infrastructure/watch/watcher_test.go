package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, cfg Config) *Watcher {
	t.Helper()
	cfg.Debounce = 30 * time.Millisecond
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func waitFor(t *testing.T, w *Watcher, path string) Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Path == path {
				return ev
			}
		case err := <-w.Errors():
			t.Fatalf("watcher error: %v", err)
		case <-timeout:
			t.Fatalf("timed out waiting for event on %s", path)
		}
	}
}

func expectQuiet(t *testing.T, w *Watcher, d time.Duration) {
	t.Helper()
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(d):
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Debounce != 200*time.Millisecond {
		t.Errorf("expected Debounce 200ms, got %v", cfg.Debounce)
	}
	if cfg.BufferSize != 100 {
		t.Errorf("expected BufferSize 100, got %d", cfg.BufferSize)
	}
}

func TestNew_FillsZeroConfig(t *testing.T) {
	w, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer w.Close()

	if w.config.Debounce <= 0 || w.config.BufferSize <= 0 {
		t.Errorf("expected defaults to be applied, got %+v", w.config)
	}
}

func TestWatcher_Directory(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, Config{
		Match: func(path string) bool { return filepath.Ext(path) == ".txt" },
	})
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	w.Start()

	if err := os.WriteFile(filepath.Join(dir, "skip.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(target, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	ev := waitFor(t, w, target)
	if ev.Type != EventCreate && ev.Type != EventWrite {
		t.Errorf("unexpected event type %q", ev.Type)
	}
	expectQuiet(t, w, 150*time.Millisecond)
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(target, []byte("0"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := newTestWatcher(t, Config{})
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	w.Start()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(target, []byte{byte('a' + i)}, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, w, target)
	expectQuiet(t, w, 150*time.Millisecond)
}

func TestWatcher_SingleFileIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "only.txt")
	if err := os.WriteFile(target, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := newTestWatcher(t, Config{})
	if err := w.Add(target); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	w.Start()

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}
	expectQuiet(t, w, 150*time.Millisecond)

	if err := os.WriteFile(target, []byte("changed"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, w, target)
}

func TestWatcher_HiddenNamesFollowMatch(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, Config{
		Match: func(path string) bool { return filepath.Ext(path) == ".txt" },
	})
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	w.Start()

	if err := os.WriteFile(filepath.Join(dir, ".swap"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	expectQuiet(t, w, 150*time.Millisecond)

	target := filepath.Join(dir, ".notes.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, w, target)
}

func TestWatcher_RecursiveHiddenDirectory(t *testing.T) {
	dir := t.TempDir()
	hidden := filepath.Join(dir, ".cache")
	if err := os.Mkdir(hidden, 0o755); err != nil {
		t.Fatal(err)
	}

	w := newTestWatcher(t, Config{Recursive: true})
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	w.Start()

	target := filepath.Join(hidden, "x.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, w, target)
}

func TestWatcher_RecursiveNewDirectory(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, Config{Recursive: true})
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	w.Start()

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher time to pick up the new directory.
	time.Sleep(100 * time.Millisecond)

	target := filepath.Join(sub, "deep.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, w, target)
}

func TestWatcher_AddMissing(t *testing.T) {
	w := newTestWatcher(t, Config{})
	if err := w.Add(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestWatcher_CloseTwice(t *testing.T) {
	w, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	w.Start()
	if err := w.Close(); err != nil {
		t.Errorf("first Close() error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}
