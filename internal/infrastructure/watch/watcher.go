// Package watch reports debounced changes to the files being counted so the
// CLI can recount them.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventType is the kind of change observed.
type EventType string

// Event types.
const (
	EventCreate EventType = "create"
	EventWrite  EventType = "write"
	EventRemove EventType = "remove"
	EventRename EventType = "rename"
)

// Event is a settled change to one file.
type Event struct {
	Path      string
	Type      EventType
	Timestamp time.Time
}

// Config holds configuration for the watcher.
type Config struct {
	// Debounce is how long a path must stay quiet before its event is emitted.
	Debounce   time.Duration
	BufferSize int
	// Match filters file paths under watched directories. Nil matches everything.
	Match func(path string) bool
	// Recursive watches every subdirectory of a watched directory, including
	// ones created later.
	Recursive bool
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Debounce:   200 * time.Millisecond,
		BufferSize: 100,
	}
}

// Watcher wraps fsnotify with debouncing and path filtering.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    Config
	events    chan Event
	errors    chan error

	// Single files are watched through their parent directory.
	files map[string]bool
	// targets holds directories whose matching files are all reported.
	targets map[string]bool
	dirs    map[string]bool
	mu      sync.Mutex

	pending   map[string]pendingEvent
	pendingMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

type pendingEvent struct {
	eventType EventType
	timestamp time.Time
}

// New creates a watcher. Call Add for each target, then Start.
func New(cfg Config) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 200 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		events:    make(chan Event, cfg.BufferSize),
		errors:    make(chan error, cfg.BufferSize),
		files:     make(map[string]bool),
		targets:   make(map[string]bool),
		dirs:      make(map[string]bool),
		pending:   make(map[string]pendingEvent),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Add watches a file or a directory.
func (w *Watcher) Add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !info.IsDir() {
		w.files[filepath.Clean(path)] = true
		return w.addDirLocked(filepath.Dir(path))
	}

	if !w.config.Recursive {
		w.targets[filepath.Clean(path)] = true
		return w.addDirLocked(path)
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		w.targets[filepath.Clean(p)] = true
		return w.addDirLocked(p)
	})
}

func (w *Watcher) addDirLocked(dir string) error {
	dir = filepath.Clean(dir)
	if w.dirs[dir] {
		return nil
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = true
	return nil
}

// Start begins delivering events.
func (w *Watcher) Start() {
	w.wg.Add(2)
	go w.processEvents()
	go w.debounceProcessor()
}

// Events returns the channel of settled events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel for receiving watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	err := w.fsWatcher.Close()
	w.wg.Wait()

	close(w.events)
	close(w.errors)

	return err
}

// wanted reports whether a change to path should be reported.
func (w *Watcher) wanted(path string) bool {
	path = filepath.Clean(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.files[path] {
		return true
	}
	// Parents of single files are watched only for those files.
	if !w.targets[filepath.Dir(path)] {
		return false
	}
	return w.config.Match == nil || w.config.Match(path)
}

// processEvents reads from fsnotify and queues events for debouncing.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				// Drop error if channel is full
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	eventType := convertEventType(event.Op)
	if eventType == "" {
		return
	}

	if eventType == EventCreate && w.config.Recursive {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.Add(event.Name); err != nil {
				select {
				case w.errors <- err:
				default:
				}
			}
			return
		}
	}

	if !w.wanted(event.Name) {
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] = pendingEvent{eventType: eventType, timestamp: time.Now()}
	w.pendingMu.Unlock()
}

// debounceProcessor periodically checks for stable events and emits them.
func (w *Watcher) debounceProcessor() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.emitStableEvents()
		}
	}
}

// emitStableEvents emits every pending event that has been quiet for the debounce period.
func (w *Watcher) emitStableEvents() {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	now := time.Now()
	for path, pending := range w.pending {
		if now.Sub(pending.timestamp) < w.config.Debounce {
			continue
		}
		delete(w.pending, path)

		select {
		case w.events <- Event{Path: path, Type: pending.eventType, Timestamp: pending.timestamp}:
		default:
			// Drop event if channel is full
		}
	}
}

// convertEventType converts fsnotify event operation to EventType.
func convertEventType(op fsnotify.Op) EventType {
	switch {
	case op&fsnotify.Create == fsnotify.Create:
		return EventCreate
	case op&fsnotify.Write == fsnotify.Write:
		return EventWrite
	case op&fsnotify.Remove == fsnotify.Remove:
		return EventRemove
	case op&fsnotify.Rename == fsnotify.Rename:
		return EventRename
	default:
		return ""
	}
}
