// Package storage persists count run history in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// busyTimeoutMS lets concurrent count-tokens processes wait for the write lock.
const busyTimeoutMS = 5000

var (
	errNotOpen = errors.New("history database not open")
	errOpen    = errors.New("history database already open")
)

// Connection owns the history database handle. It is opened once and
// closed once; DB fails outside that window.
type Connection struct {
	mu   sync.RWMutex
	path string
	db   *sql.DB
}

// NewConnection prepares a connection to the database at path, or to
// ~/.count-tokens/history.db when path is empty. Nothing is opened yet.
func NewConnection(path string) (*Connection, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home directory: %w", err)
		}
		path = filepath.Join(home, ".count-tokens", "history.db")
	}
	return &Connection{path: path}, nil
}

// dsn adds driver options to the path. In-memory databases are used as-is.
func (c *Connection) dsn() string {
	if c.path == MemoryPath {
		return c.path
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", c.path, busyTimeoutMS)
}

// Open creates the parent directory if needed, opens the database and
// brings its schema up to date.
func (c *Connection) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return errOpen
	}

	if c.path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
			return fmt.Errorf("could not create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", c.dsn())
	if err != nil {
		return fmt.Errorf("could not open history database: %w", err)
	}

	// One connection: an in-memory database exists per connection, and the
	// CLI never issues concurrent statements.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("could not reach history database %s: %w", c.path, err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return fmt.Errorf("could not migrate history database: %w", err)
	}

	c.db = db
	return nil
}

// Close closes the database. Closing a connection that is not open is a no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	if err != nil {
		return fmt.Errorf("could not close history database: %w", err)
	}
	return nil
}

// DB returns the open handle.
func (c *Connection) DB() (*sql.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.db == nil {
		return nil, errNotOpen
	}
	return c.db, nil
}

// Path returns the database file path.
func (c *Connection) Path() string {
	return c.path
}
