package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// DefaultBusyTimeout is how long SQLite waits on a locked database file.
const DefaultBusyTimeout = 5 * time.Second

// Store is a registry of record databases rooted at one data directory.
// It is safe for concurrent use.
type Store struct {
	dir         string
	busyTimeout time.Duration
	logger      *slog.Logger

	mu    sync.Mutex
	files map[string]*file
}

// file is one open backing database, shared by every live handle to its name.
type file struct {
	name string
	path string

	// mu serializes every operation on this file, including import.
	mu   sync.Mutex
	db   *sql.DB // nil when the file could not be reopened after an import
	gen  uint64  // bumped whenever existing handles stop being valid
	refs int     // live handles at the current generation
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for store events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBusyTimeout sets the SQLite busy timeout applied to every opened file.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.busyTimeout = d
		}
	}
}

// New creates a Store whose database files live in dir.
// The directory is created lazily by Open.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:         dir,
		busyTimeout: DefaultBusyTimeout,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		files:       make(map[string]*file),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Open opens the database file called name, creating it and the names table
// if they do not exist, and returns a new handle to it.
//
// This function is idempotent - opening the same name again returns another
// handle on the same file without touching existing data.
func (s *Store) Open(ctx context.Context, name string) (*Handle, error) {
	if err := validateName(name); err != nil {
		return nil, newError(CodeStorageUnavailable, "open", name, err)
	}
	if strings.TrimSpace(s.dir) == "" {
		return nil, newError(CodeStorageUnavailable, "open", name, errors.New("data directory is not set"))
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, newError(CodeStorageUnavailable, "open", name, fmt.Errorf("create data directory: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[name]
	if !ok {
		f = &file{name: name, path: filepath.Join(s.dir, name)}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.db == nil {
		db, err := s.openDB(ctx, f.path)
		if err != nil {
			return nil, newError(CodeStorageUnavailable, "open", name, err)
		}
		f.db = db
		f.refs = 0
		s.logger.Debug("database opened", "name", name, "path", f.path)
	}
	s.files[name] = f
	f.refs++

	return &Handle{store: s, file: f, gen: f.gen}, nil
}

// Close closes every open file. Handles obtained earlier fail with
// ErrStaleHandle afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, f := range s.files {
		f.mu.Lock()
		if f.db != nil {
			if err := f.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
			f.db = nil
		}
		f.gen++
		f.refs = 0
		f.mu.Unlock()
		delete(s.files, name)
	}
	return errors.Join(errs...)
}

// release drops one reference to f and closes its database when the last
// live handle goes away. Caller holds s.mu and f.mu.
func (s *Store) release(f *file) error {
	f.refs--
	if f.refs > 0 {
		return nil
	}
	if cur, ok := s.files[f.name]; ok && cur == f {
		delete(s.files, f.name)
	}
	f.gen++
	if f.db == nil {
		return nil
	}
	err := f.db.Close()
	f.db = nil
	s.logger.Debug("database closed", "name", f.name)
	return err
}

// openDB opens a SQLite database at path with the store's pragmas and
// ensures the names table exists.
func (s *Store) openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := s.applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// applyPragmas sets required SQLite configuration.
func (s *Store) applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds()),
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// ensureSchema creates the names table if it doesn't exist.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// validateName rejects names that would escape the data directory or that
// the sqlite3 driver would misread as DSN parameters.
func validateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("database name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("invalid database name %q", name)
	case strings.ContainsAny(name, "/\\?\x00"):
		return fmt.Errorf("database name %q must not contain path separators or '?'", name)
	}
	return nil
}
