package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
)

// createTestStore creates a store rooted in a fresh temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "SQLite"))
	t.Cleanup(func() { s.Close() })
	return s
}

// openTestHandle opens name on s and closes the handle at test end.
func openTestHandle(t *testing.T, s *Store, name string) *Handle {
	t.Helper()
	h, err := s.Open(context.Background(), name)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", name, err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

// mustCreate creates a record and fails the test if nothing was written.
func mustCreate(t *testing.T, h *Handle, name string) Record {
	t.Helper()
	rec, ok, err := h.Create(context.Background(), name)
	if err != nil {
		t.Fatalf("Create(%q) failed: %v", name, err)
	}
	if !ok {
		t.Fatalf("Create(%q) wrote nothing", name)
	}
	return rec
}

// verifyPragma checks that a pragma is set to the expected value.
func verifyPragma(db *sql.DB, name, expected string) error {
	var value string
	if err := db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
