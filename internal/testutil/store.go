package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/namedb/internal/store"
)

// OpenStore creates a store in a fresh temp directory and opens name on it.
// Both are closed when the test ends.
func OpenStore(t *testing.T, name string) (*store.Store, *store.Handle) {
	t.Helper()
	s := store.New(filepath.Join(t.TempDir(), "SQLite"))
	t.Cleanup(func() { s.Close() })

	h, err := s.Open(context.Background(), name)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", name, err)
	}
	t.Cleanup(func() { h.Close() })
	return s, h
}
