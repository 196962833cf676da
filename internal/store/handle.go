package store

import (
	"errors"
)

// Handle is an open reference to one database file.
//
// Handles are safe for concurrent use; operations on handles that share a
// file are serialized. A handle becomes unusable after Close, and stale after
// an import through a different handle to the same file.
type Handle struct {
	store *Store
	file  *file

	// Guarded by file.mu.
	gen    uint64
	closed bool
}

// Name returns the logical database name.
func (h *Handle) Name() string {
	if h == nil || h.file == nil {
		return ""
	}
	return h.file.name
}

// Path returns the backing file's location on disk.
func (h *Handle) Path() string {
	if h == nil || h.file == nil {
		return ""
	}
	return h.file.path
}

// Close releases the handle. The file itself is closed once its last live
// handle is released. Closing an already closed or stale handle is a no-op.
func (h *Handle) Close() error {
	if h == nil || h.file == nil {
		return nil
	}
	s := h.store
	s.mu.Lock()
	defer s.mu.Unlock()

	f := h.file
	f.mu.Lock()
	defer f.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	if h.gen != f.gen {
		return nil
	}
	if err := s.release(f); err != nil {
		return newError(CodeStorageUnavailable, "close", f.name, err)
	}
	return nil
}

// acquire locks the handle's file and checks that the handle may operate on
// it. On success the caller must unlock the returned file's mutex.
func (h *Handle) acquire(op string) (*file, error) {
	if h == nil || h.file == nil {
		return nil, newError(CodeHandleClosed, op, "", errors.New("nil handle"))
	}
	f := h.file
	f.mu.Lock()
	if err := h.check(op); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	return f, nil
}

// check validates handle state. Caller holds file.mu.
func (h *Handle) check(op string) error {
	f := h.file
	switch {
	case h.closed:
		return newError(CodeHandleClosed, op, f.name, nil)
	case h.gen != f.gen:
		return newError(CodeStaleHandle, op, f.name, nil)
	case f.db == nil:
		return newError(CodeStorageUnavailable, op, f.name, errors.New("database is not open"))
	}
	return nil
}
