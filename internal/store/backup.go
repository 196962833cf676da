package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ExportTo copies the database file's current bytes, verbatim, into dst.
//
// The write-ahead log is checkpointed into the main file first so the copy
// holds every committed record. The copy runs under the file's mutex, so no
// mutation lands mid-copy.
func (h *Handle) ExportTo(ctx context.Context, dst Destination) error {
	f, err := h.acquire("export")
	if err != nil {
		return err
	}
	defer f.mu.Unlock()

	if dst == nil {
		return newError(CodeExportFailed, "export", f.name, errors.New("nil destination"))
	}

	if _, err := os.Stat(f.path); err != nil {
		return newError(CodeExportFailed, "export", f.name, fmt.Errorf("backing file: %w", err))
	}

	if _, err := f.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return newError(CodeExportFailed, "export", f.name, fmt.Errorf("wal checkpoint: %w", err))
	}

	src, err := os.Open(f.path)
	if err != nil {
		return newError(CodeExportFailed, "export", f.name, fmt.Errorf("open backing file: %w", err))
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return newError(CodeExportFailed, "export", f.name, fmt.Errorf("stat backing file: %w", err))
	}

	sink, err := dst.Create(ctx)
	if err != nil {
		return exportError(f.name, err)
	}

	n, err := io.Copy(sink, src)
	if err != nil {
		_ = sink.Abort()
		return exportError(f.name, fmt.Errorf("copy: %w", err))
	}
	if n != info.Size() {
		_ = sink.Abort()
		return newError(CodeExportFailed, "export", f.name, fmt.Errorf("short copy: wrote %d of %d bytes", n, info.Size()))
	}

	if err := sink.Commit(); err != nil {
		return exportError(f.name, err)
	}

	h.store.logger.Info("database exported", "name", f.name, "bytes", n)
	return nil
}

// ImportFrom replaces the database file with the bytes of src and re-opens
// it. The returned handle is h, re-bound to the new file; every other handle
// to the same name becomes stale.
//
// The source is staged next to the backing file and opened once to ensure the
// names table exists. Only then is the old connection closed and the staged
// file renamed into place. If anything fails before the rename, the old file
// and all handles remain as they were.
func (h *Handle) ImportFrom(ctx context.Context, src Source) (*Handle, error) {
	f, err := h.acquire("import")
	if err != nil {
		return nil, err
	}
	defer f.mu.Unlock()

	if src == nil {
		return nil, newError(CodeImportFailed, "import", f.name, errors.New("nil source"))
	}

	s := h.store
	staged, n, err := s.stageImport(ctx, f, src)
	if err != nil {
		return nil, err
	}

	// The swap must finish once started.
	ctx = context.WithoutCancel(ctx)

	// Close-then-reopen: the old connection is gone before the rename.
	if err := f.db.Close(); err != nil {
		s.logger.Warn("closing database before import", "name", f.name, "error", err)
	}
	f.db = nil
	removeSidecars(f.path)

	if err := os.Rename(staged, f.path); err != nil {
		os.Remove(staged)
		db, reopenErr := s.openDB(ctx, f.path)
		if reopenErr != nil {
			f.gen++
			f.refs = 0
			return nil, newError(CodeImportFailed, "import", f.name, errors.Join(fmt.Errorf("replace backing file: %w", err), reopenErr))
		}
		f.db = db
		return nil, newError(CodeImportFailed, "import", f.name, fmt.Errorf("replace backing file: %w", err))
	}
	syncDir(filepath.Dir(f.path))

	db, err := s.openDB(ctx, f.path)
	f.gen++
	if err != nil {
		f.refs = 0
		return nil, newError(CodeImportFailed, "import", f.name, fmt.Errorf("reopen: %w", err))
	}
	f.db = db
	f.refs = 1
	h.gen = f.gen

	s.logger.Info("database imported", "name", f.name, "bytes", n)
	return h, nil
}

// stageImport copies src into a temporary file beside f and checks that the
// copy opens as a database. Returns the staged path and byte count.
func (s *Store) stageImport(ctx context.Context, f *file, src Source) (string, int64, error) {
	r, size, err := src.Open(ctx)
	if err != nil {
		return "", 0, newError(CodeImportFailed, "import", f.name, fmt.Errorf("open source: %w", err))
	}
	defer r.Close()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+f.name+".import-*")
	if err != nil {
		return "", 0, newError(CodeImportFailed, "import", f.name, fmt.Errorf("create staging file: %w", err))
	}
	tmpPath := tmp.Name()
	fail := func(err error) (string, int64, error) {
		tmp.Close()
		os.Remove(tmpPath)
		return "", 0, err
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		return fail(newError(CodeImportFailed, "import", f.name, fmt.Errorf("read source: %w", err)))
	}
	if size >= 0 && n != size {
		return fail(newError(CodeImportFailed, "import", f.name, fmt.Errorf("short read: got %d of %d bytes", n, size)))
	}
	if err := tmp.Sync(); err != nil {
		return fail(newError(CodeImportFailed, "import", f.name, fmt.Errorf("sync staging file: %w", err)))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", 0, newError(CodeImportFailed, "import", f.name, fmt.Errorf("close staging file: %w", err))
	}

	if err := checkImport(ctx, tmpPath); err != nil {
		os.Remove(tmpPath)
		removeSidecars(tmpPath)
		return "", 0, newError(CodeImportFailed, "import", f.name, err)
	}

	return tmpPath, n, nil
}

// checkImport opens the staged file once and ensures the names table exists.
// Fails if the file is not a SQLite database.
func checkImport(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open staged database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("staged database: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close staged database: %w", err)
	}
	return nil
}

// removeSidecars deletes WAL and shared-memory files left beside path so they
// cannot be replayed against a different main file.
func removeSidecars(path string) {
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
}
