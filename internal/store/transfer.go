package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Source yields the bytes of a database file to import.
type Source interface {
	// Open returns a reader over the source and its total length in bytes,
	// or -1 if the length is not known in advance.
	Open(ctx context.Context) (io.ReadCloser, int64, error)
}

// Destination receives the bytes of an exported database file.
type Destination interface {
	Create(ctx context.Context) (Sink, error)
}

// Sink is an in-progress write to a Destination. Nothing written becomes
// visible to readers of the destination until Commit succeeds.
type Sink interface {
	io.Writer

	// Commit publishes the written bytes.
	Commit() error

	// Abort discards the written bytes. It is a no-op after Commit.
	Abort() error
}

type fileSource struct {
	path string
}

// FileSource returns a Source reading the file at path.
func FileSource(path string) Source {
	return fileSource{path: path}
}

func (s fileSource) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("%s is a directory", s.path)
	}
	return f, info.Size(), nil
}

type streamSource struct {
	r    io.Reader
	size int64
}

// StreamSource returns a Source over an already open stream, such as one
// handed over by a platform file picker. Pass size -1 if unknown.
// The stream is closed after the import if it implements io.Closer.
func StreamSource(r io.Reader, size int64) Source {
	return streamSource{r: r, size: size}
}

func (s streamSource) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	if s.r == nil {
		return nil, 0, errors.New("nil stream")
	}
	if rc, ok := s.r.(io.ReadCloser); ok {
		return rc, s.size, nil
	}
	return io.NopCloser(s.r), s.size, nil
}

type fileDestination struct {
	path string
}

// FileDestination returns a Destination that writes the file at path.
// Bytes go to a temporary file in the same directory, which is renamed over
// path on Commit.
func FileDestination(path string) Destination {
	return fileDestination{path: path}
}

func (d fileDestination) Create(ctx context.Context) (Sink, error) {
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.path)+".export-*")
	if err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}
	return &fileSink{tmp: tmp, path: d.path}, nil
}

type fileSink struct {
	tmp  *os.File
	path string
	done bool
}

func (s *fileSink) Write(p []byte) (int, error) {
	return s.tmp.Write(p)
}

func (s *fileSink) Commit() error {
	if s.done {
		return nil
	}
	s.done = true
	tmpPath := s.tmp.Name()
	if err := s.tmp.Sync(); err != nil {
		s.tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync destination: %w", err)
	}
	if err := s.tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close destination: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod destination: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publish destination: %w", err)
	}
	syncDir(filepath.Dir(s.path))
	return nil
}

func (s *fileSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	s.tmp.Close()
	if err := os.Remove(s.tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// syncDir flushes directory metadata after a rename. Errors are ignored;
// some platforms do not support syncing directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	d.Close()
}
