// Package logging builds the slog logger shared by the CLI, the store and the
// dispatcher. Output goes to stderr as text, or to a size-rotated file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/namedb/internal/config"
)

// Options selects the level and destination of log output.
//
// Logging.Level is debug|info|warn|error, empty meaning info. Logging.File
// names a rotating log file; when empty, output goes to Stderr.
type Options struct {
	Logging config.LoggingConfig
	Verbose bool      // forces debug
	Stderr  io.Writer // defaults to os.Stderr
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// New returns a logger for opts. The returned closer releases the log file
// and must be called when the program exits.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var (
		w      io.Writer = opts.Stderr
		closer io.Closer = nopCloser{}
	)
	if w == nil {
		w = os.Stderr
	}
	if opts.Logging.File != "" {
		lf, err := OpenLogFile(opts.Logging)
		if err != nil {
			return nil, nil, err
		}
		w, closer = lf, lf
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closer, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
