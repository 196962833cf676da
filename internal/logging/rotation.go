package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/namedb/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// OpenLogFile opens cfg.File for appending and rotates it once it grows past
// cfg.MaxSizeMB. At most cfg.MaxFiles rotated copies are kept; zero keeps all.
// Rotated copies carry a local-time timestamp in their name.
//
// The file is opened once before returning so an unwritable path fails here
// rather than on the first log line.
func OpenLogFile(cfg config.LoggingConfig) (*lumberjack.Logger, error) {
	path := strings.TrimSpace(cfg.File)
	if path == "" {
		return nil, errors.New("log file path is empty")
	}
	if cfg.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("log file %s: max size must be positive, got %d MB", path, cfg.MaxSizeMB)
	}
	if cfg.MaxFiles < 0 {
		return nil, fmt.Errorf("log file %s: max files must not be negative, got %d", path, cfg.MaxFiles)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxFiles,
		LocalTime:  true,
	}, nil
}
