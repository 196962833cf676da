package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// DefaultDataDir returns the OS-specific directory holding database files.
// NAMEDB_DATA_DIR overrides it during Load.
func DefaultDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, "namedb", "SQLite"), nil
		}
		return "", errors.New("APPDATA not set")
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			return filepath.Join(home, "Library", "Application Support", "namedb", "SQLite"), nil
		}
		return "", errors.New("home directory not found")
	default: // linux and others
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			return filepath.Join(home, ".local", "share", "namedb", "SQLite"), nil
		}
		return "", errors.New("home directory not found")
	}
}
