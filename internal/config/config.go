// Package config loads namedb settings from defaults, an optional YAML or
// TOML file, NAMEDB_* environment variables and command-line flags, in that
// order of precedence. The merged result is validated against schema.cue.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	defaultDatabase      = "example.db"
	defaultBusyTimeoutMS = 5000
	defaultLogLevel      = "info"
	defaultLogMaxSizeMB  = 10
	defaultLogMaxFiles   = 5
)

// ErrInvalidConfig wraps every parse and validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the merged namedb configuration.
type Config struct {
	DataDir       string        `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	Database      string        `json:"database" yaml:"database" toml:"database"`
	BusyTimeoutMS int           `json:"busy_timeout_ms" yaml:"busy_timeout_ms" toml:"busy_timeout_ms"`
	Logging       LoggingConfig `json:"logging" yaml:"logging" toml:"logging"`
}

// LoggingConfig selects the log level and optional rotating log file.
type LoggingConfig struct {
	Level     string `json:"level" yaml:"level" toml:"level"`
	File      string `json:"file" yaml:"file" toml:"file"`
	MaxSizeMB int    `json:"max_size_mb" yaml:"max_size_mb" toml:"max_size_mb"`
	MaxFiles  int    `json:"max_files" yaml:"max_files" toml:"max_files"`
}

// BusyTimeout returns BusyTimeoutMS as a duration.
func (c Config) BusyTimeout() time.Duration {
	return time.Duration(c.BusyTimeoutMS) * time.Millisecond
}

// LoadOptions controls where Load reads settings from.
type LoadOptions struct {
	// ConfigPath names a .yaml, .yml or .toml file. Falls back to
	// NAMEDB_CONFIG; no file is read when both are empty.
	ConfigPath string

	// Env replaces the process environment when non-nil.
	Env map[string]string

	Flags FlagOverrides
}

// FlagOverrides holds flag values; nil means the flag was not given.
type FlagOverrides struct {
	DataDir  *string
	Database *string
	LogLevel *string
}

// DefaultConfig returns the built-in defaults. DataDir is left empty.
func DefaultConfig() Config {
	return Config{
		Database:      defaultDatabase,
		BusyTimeoutMS: defaultBusyTimeoutMS,
		Logging: LoggingConfig{
			Level:     defaultLogLevel,
			File:      "",
			MaxSizeMB: defaultLogMaxSizeMB,
			MaxFiles:  defaultLogMaxFiles,
		},
	}
}

// Load merges defaults, the config file, environment and flags, then validates
// the result.
func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	path := opts.ConfigPath
	if path == "" {
		path, _ = lookupEnv(opts, "NAMEDB_CONFIG")
	}
	if err := loadAndApplyFile(path, &cfg); err != nil {
		return Config{}, err
	}

	if err := applyEnvOverrides(&cfg, opts); err != nil {
		return Config{}, err
	}
	applyFlagOverrides(&cfg, opts.Flags)

	if cfg.DataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.DataDir = dir
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type rawConfig struct {
	DataDir       *string     `yaml:"data_dir" toml:"data_dir"`
	Database      *string     `yaml:"database" toml:"database"`
	BusyTimeoutMS *int        `yaml:"busy_timeout_ms" toml:"busy_timeout_ms"`
	Logging       *rawLogging `yaml:"logging" toml:"logging"`
}

type rawLogging struct {
	Level     *string `yaml:"level" toml:"level"`
	File      *string `yaml:"file" toml:"file"`
	MaxSizeMB *int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxFiles  *int    `yaml:"max_files" toml:"max_files"`
}

func loadAndApplyFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw rawConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("%w: parse YAML file %q: %v", ErrInvalidConfig, path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("%w: parse TOML file %q: %v", ErrInvalidConfig, path, err)
		}
	default:
		return fmt.Errorf("%w: unsupported config file extension %q", ErrInvalidConfig, ext)
	}

	applyRawConfig(cfg, raw)
	return nil
}

func applyRawConfig(cfg *Config, raw rawConfig) {
	setString(raw.DataDir, &cfg.DataDir)
	setString(raw.Database, &cfg.Database)
	setInt(raw.BusyTimeoutMS, &cfg.BusyTimeoutMS)

	if raw.Logging != nil {
		setString(raw.Logging.Level, &cfg.Logging.Level)
		setString(raw.Logging.File, &cfg.Logging.File)
		setInt(raw.Logging.MaxSizeMB, &cfg.Logging.MaxSizeMB)
		setInt(raw.Logging.MaxFiles, &cfg.Logging.MaxFiles)
	}
}

func applyEnvOverrides(cfg *Config, opts LoadOptions) error {
	if value, ok := lookupEnv(opts, "NAMEDB_DATA_DIR"); ok && value != "" {
		cfg.DataDir = value
	}
	if value, ok := lookupEnv(opts, "NAMEDB_DATABASE"); ok && value != "" {
		cfg.Database = value
	}
	if value, ok := lookupEnv(opts, "NAMEDB_BUSY_TIMEOUT_MS"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse NAMEDB_BUSY_TIMEOUT_MS: %v", ErrInvalidConfig, err)
		}
		cfg.BusyTimeoutMS = parsed
	}
	if value, ok := lookupEnv(opts, "NAMEDB_LOG_LEVEL"); ok && value != "" {
		cfg.Logging.Level = value
	}
	if value, ok := lookupEnv(opts, "NAMEDB_LOG_FILE"); ok {
		cfg.Logging.File = value
	}
	return nil
}

func applyFlagOverrides(cfg *Config, flags FlagOverrides) {
	setString(flags.DataDir, &cfg.DataDir)
	setString(flags.Database, &cfg.Database)
	setString(flags.LogLevel, &cfg.Logging.Level)
}

func setString(raw *string, target *string) {
	if raw != nil {
		*target = *raw
	}
}

func setInt(raw *int, target *int) {
	if raw != nil {
		*target = *raw
	}
}

func lookupEnv(opts LoadOptions, key string) (string, bool) {
	if opts.Env != nil {
		value, ok := opts.Env[key]
		return value, ok
	}
	return os.LookupEnv(key)
}
