// Package config provides configuration management for docsync.
// It supports YAML or TOML configuration files, environment variables, and sensible defaults.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/model"
	"github.com/klauern/docsync/internal/util"
)

// Config represents the complete docsync configuration.
type Config struct {
	// Store configures the external directory and the local cache
	Store StoreConfig `yaml:"store" toml:"store"`

	// Sync configures conflict resolution defaults
	Sync SyncConfig `yaml:"sync" toml:"sync"`

	// Watch configures the external change watcher
	Watch WatchConfig `yaml:"watch" toml:"watch"`

	// Backup configures backups of overwritten external files
	Backup BackupConfig `yaml:"backup" toml:"backup"`

	// Journal configures the event journal
	Journal JournalConfig `yaml:"journal" toml:"journal"`

	// Logging configures diagnostic logging
	Logging LoggingConfig `yaml:"logging" toml:"logging"`

	// Output configures display preferences
	Output OutputConfig `yaml:"output" toml:"output"`
}

// StoreConfig locates the two stores.
type StoreConfig struct {
	// Root is the directory tree holding the authoritative documents
	Root string `yaml:"root" toml:"root"`
	// Extensions limits which files are treated as documents
	Extensions []string `yaml:"extensions" toml:"extensions"`
	// CachePath is the SQLite cache file
	CachePath string `yaml:"cache_path" toml:"cache_path"`
}

// SyncConfig holds conflict resolution settings.
type SyncConfig struct {
	// DefaultStrategy is offered first when resolving interactively
	DefaultStrategy string `yaml:"default_strategy" toml:"default_strategy"`
	// StoreTimeout bounds each store call (0 = no timeout)
	StoreTimeout time.Duration `yaml:"store_timeout" toml:"store_timeout"`
}

// WatchConfig holds watcher settings.
type WatchConfig struct {
	// Debounce is how long a file must be quiet before it is flagged
	Debounce time.Duration `yaml:"debounce" toml:"debounce"`
	// AutoResolve resolves every detected conflict with this strategy (empty = never)
	AutoResolve string `yaml:"auto_resolve" toml:"auto_resolve"`
}

// BackupConfig holds backup settings.
type BackupConfig struct {
	// Enabled backs up external files before they are overwritten
	Enabled bool `yaml:"enabled" toml:"enabled"`
	// Location is the backup directory path
	Location string `yaml:"location" toml:"location"`
	// MaxBackups is the maximum number of backups kept per document
	MaxBackups int `yaml:"max_backups" toml:"max_backups"`
}

// JournalConfig holds event journal settings.
type JournalConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled"`
	Path       string `yaml:"path" toml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level" toml:"level"`
	// JSON switches to JSON log lines
	JSON bool `yaml:"json" toml:"json"`
	// File sends logs to a rotating file instead of stderr
	File       string `yaml:"file,omitempty" toml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	// Color controls color output (auto, always, never)
	Color string `yaml:"color" toml:"color"`
	// Verbose enables verbose output
	Verbose bool `yaml:"verbose" toml:"verbose"`
	// TUI uses the interactive picker for sync when stdin is a terminal
	TUI bool `yaml:"tui" toml:"tui"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Root:       ".",
			Extensions: []string{".md", ".markdown", ".txt"},
			CachePath:  util.CachePath(),
		},
		Sync: SyncConfig{
			DefaultStrategy: string(model.KeepLocal),
			StoreTimeout:    30 * time.Second,
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
		Backup: BackupConfig{
			Enabled:    true,
			Location:   util.BackupPath(),
			MaxBackups: 10,
		},
		Journal: JournalConfig{
			Enabled:    true,
			Path:       util.JournalPath(),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 90,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Output: OutputConfig{
			Color: "auto",
			TUI:   true,
		},
	}
}

// FilePath returns the path to the config file.
func FilePath() string {
	return util.ConfigFilePath()
}

// Load loads the configuration from file, merging with defaults.
// If the config file doesn't exist, returns default configuration.
func Load() (*Config, error) {
	cfg, err := LoadFromPath(FilePath())
	if os.IsNotExist(err) {
		cfg = Default()
		cfg.applyEnvironment()
		return cfg, nil
	}
	return cfg, err
}

// LoadFromPath loads configuration from a specific path. Files ending in
// .toml are decoded as TOML, everything else as YAML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is provided by caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.applyEnvironment()
	return cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	return c.SaveToPath(FilePath())
}

// SaveToPath writes the configuration to a specific path, as TOML when
// the path ends in .toml.
func (c *Config) SaveToPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	data, err := c.Encode(isTOML(path))
	if err != nil {
		return err
	}

	// #nosec G306 - config file should be readable by user
	return os.WriteFile(path, data, 0o644)
}

// Encode renders the configuration as YAML, or TOML when asTOML is set.
func (c *Config) Encode(asTOML bool) ([]byte, error) {
	if !asTOML {
		return yaml.Marshal(c)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// applyEnvironment applies environment variable overrides.
// Environment variables follow the pattern DOCSYNC_<SECTION>_<KEY>.
func (c *Config) applyEnvironment() {
	// Store settings
	if v := os.Getenv("DOCSYNC_STORE_ROOT"); v != "" {
		c.Store.Root = v
	}
	if v := os.Getenv("DOCSYNC_STORE_EXTENSIONS"); v != "" {
		c.Store.Extensions = splitList(v)
	}
	if v := os.Getenv("DOCSYNC_STORE_CACHE_PATH"); v != "" {
		c.Store.CachePath = v
	}

	// Sync settings
	if v := os.Getenv("DOCSYNC_SYNC_STRATEGY"); v != "" {
		c.Sync.DefaultStrategy = v
	}
	if v := os.Getenv("DOCSYNC_SYNC_STORE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Sync.StoreTimeout = d
		}
	}

	// Watch settings
	if v := os.Getenv("DOCSYNC_WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Watch.Debounce = d
		}
	}
	if v, ok := os.LookupEnv("DOCSYNC_WATCH_AUTO_RESOLVE"); ok {
		c.Watch.AutoResolve = v
	}

	// Backup settings
	if v := os.Getenv("DOCSYNC_BACKUP_ENABLED"); v != "" {
		c.Backup.Enabled = parseBool(v)
	}
	if v := os.Getenv("DOCSYNC_BACKUP_LOCATION"); v != "" {
		c.Backup.Location = v
	}
	if v := os.Getenv("DOCSYNC_BACKUP_MAX_BACKUPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Backup.MaxBackups = n
		}
	}

	// Journal settings
	if v := os.Getenv("DOCSYNC_JOURNAL_ENABLED"); v != "" {
		c.Journal.Enabled = parseBool(v)
	}
	if v := os.Getenv("DOCSYNC_JOURNAL_PATH"); v != "" {
		c.Journal.Path = v
	}

	// Logging settings
	if v := os.Getenv("DOCSYNC_LOGGING_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DOCSYNC_LOGGING_JSON"); v != "" {
		c.Logging.JSON = parseBool(v)
	}
	if v := os.Getenv("DOCSYNC_LOGGING_FILE"); v != "" {
		c.Logging.File = v
	}

	// Output settings
	if v := os.Getenv("DOCSYNC_OUTPUT_COLOR"); v != "" {
		c.Output.Color = v
	}
	if v := os.Getenv("DOCSYNC_OUTPUT_VERBOSE"); v != "" {
		c.Output.Verbose = parseBool(v)
	}
	if v := os.Getenv("DOCSYNC_OUTPUT_TUI"); v != "" {
		c.Output.TUI = parseBool(v)
	}
}

// parseBool parses a boolean from common string representations.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// GetStrategy returns the default resolution strategy, falling back to
// keepLocal when the configured value is not recognized.
func (c *Config) GetStrategy() model.Resolution {
	r, err := model.ParseResolution(c.Sync.DefaultStrategy)
	if err != nil {
		return model.KeepLocal
	}
	return r
}

// AutoResolveStrategy returns the strategy the watcher resolves with.
// Merge cannot be applied automatically, so it is rejected like an
// unknown value.
func (c *Config) AutoResolveStrategy() (model.Resolution, bool) {
	if strings.TrimSpace(c.Watch.AutoResolve) == "" {
		return "", false
	}
	r, err := model.ParseResolution(c.Watch.AutoResolve)
	if err != nil || r == model.Merge {
		return "", false
	}
	return r, true
}

// StoreRoot returns the external root with ~ expanded.
func (c *Config) StoreRoot() string {
	return util.ExpandHome(c.Store.Root)
}

// CachePath returns the cache file with ~ expanded.
func (c *Config) CachePath() string {
	return util.ExpandHome(c.Store.CachePath)
}

// BackupDir returns the backup directory with ~ expanded.
func (c *Config) BackupDir() string {
	return util.ExpandHome(c.Backup.Location)
}

// JournalPath returns the journal file with ~ expanded.
func (c *Config) JournalPath() string {
	return util.ExpandHome(c.Journal.Path)
}

// LogOptions converts the logging section into logger options.
func (c *Config) LogOptions() logging.Options {
	opts := logging.DefaultOptions()
	opts.Level = ParseLevel(c.Logging.Level)
	opts.JSON = c.Logging.JSON
	if c.Logging.File != "" {
		opts.File = &logging.FileOptions{
			Path:       util.ExpandHome(c.Logging.File),
			MaxSizeMB:  c.Logging.MaxSizeMB,
			MaxBackups: c.Logging.MaxBackups,
		}
	}
	return opts
}

// ParseLevel maps a level name to a slog level, defaulting to warn.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return logging.LevelDebug
	case "info":
		return logging.LevelInfo
	case "error":
		return logging.LevelError
	default:
		return logging.LevelWarn
	}
}

// Exists returns true if a config file exists.
func Exists() bool {
	_, err := os.Stat(FilePath())
	return err == nil
}
