package util

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the docsync home directory.
const HomeEnv = "DOCSYNC_HOME"

// HomeDir returns the user's home directory
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// DocsyncConfigPath returns the docsync home directory, ~/.docsync unless
// DOCSYNC_HOME is set.
func DocsyncConfigPath() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	return filepath.Join(HomeDir(), ".docsync")
}

// ConfigFilePath returns the default config file location.
func ConfigFilePath() string {
	return filepath.Join(DocsyncConfigPath(), "config.yaml")
}

// CachePath returns the default SQLite cache location.
func CachePath() string {
	return filepath.Join(DocsyncConfigPath(), "cache.db")
}

// BackupPath returns the default backup directory.
func BackupPath() string {
	return filepath.Join(DocsyncConfigPath(), "backups")
}

// JournalPath returns the default event journal file.
func JournalPath() string {
	return filepath.Join(DocsyncConfigPath(), "journal.jsonl")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return HomeDir()
	}
	if len(path) > 1 && path[0] == '~' && (path[1] == '/' || path[1] == filepath.Separator) {
		return filepath.Join(HomeDir(), path[2:])
	}
	return path
}
