package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
)

// Metadata describes a single backup.
type Metadata struct {
	ID          string    `json:"id"`          // timestamp plus content hash prefix
	Path        string    `json:"path"`        // document path that was overwritten
	BackupFile  string    `json:"backup_file"` // file name inside the backup directory
	CreatedAt   time.Time `json:"created_at"`
	Hash        string    `json:"hash"` // SHA256 of content
	Size        int64     `json:"size"`
	Description string    `json:"description,omitempty"`
}

// Index lists every backup in a backup directory.
type Index struct {
	Version string              `json:"version"`
	Updated time.Time           `json:"updated"`
	Backups map[string]Metadata `json:"backups"` // keyed by backup ID
}

const (
	// IndexVersion is the current version of the backup index format
	IndexVersion = "1.0"
	// IndexFilename is the name of the index file
	IndexFilename = "index.json"
)

func loadIndex(fsys afero.Fs, dir string) (*Index, error) {
	data, err := afero.ReadFile(fsys, filepath.Join(dir, IndexFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return &Index{Version: IndexVersion, Backups: make(map[string]Metadata)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse index file: %w", err)
	}
	if index.Backups == nil {
		index.Backups = make(map[string]Metadata)
	}
	return &index, nil
}

func saveIndex(fsys afero.Fs, dir string, index *Index, now time.Time) error {
	if err := fsys.MkdirAll(dir, BackupDirPerm); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	index.Updated = now

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	if err := afero.WriteFile(fsys, filepath.Join(dir, IndexFilename), data, BackupFilePerm); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	return nil
}

// sorted returns backups newest first, optionally limited to one document path.
func (idx *Index) sorted(path string) []Metadata {
	backups := make([]Metadata, 0, len(idx.Backups))
	for _, b := range idx.Backups {
		if path == "" || b.Path == path {
			backups = append(backups, b)
		}
	}
	sort.Slice(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].ID > backups[j].ID
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups
}
