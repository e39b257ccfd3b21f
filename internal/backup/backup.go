// Package backup keeps copies of external documents before they are
// overwritten by a resolution.
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	stdsync "sync"
	"time"

	"github.com/spf13/afero"

	"github.com/klauern/docsync/internal/fsstore"
	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/sync"
)

const (
	// BackupDirPerm is the permission for backup directories (rwxr-x---)
	BackupDirPerm = 0o750
	// BackupFilePerm is the permission for backup files (rw-r-----)
	BackupFilePerm = 0o640
)

// Options configures backup behavior
type Options struct {
	// MaxBackups limits backups kept per document after each write (0 = unlimited).
	MaxBackups int
	// Description is recorded on every backup made by this store.
	Description string
	// Fs holds the backup directory. Defaults to the OS filesystem.
	Fs afero.Fs
}

// Store is an ExternalStore that snapshots the current content of a
// document before replacing it.
type Store struct {
	inner sync.ExternalStore
	dir   string
	opts  Options
	fs    afero.Fs
	now   func() time.Time

	mu stdsync.Mutex
}

var _ sync.ExternalStore = (*Store)(nil)

// Wrap returns a backing-up view of store. Backups and their index live in dir.
func Wrap(store sync.ExternalStore, dir string, opts Options) *Store {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Store{inner: store, dir: dir, opts: opts, fs: fsys, now: time.Now}
}

// Dir returns the backup directory.
func (s *Store) Dir() string {
	return s.dir
}

// ReadFile reads through to the wrapped store.
func (s *Store) ReadFile(ctx context.Context, path string) (string, error) {
	return s.inner.ReadFile(ctx, path)
}

// WriteFile backs up the existing document, if any, then writes content.
// A failed backup aborts the write.
func (s *Store) WriteFile(ctx context.Context, path, content string) error {
	current, err := s.inner.ReadFile(ctx, path)
	switch {
	case sync.IsNotFound(err):
		// nothing to preserve
	case err != nil:
		return fmt.Errorf("failed to read %s for backup: %w", path, err)
	case current != content:
		meta, err := s.create(path, current)
		if err != nil {
			return err
		}
		logging.Debug("backup created", logging.Path(path), "backup_id", meta.ID)
		if s.opts.MaxBackups > 0 {
			if _, err := s.Cleanup(CleanupOptions{MaxBackups: s.opts.MaxBackups, KeepAtLeastOne: true}); err != nil {
				logging.Warn("backup cleanup failed", logging.Err(err))
			}
		}
	}
	return s.inner.WriteFile(ctx, path, content)
}

func (s *Store) create(path, content string) (*Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.dir, BackupDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	if cleaned, err := fsstore.Clean(path); err == nil {
		path = cleaned
	}

	hash := sha256.Sum256([]byte(content))
	hashStr := hex.EncodeToString(hash[:])
	now := s.now()
	id := now.Format("20060102-150405.000000-") + hashStr[:8]

	index, err := loadIndex(s.fs, s.dir)
	if err != nil {
		return nil, err
	}
	if _, exists := index.Backups[id]; exists {
		id = fmt.Sprintf("%s-%d", id, len(index.Backups))
	}

	file := id + filepath.Ext(path)
	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, file), []byte(content), BackupFilePerm); err != nil {
		return nil, fmt.Errorf("failed to write backup file: %w", err)
	}

	meta := Metadata{
		ID:          id,
		Path:        path,
		BackupFile:  file,
		CreatedAt:   now,
		Hash:        hashStr,
		Size:        int64(len(content)),
		Description: s.opts.Description,
	}
	index.Backups[id] = meta
	if err := saveIndex(s.fs, s.dir, index, now); err != nil {
		return nil, err
	}
	return &meta, nil
}

// List returns backups newest first. An empty path lists every document.
func (s *Store) List(path string) ([]Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := loadIndex(s.fs, s.dir)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if cleaned, err := fsstore.Clean(path); err == nil {
			path = cleaned
		}
	}
	return index.sorted(path), nil
}

// read returns a backup's content after checking its hash.
func (s *Store) read(id string) (Metadata, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := loadIndex(s.fs, s.dir)
	if err != nil {
		return Metadata{}, "", err
	}
	meta, ok := index.Backups[id]
	if !ok {
		return Metadata{}, "", fmt.Errorf("backup %q not found", id)
	}
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, meta.BackupFile))
	if err != nil {
		return Metadata{}, "", fmt.Errorf("failed to read backup file: %w", err)
	}
	hash := sha256.Sum256(data)
	if got := hex.EncodeToString(hash[:]); got != meta.Hash {
		return Metadata{}, "", fmt.Errorf("backup file corrupted: hash mismatch (expected %s, got %s)", meta.Hash, got)
	}
	return meta, string(data), nil
}

// Verify checks that a backup file is intact.
func (s *Store) Verify(id string) error {
	_, _, err := s.read(id)
	return err
}

// Restore writes a backup's content back to its document. The content
// being replaced is itself backed up.
func (s *Store) Restore(ctx context.Context, id string) (Metadata, error) {
	meta, content, err := s.read(id)
	if err != nil {
		return Metadata{}, err
	}
	if err := s.WriteFile(ctx, meta.Path, content); err != nil {
		return Metadata{}, fmt.Errorf("failed to restore %s: %w", meta.Path, err)
	}
	logging.Info("backup restored", logging.Path(meta.Path), "backup_id", id)
	return meta, nil
}

// Delete removes a backup file and its index entry.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *Store) deleteLocked(id string) error {
	index, err := loadIndex(s.fs, s.dir)
	if err != nil {
		return err
	}
	meta, ok := index.Backups[id]
	if !ok {
		return fmt.Errorf("backup %q not found", id)
	}
	if err := s.fs.Remove(filepath.Join(s.dir, meta.BackupFile)); err != nil {
		if exists, _ := afero.Exists(s.fs, filepath.Join(s.dir, meta.BackupFile)); exists {
			return fmt.Errorf("failed to delete backup file: %w", err)
		}
	}
	delete(index.Backups, id)
	return saveIndex(s.fs, s.dir, index, s.now())
}
