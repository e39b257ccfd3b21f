package backup

import (
	"fmt"
	"time"
)

// CleanupOptions configures backup cleanup behavior
type CleanupOptions struct {
	// MaxBackups limits the number of backups kept per document (0 = unlimited)
	MaxBackups int

	// MaxAge is the maximum age of backups to keep (0 = unlimited)
	MaxAge time.Duration

	// KeepAtLeastOne keeps the newest backup of each document regardless of age
	KeepAtLeastOne bool

	// DryRun reports what would be deleted without deleting
	DryRun bool
}

// DefaultCleanupOptions returns sensible defaults for cleanup
func DefaultCleanupOptions() CleanupOptions {
	return CleanupOptions{
		MaxBackups:     10,
		MaxAge:         30 * 24 * time.Hour,
		KeepAtLeastOne: true,
	}
}

// Cleanup removes old backups and returns the deleted IDs.
func (s *Store) Cleanup(opts CleanupOptions) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := loadIndex(s.fs, s.dir)
	if err != nil {
		return nil, err
	}

	paths := make(map[string]struct{})
	for _, b := range index.Backups {
		paths[b.Path] = struct{}{}
	}

	now := s.now()
	var toDelete []string
	for path := range paths {
		var doomed []string
		group := index.sorted(path)
		for i, b := range group {
			tooOld := opts.MaxAge > 0 && now.Sub(b.CreatedAt) > opts.MaxAge
			tooMany := opts.MaxBackups > 0 && i >= opts.MaxBackups
			if tooOld || tooMany {
				doomed = append(doomed, b.ID)
			}
		}
		// doomed is newest first; sparing the newest keeps one backup.
		if opts.KeepAtLeastOne && len(doomed) == len(group) && len(doomed) > 0 {
			doomed = doomed[1:]
		}
		toDelete = append(toDelete, doomed...)
	}

	if opts.DryRun {
		return toDelete, nil
	}

	var deleted []string
	for _, id := range toDelete {
		if err := s.deleteLocked(id); err != nil {
			return deleted, fmt.Errorf("failed to delete backup %q: %w", id, err)
		}
		deleted = append(deleted, id)
	}
	return deleted, nil
}

// Stats contains statistics about backups
type Stats struct {
	TotalBackups int
	TotalSize    int64
	Documents    int
	OldestBackup time.Time
	NewestBackup time.Time
}

// Stats summarizes the backup directory.
func (s *Store) Stats() (*Stats, error) {
	backups, err := s.List("")
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalBackups: len(backups)}
	docs := make(map[string]struct{})
	for _, b := range backups {
		stats.TotalSize += b.Size
		docs[b.Path] = struct{}{}
		if stats.OldestBackup.IsZero() || b.CreatedAt.Before(stats.OldestBackup) {
			stats.OldestBackup = b.CreatedAt
		}
		if b.CreatedAt.After(stats.NewestBackup) {
			stats.NewestBackup = b.CreatedAt
		}
	}
	stats.Documents = len(docs)
	return stats, nil
}
