// Package cache provides the SQLite-backed local document cache.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/ncruces/go-sqlite3/driver" // registers the "sqlite3" driver
	_ "github.com/ncruces/go-sqlite3/embed"  // embeds the SQLite build

	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/sync"
	"github.com/klauern/docsync/internal/util"
)

// ErrNotCached is returned when a path has no cached document.
var ErrNotCached = errors.New("document not cached")

// LockFile is the name of the workspace lock file.
const LockFile = ".docsync.lock"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	path                TEXT PRIMARY KEY,
	content             TEXT NOT NULL DEFAULT '',
	dirty               INTEGER NOT NULL DEFAULT 0,
	externally_modified INTEGER NOT NULL DEFAULT 0,
	last_modified       TEXT NOT NULL,
	synced_at           TEXT,
	synced_hash         TEXT
);
CREATE INDEX IF NOT EXISTS idx_documents_dirty ON documents(dirty);
`

// Document is a cached document with its sync flags.
type Document struct {
	Path               string     `json:"path"`
	Dirty              bool       `json:"dirty"`
	ExternallyModified bool       `json:"externally_modified"`
	LastModified       time.Time  `json:"last_modified"`
	SyncedAt           *time.Time `json:"synced_at,omitempty"`
	Size               int        `json:"size"`
}

// Cache is the local document store. It implements sync.LocalStore.
type Cache struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

var _ sync.LocalStore = (*Cache)(nil)

// Open opens or creates the cache database at path. An empty path uses
// the default location under the docsync home directory.
//
// The caller must call Close when done.
func Open(path string) (*Cache, error) {
	if path == "" {
		path = util.CachePath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := migrate(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logging.Debug("cache opened", logging.Path(path))
	return &Cache{conn: conn, path: path, now: time.Now}, nil
}

// migrate adds columns missing from caches created by older versions.
func migrate(conn *sql.DB) error {
	rows, err := conn.Query("SELECT name FROM pragma_table_info('documents')")
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	columns := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return err
		}
		columns[name] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if !columns["synced_hash"] {
		if _, err := conn.Exec("ALTER TABLE documents ADD COLUMN synced_hash TEXT"); err != nil {
			return fmt.Errorf("failed to add synced_hash: %w", err)
		}
	}
	return nil
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Path returns the database file location.
func (c *Cache) Path() string {
	return c.path
}

// Close checkpoints the WAL and closes the database.
func (c *Cache) Close() error {
	if c.conn == nil {
		return nil
	}
	if _, err := c.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		logging.Warn("failed to checkpoint WAL", logging.Err(err))
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close cache: %w", err)
	}
	c.conn = nil
	return nil
}

// normalize maps "/a.md" and "a.md" to the same key.
func normalize(path string) string {
	return "/" + strings.TrimLeft(filepath.ToSlash(path), "/")
}

func (c *Cache) flag(ctx context.Context, column, path string) (bool, error) {
	var v int
	err := c.conn.QueryRowContext(ctx,
		"SELECT "+column+" FROM documents WHERE path = ?", normalize(path)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s for %s: %w", column, path, err)
	}
	return v != 0, nil
}

// IsDirty reports whether path was written locally since it was last synced.
func (c *Cache) IsDirty(ctx context.Context, path string) (bool, error) {
	return c.flag(ctx, "dirty", path)
}

// IsExternallyModified reports whether the external copy of path changed
// since it was last synced.
func (c *Cache) IsExternallyModified(ctx context.Context, path string) (bool, error) {
	return c.flag(ctx, "externally_modified", path)
}

// ReadFile returns the cached content of path.
func (c *Cache) ReadFile(ctx context.Context, path string) (string, error) {
	var content string
	err := c.conn.QueryRowContext(ctx,
		"SELECT content FROM documents WHERE path = ?", normalize(path)).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", path, ErrNotCached)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return content, nil
}

// WriteFile stores new local content and marks path dirty.
func (c *Cache) WriteFile(ctx context.Context, path, content string) error {
	_, err := c.conn.ExecContext(ctx, `
		INSERT INTO documents (path, content, dirty, last_modified)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(path) DO UPDATE SET
			content = excluded.content,
			dirty = 1,
			last_modified = excluded.last_modified
	`, normalize(path), content, formatTime(c.now()))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Import stores content as a clean copy of the external file.
func (c *Cache) Import(ctx context.Context, path, content string) error {
	now := formatTime(c.now())
	_, err := c.conn.ExecContext(ctx, `
		INSERT INTO documents (path, content, dirty, externally_modified, last_modified, synced_at, synced_hash)
		VALUES (?, ?, 0, 0, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content = excluded.content,
			dirty = 0,
			externally_modified = 0,
			last_modified = excluded.last_modified,
			synced_at = excluded.synced_at,
			synced_hash = excluded.synced_hash
	`, normalize(path), content, now, now, contentHash(content))
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}
	return nil
}

// MarkSynced clears both flags for path and remembers the cached content
// as the version both sides agree on.
func (c *Cache) MarkSynced(ctx context.Context, path string) error {
	var content string
	err := c.conn.QueryRowContext(ctx,
		"SELECT content FROM documents WHERE path = ?", normalize(path)).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark %s synced: %w", path, err)
	}

	_, err = c.conn.ExecContext(ctx, `
		UPDATE documents SET dirty = 0, externally_modified = 0, synced_at = ?, synced_hash = ?
		WHERE path = ?
	`, formatTime(c.now()), contentHash(content), normalize(path))
	if err != nil {
		return fmt.Errorf("failed to mark %s synced: %w", path, err)
	}
	return nil
}

// MatchesSynced reports whether content is what path held when it was last
// synced. Untracked and never-synced paths report false.
func (c *Cache) MatchesSynced(ctx context.Context, path, content string) (bool, error) {
	var hash sql.NullString
	err := c.conn.QueryRowContext(ctx,
		"SELECT synced_hash FROM documents WHERE path = ?", normalize(path)).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read sync state for %s: %w", path, err)
	}
	return hash.Valid && hash.String == contentHash(content), nil
}

// MarkExternallyModified flags a cached path as changed externally. It
// reports false when path is not cached.
func (c *Cache) MarkExternallyModified(ctx context.Context, path string) (bool, error) {
	res, err := c.conn.ExecContext(ctx,
		"UPDATE documents SET externally_modified = 1 WHERE path = ?", normalize(path))
	if err != nil {
		return false, fmt.Errorf("failed to flag %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetFileMetadata returns nil for paths that are not cached.
func (c *Cache) GetFileMetadata(ctx context.Context, path string) (*sync.FileMetadata, error) {
	var lastModified string
	err := c.conn.QueryRowContext(ctx,
		"SELECT last_modified FROM documents WHERE path = ?", normalize(path)).Scan(&lastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata for %s: %w", path, err)
	}
	t, err := parseTime(lastModified)
	if err != nil {
		return nil, nil
	}
	return &sync.FileMetadata{LastModified: t}, nil
}

// GetDirtyFiles lists dirty paths in path order.
func (c *Cache) GetDirtyFiles(ctx context.Context) ([]string, error) {
	rows, err := c.conn.QueryContext(ctx,
		"SELECT path FROM documents WHERE dirty = 1 ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to list dirty files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// List returns every cached document in path order.
func (c *Cache) List(ctx context.Context) ([]Document, error) {
	rows, err := c.conn.QueryContext(ctx, `
		SELECT path, dirty, externally_modified, last_modified, synced_at, length(content)
		FROM documents ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		var (
			d            Document
			dirty, ext   int
			lastModified string
			syncedAt     sql.NullString
		)
		if err := rows.Scan(&d.Path, &dirty, &ext, &lastModified, &syncedAt, &d.Size); err != nil {
			return nil, err
		}
		d.Dirty = dirty != 0
		d.ExternallyModified = ext != 0
		if t, err := parseTime(lastModified); err == nil {
			d.LastModified = t
		}
		if syncedAt.Valid {
			if t, err := parseTime(syncedAt.String); err == nil {
				d.SyncedAt = &t
			}
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Remove deletes path from the cache.
func (c *Cache) Remove(ctx context.Context, path string) error {
	if _, err := c.conn.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", normalize(path)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Lock is a held workspace lock.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the workspace lock in dir without waiting.
func AcquireLock(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	fl := flock.New(filepath.Join(dir, LockFile))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring sync lock: %w", err)
	}
	if !locked {
		return nil, errors.New("another sync is in progress")
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
