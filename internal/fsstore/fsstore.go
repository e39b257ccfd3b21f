// Package fsstore exposes a directory tree as the external document store.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/klauern/docsync/internal/sync"
)

// ErrOutsideRoot is returned for document paths that escape the root.
var ErrOutsideRoot = errors.New("path escapes store root")

// Store reads and writes documents under a root directory.
type Store struct {
	fs   afero.Fs
	root string
}

var _ sync.ExternalStore = (*Store)(nil)

// New returns a store rooted at root on the OS filesystem.
func New(root string) *Store {
	return NewWithFs(afero.NewOsFs(), root)
}

// NewWithFs returns a store rooted at root on the given filesystem.
func NewWithFs(fsys afero.Fs, root string) *Store {
	return &Store{fs: fsys, root: filepath.Clean(root)}
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Fs returns the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Clean normalizes a document path to its slash-rooted form, so "/a.md"
// and "a.md" name the same document.
func Clean(docPath string) (string, error) {
	p := filepath.ToSlash(docPath)
	if p == "" {
		return "", fmt.Errorf("empty path: %w", ErrOutsideRoot)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", fmt.Errorf("%s: %w", docPath, ErrOutsideRoot)
		}
	}
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return "", fmt.Errorf("%s: %w", docPath, ErrOutsideRoot)
	}
	return cleaned, nil
}

// Resolve maps a document path to its location on the filesystem.
func (s *Store) Resolve(docPath string) (string, error) {
	p, err := Clean(docPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(p, "/"))), nil
}

// DocPath maps a filesystem location under the root back to a document path.
func (s *Store) DocPath(fsPath string) (string, error) {
	rel, err := filepath.Rel(s.root, filepath.Clean(fsPath))
	if err != nil {
		return "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", fsPath, ErrOutsideRoot)
	}
	return "/" + filepath.ToSlash(rel), nil
}

// ReadFile returns the content of a document. Missing documents yield an
// error matching sync.ErrNotFound.
func (s *Store) ReadFile(ctx context.Context, docPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := s.Resolve(docPath)
	if err != nil {
		return "", err
	}
	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", docPath, sync.ErrNotFound)
		}
		return "", fmt.Errorf("failed to read %s: %w", docPath, err)
	}
	return string(data), nil
}

// WriteFile replaces a document, creating parent directories. Content is
// written to a temp file and renamed into place.
func (s *Store) WriteFile(ctx context.Context, docPath, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.Resolve(docPath)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", docPath, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(p)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", docPath, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", docPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", docPath, err)
	}
	if err := s.fs.Rename(tmpName, p); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", docPath, err)
	}
	return nil
}

// Exists reports whether a document is present.
func (s *Store) Exists(docPath string) (bool, error) {
	p, err := s.Resolve(docPath)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, p)
}

// Stat returns file info for a document.
func (s *Store) Stat(docPath string) (os.FileInfo, error) {
	p, err := s.Resolve(docPath)
	if err != nil {
		return nil, err
	}
	return s.fs.Stat(p)
}

// Matches reports whether name has one of exts. An empty list matches everything.
func Matches(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// Walk lists document paths under the root whose extension is in exts.
// Hidden files and directories are skipped. Results are sorted.
func (s *Store) Walk(exts []string) ([]string, error) {
	var docs []string
	err := afero.Walk(s.fs, s.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		name := info.Name()
		if p != s.root && strings.HasPrefix(name, ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !Matches(name, exts) {
			return nil
		}
		doc, err := s.DocPath(p)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.root, err)
	}
	sort.Strings(docs)
	return docs, nil
}
