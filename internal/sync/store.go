package sync

import (
	"context"
	"time"
)

// FileMetadata describes a cached document.
type FileMetadata struct {
	LastModified time.Time
}

// LocalStore is the fast local cache of documents.
//
// Implementations track a dirty flag and an externally-modified flag per path;
// MarkSynced clears both.
type LocalStore interface {
	IsDirty(ctx context.Context, path string) (bool, error)
	IsExternallyModified(ctx context.Context, path string) (bool, error)
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string) error
	MarkSynced(ctx context.Context, path string) error
	// GetFileMetadata returns nil without error when no metadata is available.
	GetFileMetadata(ctx context.Context, path string) (*FileMetadata, error)
	GetDirtyFiles(ctx context.Context) ([]string, error)
}

// ExternalStore is the authoritative copy of the documents.
//
// ReadFile must return an error matching ErrNotFound (via errors.Is) when the
// path does not exist.
type ExternalStore interface {
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string) error
}
