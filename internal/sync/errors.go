package sync

import (
	"errors"
	"fmt"
)

//nolint:staticcheck // ST1005: these messages are reported verbatim in results
var (
	// ErrNotFound is returned by an ExternalStore when a path does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotConnected means no external store is attached.
	ErrNotConnected = errors.New("Not connected to external store")

	// ErrConflictNotFound means the id is not in the pending set.
	ErrConflictNotFound = errors.New("Conflict not found")

	// ErrMergedContentRequired means a merge was requested without content.
	ErrMergedContentRequired = errors.New("Merged content required for merge resolution")

	// ErrMergeAutoResolve means resolve-all was asked to merge.
	ErrMergeAutoResolve = errors.New("Cannot auto-resolve with merge strategy")

	// ErrUnknownResolution means the resolution strategy is not recognized.
	ErrUnknownResolution = errors.New("Unknown resolution strategy")
)

// Op names the engine step that failed.
type Op string

const (
	OpCheck         Op = "check"
	OpReadLocal     Op = "read_local"
	OpReadExternal  Op = "read_external"
	OpWriteLocal    Op = "write_local"
	OpWriteExternal Op = "write_external"
	OpMarkSynced    Op = "mark_synced"
	OpMetadata      Op = "metadata"
	OpListDirty     Op = "list_dirty"
)

// Error wraps a store failure with the step and path it happened on.
type Error struct {
	Op   Op
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapErr(op Op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Err: err}
}

// IsNotFound reports whether err means a missing external path.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ErrorMessage converts any error or recovered panic value into a display string.
func ErrorMessage(v any) string {
	switch e := v.(type) {
	case nil:
		return "Unknown error"
	case error:
		return e.Error()
	case string:
		return e
	case fmt.Stringer:
		return e.String()
	default:
		return fmt.Sprint(e)
	}
}
