package model

import (
	"fmt"
	"strings"
)

// Resolution selects which content becomes authoritative on both sides.
type Resolution string

const (
	// KeepLocal pushes the local snapshot to the external store.
	KeepLocal Resolution = "keepLocal"
	// KeepExternal pulls the external snapshot into the local cache.
	KeepExternal Resolution = "keepExternal"
	// Merge writes caller supplied merged content to both sides.
	Merge Resolution = "merge"
)

// IsValid returns true if the resolution is recognized.
func (r Resolution) IsValid() bool {
	switch r {
	case KeepLocal, KeepExternal, Merge:
		return true
	default:
		return false
	}
}

// AllResolutions returns every supported resolution strategy.
func AllResolutions() []Resolution {
	return []Resolution{KeepLocal, KeepExternal, Merge}
}

// String returns the string representation of the resolution.
func (r Resolution) String() string {
	return string(r)
}

// Description returns a human-readable description of the resolution.
func (r Resolution) Description() string {
	switch r {
	case KeepLocal:
		return "Overwrite the external file with the local copy"
	case KeepExternal:
		return "Replace the local copy with the external file"
	case Merge:
		return "Write supplied merged content to both sides"
	default:
		return "Unknown resolution"
	}
}

// ParseResolution converts a user supplied string into a Resolution.
// Matching ignores case, dashes and underscores, so "keep-local" and "KEEP_LOCAL" work.
// The short forms "local" and "external" are accepted as well.
func ParseResolution(s string) (Resolution, error) {
	normalized := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.TrimSpace(s)))
	switch normalized {
	case "keeplocal", "local":
		return KeepLocal, nil
	case "keepexternal", "external":
		return KeepExternal, nil
	case "merge", "merged":
		return Merge, nil
	default:
		return "", fmt.Errorf("unknown resolution %q (valid: %s, %s, %s)", s, KeepLocal, KeepExternal, Merge)
	}
}
