// Package model defines the data shapes shared by the docsync engine and its callers.
package model

import "time"

// ConflictStatus is the lifecycle state of a conflict.
type ConflictStatus string

const (
	// StatusPending marks a conflict that still needs a decision.
	StatusPending ConflictStatus = "pending"
	// StatusResolved marks a conflict that had a resolution applied to both stores.
	StatusResolved ConflictStatus = "resolved"
	// StatusSkipped marks a conflict that was dropped without touching either store.
	StatusSkipped ConflictStatus = "skipped"
)

// IsTerminal reports whether the status can no longer change.
func (s ConflictStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusSkipped
}

// Conflict is one document path whose local and external copies diverged.
type Conflict struct {
	ID   string `json:"id"`
	Path string `json:"path"`

	// Snapshots captured at detection time.
	LocalContent    string `json:"local_content"`
	ExternalContent string `json:"external_content"`

	LocalModifiedAt time.Time `json:"local_modified_at"`
	// ExternalModifiedAt is not obtained from the external store yet and stays nil.
	ExternalModifiedAt *time.Time `json:"external_modified_at,omitempty"`
	DetectedAt         time.Time  `json:"detected_at"`

	Status     ConflictStatus `json:"status"`
	Resolution Resolution     `json:"resolution,omitempty"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
}

// IsPending returns true while no terminal transition has happened.
func (c *Conflict) IsPending() bool {
	return c.Status == StatusPending
}

// ExternallyDeleted reports whether the external side was missing at detection time.
// A missing external file is captured as empty content.
func (c *Conflict) ExternallyDeleted() bool {
	return c.ExternalContent == ""
}

// ConflictHistoryEntry is the retained audit record of a successful resolution.
type ConflictHistoryEntry struct {
	ConflictID      string     `json:"conflict_id"`
	Path            string     `json:"path"`
	Resolution      Resolution `json:"resolution"`
	LocalPreview    string     `json:"local_preview"`
	ExternalPreview string     `json:"external_preview"`
	ResolvedAt      time.Time  `json:"resolved_at"`
}
