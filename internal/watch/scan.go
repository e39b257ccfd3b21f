package watch

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/klauern/docsync/internal/fsstore"
	"github.com/klauern/docsync/internal/logging"
)

// Tracked is a cached document as seen by Scan.
type Tracked struct {
	Path string
	// SyncedAt is when both copies last matched; nil if never.
	SyncedAt *time.Time
	// Flagged documents are already marked externally modified.
	Flagged bool
}

// Scan flags documents whose external file changed while no watcher was
// running: the file is newer than the last sync, or it was removed after
// one. Documents never synced are flagged when an external file exists.
// A newer file whose content equals the last synced version is not flagged.
// It returns the paths it flagged.
func Scan(ctx context.Context, store *fsstore.Store, docs []Tracked, flagger Flagger) ([]string, error) {
	var flagged []string
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return flagged, err
		}
		if d.Flagged {
			continue
		}

		changed, err := changedSince(store, d)
		if err != nil {
			logging.Debug("scan skipped document", logging.Path(d.Path), logging.Err(err))
			continue
		}
		if !changed || matchesSynced(ctx, store, flagger, d.Path) {
			continue
		}

		ok, err := flagger.MarkExternallyModified(ctx, d.Path)
		if err != nil {
			return flagged, err
		}
		if ok {
			flagged = append(flagged, d.Path)
		}
	}
	logging.Debug("scan finished", logging.Count(len(flagged)))
	return flagged, nil
}

func changedSince(store *fsstore.Store, d Tracked) (bool, error) {
	info, err := store.Stat(d.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return d.SyncedAt != nil, nil
	case err != nil:
		return false, err
	case d.SyncedAt == nil:
		return true, nil
	default:
		return info.ModTime().After(*d.SyncedAt), nil
	}
}
