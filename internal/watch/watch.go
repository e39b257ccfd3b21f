// Package watch flags cached documents as externally modified when their
// files change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/klauern/docsync/internal/fsstore"
	"github.com/klauern/docsync/internal/logging"
)

// DefaultDebounce batches rapid writes to the same file.
const DefaultDebounce = 100 * time.Millisecond

// Flagger records that a document changed externally. MarkExternallyModified
// reports false when the document is not tracked. MatchesSynced reports
// whether content is the version last synced, which is what the file holds
// right after a resolution wrote it.
type Flagger interface {
	MarkExternallyModified(ctx context.Context, path string) (bool, error)
	MatchesSynced(ctx context.Context, path, content string) (bool, error)
}

// Config configures a Watcher.
type Config struct {
	// Extensions limits which files are watched. Empty watches every file.
	Extensions []string
	// Debounce is how long a file must be quiet before it is flagged.
	Debounce time.Duration
	// OnChange is called with the document paths flagged in each batch.
	OnChange func(ctx context.Context, paths []string)
}

// Watcher watches the root of an external store recursively.
type Watcher struct {
	store   *fsstore.Store
	flagger Flagger
	cfg     Config

	mu      sync.Mutex
	running bool
	fsw     *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	queueMu sync.Mutex
	queue   map[string]time.Time // file path -> last event
}

// New creates a watcher. It does nothing until Start is called.
func New(store *fsstore.Store, flagger Flagger, cfg Config) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Watcher{
		store:   store,
		flagger: flagger,
		cfg:     cfg,
		queue:   make(map[string]time.Time),
	}
}

// Start begins watching. It returns once the directory tree is registered.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := addTree(fsw, w.store.Root()); err != nil {
		_ = fsw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.running = true

	w.wg.Add(2)
	go w.watchEvents(ctx)
	go w.processQueue(ctx)

	logging.Info("watching for external changes", logging.Path(w.store.Root()))
	return nil
}

// Stop stops watching and waits for the event loops to exit. Pending
// changes that have not been flagged yet are dropped.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cancel, fsw := w.cancel, w.fsw
	w.mu.Unlock()

	cancel()
	err := fsw.Close()
	w.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// addTree watches dir and every non-hidden directory below it.
func addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (w *Watcher) watchEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("watcher error", logging.Err(err))
		}
	}
}

// handle queues relevant file events and registers new directories.
func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if isHidden(filepath.Base(event.Name)) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addTree(w.fsw, event.Name); err != nil {
				logging.Warn("failed to watch new directory", logging.Path(event.Name), logging.Err(err))
			}
			return
		}
	}

	if !fsstore.Matches(event.Name, w.cfg.Extensions) {
		return
	}
	logging.Debug("file event", logging.Path(event.Name), logging.Operation(event.Op.String()))
	w.enqueue(event.Name, time.Now())
}

func (w *Watcher) enqueue(path string, at time.Time) {
	w.queueMu.Lock()
	defer w.queueMu.Unlock()
	w.queue[path] = at
}

func (w *Watcher) processQueue(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

// due removes and returns the files that have been quiet for the debounce interval.
func (w *Watcher) due(now time.Time) []string {
	w.queueMu.Lock()
	defer w.queueMu.Unlock()

	var ready []string
	for p, at := range w.queue {
		if now.Sub(at) < w.cfg.Debounce {
			continue
		}
		ready = append(ready, p)
		delete(w.queue, p)
	}
	sort.Strings(ready)
	return ready
}

// flush flags every due file and reports the batch to OnChange.
func (w *Watcher) flush(ctx context.Context, now time.Time) []string {
	var flagged []string
	for _, p := range w.due(now) {
		doc, err := w.store.DocPath(p)
		if err != nil {
			continue
		}
		if matchesSynced(ctx, w.store, w.flagger, doc) {
			logging.Debug("ignoring change matching last sync", logging.Path(doc))
			continue
		}
		ok, err := w.flagger.MarkExternallyModified(ctx, doc)
		if err != nil {
			logging.Error("failed to flag external change", logging.Path(doc), logging.Err(err))
			continue
		}
		if !ok {
			logging.Debug("ignoring change to untracked document", logging.Path(doc))
			continue
		}
		flagged = append(flagged, doc)
	}

	if len(flagged) > 0 {
		logging.Info("external changes detected", logging.Count(len(flagged)))
		if w.cfg.OnChange != nil {
			w.cfg.OnChange(ctx, flagged)
		}
	}
	return flagged
}

// matchesSynced reports whether the external file of doc still holds the
// content recorded at its last sync. Missing or unreadable files never match.
func matchesSynced(ctx context.Context, store *fsstore.Store, flagger Flagger, doc string) bool {
	content, err := store.ReadFile(ctx, doc)
	if err != nil {
		return false
	}
	same, err := flagger.MatchesSynced(ctx, doc, content)
	if err != nil {
		logging.Warn("failed to compare with last sync", logging.Path(doc), logging.Err(err))
		return false
	}
	return same
}
