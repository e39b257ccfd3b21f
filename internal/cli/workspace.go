package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/klauern/docsync/internal/backup"
	"github.com/klauern/docsync/internal/cache"
	"github.com/klauern/docsync/internal/config"
	"github.com/klauern/docsync/internal/fsstore"
	"github.com/klauern/docsync/internal/journal"
	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/model"
	docsync "github.com/klauern/docsync/internal/sync"
	"github.com/klauern/docsync/internal/watch"
)

// workspace holds the stores and engine a command operates on.
type workspace struct {
	cfg     *config.Config
	lock    *cache.Lock
	cache   *cache.Cache
	store   *fsstore.Store
	backups *backup.Store // nil when backups are disabled
	engine  *docsync.Engine
	journal *journal.Journal

	unsubscribe func()
}

// openWorkspace opens the cache, connects the engine to the external
// directory and attaches the journal. Mutating commands also take the
// workspace lock so two syncs never interleave.
func openWorkspace(ctx context.Context, mutating bool) (*workspace, error) {
	cfg := configFrom(ctx)
	ws := &workspace{cfg: cfg}

	if mutating {
		lock, err := cache.AcquireLock(filepath.Dir(cfg.CachePath()))
		if err != nil {
			return nil, err
		}
		ws.lock = lock
	}

	c, err := cache.Open(cfg.CachePath())
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	ws.cache = c

	root := cfg.StoreRoot()
	info, err := os.Stat(root)
	if err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("external root %s: %w", root, err)
	}
	if !info.IsDir() {
		_ = ws.Close()
		return nil, fmt.Errorf("external root %s is not a directory", root)
	}
	ws.store = fsstore.New(root)

	var external docsync.ExternalStore = ws.store
	if cfg.Backup.Enabled {
		ws.backups = backup.Wrap(ws.store, cfg.BackupDir(), backup.Options{
			MaxBackups:  cfg.Backup.MaxBackups,
			Description: "before resolution",
		})
		external = ws.backups
	}

	ws.engine = docsync.New(c,
		docsync.WithStoreTimeout(cfg.Sync.StoreTimeout),
		docsync.WithLogger(logging.WithContext(ctx)),
	)
	ws.engine.Connect(external)

	if cfg.Journal.Enabled {
		j, err := journal.New(journal.Config{
			Path:       cfg.JournalPath(),
			MaxSizeMB:  cfg.Journal.MaxSizeMB,
			MaxBackups: cfg.Journal.MaxBackups,
			MaxAgeDays: cfg.Journal.MaxAgeDays,
			Compress:   cfg.Journal.Compress,
		})
		if err != nil {
			_ = ws.Close()
			return nil, err
		}
		ws.journal = j
		ws.unsubscribe = j.Subscribe(ws.engine)
	}

	logging.Debug("workspace opened",
		logging.Path(root),
		"cache", c.Path(),
		"mutating", mutating,
	)
	return ws, nil
}

// Close releases everything openWorkspace acquired, in reverse order.
func (ws *workspace) Close() error {
	var errs []error
	if ws.unsubscribe != nil {
		ws.unsubscribe()
	}
	if ws.journal != nil {
		errs = append(errs, ws.journal.Close())
	}
	if ws.engine != nil {
		ws.engine.Disconnect()
	}
	if ws.cache != nil {
		errs = append(errs, ws.cache.Close())
	}
	if ws.lock != nil {
		errs = append(errs, ws.lock.Release())
	}
	return errors.Join(errs...)
}

// withWorkspace opens a workspace for the duration of fn.
func withWorkspace(ctx context.Context, mutating bool, fn func(ws *workspace) error) (err error) {
	ws, err := openWorkspace(ctx, mutating)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ws)
}

// scan flags documents changed in the external directory since their last
// sync, so detection sees edits made while no watcher was running.
func (ws *workspace) scan(ctx context.Context) error {
	docs, err := ws.cache.List(ctx)
	if err != nil {
		return err
	}
	tracked := make([]watch.Tracked, len(docs))
	for i, d := range docs {
		tracked[i] = watch.Tracked{Path: d.Path, SyncedAt: d.SyncedAt, Flagged: d.ExternallyModified}
	}
	flagged, err := watch.Scan(ctx, ws.store, tracked, ws.cache)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", ws.store.Root(), err)
	}
	if len(flagged) > 0 {
		logging.Info("external changes found", logging.Count(len(flagged)))
	}
	return nil
}

// detect scans unless disabled, then runs detection over paths.
func (ws *workspace) detect(ctx context.Context, noScan bool, paths []string) (model.DetectionResult, error) {
	if !noScan {
		if err := ws.scan(ctx); err != nil {
			return model.DetectionResult{}, err
		}
	}
	return ws.engine.DetectConflicts(ctx, paths...), nil
}

func noScanFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "no-scan",
		Usage: "Skip checking the external directory for changes made since the last sync",
	}
}
