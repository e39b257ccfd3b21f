package sync

import (
	"context"
	"fmt"

	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/model"
)

// DetectConflicts checks each path for divergence between the local cache
// and the external store. With no paths it checks every dirty path.
//
// Failures are reported in the result, never returned: a missing external
// store yields a single aggregate error, and a failing path is recorded
// without stopping the rest of the batch.
func (e *Engine) DetectConflicts(ctx context.Context, paths ...string) model.DetectionResult {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	external := e.externalStore()
	if external == nil {
		e.logger.Warn("detection requested without external store")
		return model.DetectionResult{
			Success:      false,
			Conflicts:    []model.Conflict{},
			CheckedPaths: paths,
			Errors:       []model.PathError{{Error: ErrNotConnected.Error()}},
		}
	}

	defer logging.Timer("detect_conflicts")()

	if len(paths) == 0 {
		var dirty []string
		err := e.storeCall(ctx, func(ctx context.Context) error {
			var err error
			dirty, err = e.local.GetDirtyFiles(ctx)
			return err
		})
		if err != nil {
			err = wrapErr(OpListDirty, "", err)
			msg := ErrorMessage(err)
			e.logger.Error("failed to list dirty files", logging.Err(err))
			e.emit(model.ErrorEvent{Message: msg})
			return model.DetectionResult{
				Success:   false,
				Conflicts: []model.Conflict{},
				Errors:    []model.PathError{{Error: msg}},
			}
		}
		paths = dirty
	}

	checked := append([]string(nil), paths...)
	e.emit(model.DetectionStarted{Paths: checked})

	result := model.DetectionResult{
		Conflicts:    []model.Conflict{},
		CheckedPaths: checked,
		Errors:       []model.PathError{},
	}

	for _, path := range checked {
		c, err := e.safeCheck(ctx, external, path)
		if err != nil {
			msg := ErrorMessage(err)
			e.logger.Warn("conflict check failed", logging.Path(path), logging.Err(err))
			result.Errors = append(result.Errors, model.PathError{Path: path, Error: msg})
			e.emit(model.ErrorEvent{Path: path, Message: msg})
			continue
		}
		if c == nil {
			continue
		}
		e.pending.add(c)
		result.Conflicts = append(result.Conflicts, *c)
		e.logger.Info("conflict detected", logging.Path(path), logging.ConflictID(c.ID))
		e.emit(model.ConflictDetected{Conflict: *c})
	}

	result.Success = len(result.Errors) == 0
	e.logger.Debug("detection completed",
		logging.Count(len(result.Conflicts)),
		"checked", len(checked),
		"errors", len(result.Errors),
	)
	e.emit(model.DetectionCompleted{Result: result})
	return result
}

// safeCheck runs checkForConflict, turning a store panic into an error.
func (e *Engine) safeCheck(ctx context.Context, external ExternalStore, path string) (c *model.Conflict, err error) {
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = wrapErr(OpCheck, path, fmt.Errorf("%s", ErrorMessage(r)))
		}
	}()
	return e.checkForConflict(ctx, external, path)
}

// checkForConflict returns a new pending conflict for path, or nil when the
// two sides agree or only one side changed.
func (e *Engine) checkForConflict(ctx context.Context, external ExternalStore, path string) (*model.Conflict, error) {
	var dirty, extModified bool
	if err := e.storeCall(ctx, func(ctx context.Context) error {
		var err error
		dirty, err = e.local.IsDirty(ctx, path)
		return err
	}); err != nil {
		return nil, wrapErr(OpCheck, path, err)
	}
	if !dirty {
		return nil, nil
	}

	if err := e.storeCall(ctx, func(ctx context.Context) error {
		var err error
		extModified, err = e.local.IsExternallyModified(ctx, path)
		return err
	}); err != nil {
		return nil, wrapErr(OpCheck, path, err)
	}
	if !extModified {
		return nil, nil
	}

	var localContent, externalContent string
	if err := e.storeCall(ctx, func(ctx context.Context) error {
		var err error
		localContent, err = e.local.ReadFile(ctx, path)
		return err
	}); err != nil {
		return nil, wrapErr(OpReadLocal, path, err)
	}

	if err := e.storeCall(ctx, func(ctx context.Context) error {
		var err error
		externalContent, err = external.ReadFile(ctx, path)
		return err
	}); err != nil {
		if !IsNotFound(err) {
			return nil, wrapErr(OpReadExternal, path, err)
		}
		// Missing externally means deleted externally.
		externalContent = ""
	}

	if localContent == externalContent {
		if err := e.storeCall(ctx, func(ctx context.Context) error {
			return e.local.MarkSynced(ctx, path)
		}); err != nil {
			return nil, wrapErr(OpMarkSynced, path, err)
		}
		e.logger.Debug("contents converged, marked synced", logging.Path(path))
		return nil, nil
	}

	now := e.now()
	localModified := now
	var meta *FileMetadata
	if err := e.storeCall(ctx, func(ctx context.Context) error {
		var err error
		meta, err = e.local.GetFileMetadata(ctx, path)
		return err
	}); err != nil {
		return nil, wrapErr(OpMetadata, path, err)
	}
	if meta != nil && !meta.LastModified.IsZero() {
		localModified = meta.LastModified
	}

	return &model.Conflict{
		ID:                 e.newID(),
		Path:               path,
		LocalContent:       localContent,
		ExternalContent:    externalContent,
		LocalModifiedAt:    localModified,
		ExternalModifiedAt: nil,
		DetectedAt:         now,
		Status:             model.StatusPending,
	}, nil
}
