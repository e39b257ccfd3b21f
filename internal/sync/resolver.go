package sync

import (
	"context"
	"fmt"

	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/model"
)

type resolveOptions struct {
	merged    string
	hasMerged bool
}

// ResolveOption configures a single resolution.
type ResolveOption func(*resolveOptions)

// WithMergedContent supplies the content written to both sides for a merge.
// An empty string is valid merged content.
func WithMergedContent(content string) ResolveOption {
	return func(o *resolveOptions) {
		o.merged = content
		o.hasMerged = true
	}
}

// ResolveConflict applies res to the pending conflict id.
//
// On success the conflict is recorded in history and leaves the pending set.
// On failure the conflict stays pending; writes that already succeeded are
// not rolled back.
func (e *Engine) ResolveConflict(ctx context.Context, id string, res model.Resolution, opts ...ResolveOption) model.ResolutionResult {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return e.resolveLocked(ctx, id, res, opts...)
}

func (e *Engine) resolveLocked(ctx context.Context, id string, res model.Resolution, opts ...ResolveOption) model.ResolutionResult {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}

	c, ok := e.pending.get(id)
	if !ok {
		return model.ResolutionResult{
			Success:  false,
			Conflict: model.Conflict{ID: id},
			Error:    ErrConflictNotFound.Error(),
		}
	}

	if !res.IsValid() {
		return model.ResolutionResult{Success: false, Conflict: c, Error: ErrUnknownResolution.Error()}
	}
	if res == model.Merge && !o.hasMerged {
		return model.ResolutionResult{Success: false, Conflict: c, Error: ErrMergedContentRequired.Error()}
	}

	if err := e.safeApply(ctx, c, res, o.merged); err != nil {
		msg := ErrorMessage(err)
		e.logger.Error("resolution failed",
			logging.ConflictID(c.ID),
			logging.Path(c.Path),
			logging.Resolution(res.String()),
			logging.Err(err),
		)
		e.emit(model.ErrorEvent{Path: c.Path, ConflictID: c.ID, Message: msg})
		return model.ResolutionResult{Success: false, Conflict: c, Error: msg}
	}

	resolvedAt := e.now()
	c.Status = model.StatusResolved
	c.Resolution = res
	c.ResolvedAt = &resolvedAt

	e.history.append(historyEntry(c))
	e.pending.remove(c.ID)

	e.logger.Info("conflict resolved",
		logging.ConflictID(c.ID),
		logging.Path(c.Path),
		logging.Resolution(res.String()),
	)
	e.emit(model.ConflictResolved{Conflict: c, Resolution: res})
	return model.ResolutionResult{Success: true, Conflict: c}
}

func (e *Engine) safeApply(ctx context.Context, c model.Conflict, res model.Resolution, merged string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s", ErrorMessage(r))
		}
	}()
	return e.apply(ctx, c, res, merged)
}

// apply performs the store writes for res. External writes are skipped
// when no external store is attached.
func (e *Engine) apply(ctx context.Context, c model.Conflict, res model.Resolution, merged string) error {
	external := e.externalStore()

	switch res {
	case model.KeepLocal:
		if external != nil {
			if err := e.writeExternal(ctx, external, c.Path, c.LocalContent); err != nil {
				return err
			}
		} else {
			e.logger.Warn("not connected, skipping external write", logging.Path(c.Path))
		}
	case model.KeepExternal:
		if err := e.writeLocal(ctx, c.Path, c.ExternalContent); err != nil {
			return err
		}
	case model.Merge:
		if err := e.writeLocal(ctx, c.Path, merged); err != nil {
			return err
		}
		if external != nil {
			if err := e.writeExternal(ctx, external, c.Path, merged); err != nil {
				return err
			}
		} else {
			e.logger.Warn("not connected, skipping external write", logging.Path(c.Path))
		}
	default:
		return ErrUnknownResolution
	}

	if err := e.storeCall(ctx, func(ctx context.Context) error {
		return e.local.MarkSynced(ctx, c.Path)
	}); err != nil {
		return wrapErr(OpMarkSynced, c.Path, err)
	}
	return nil
}

func (e *Engine) writeLocal(ctx context.Context, path, content string) error {
	err := e.storeCall(ctx, func(ctx context.Context) error {
		return e.local.WriteFile(ctx, path, content)
	})
	return wrapErr(OpWriteLocal, path, err)
}

func (e *Engine) writeExternal(ctx context.Context, external ExternalStore, path, content string) error {
	err := e.storeCall(ctx, func(ctx context.Context) error {
		return external.WriteFile(ctx, path, content)
	})
	return wrapErr(OpWriteExternal, path, err)
}

// ResolveAllConflicts applies res to every pending conflict in detection
// order. A merge is refused for all of them without touching either store.
func (e *Engine) ResolveAllConflicts(ctx context.Context, res model.Resolution) []model.ResolutionResult {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if res == model.Merge {
		pending := e.pending.snapshot()
		results := make([]model.ResolutionResult, 0, len(pending))
		for _, c := range pending {
			results = append(results, model.ResolutionResult{
				Success:  false,
				Conflict: c,
				Error:    ErrMergeAutoResolve.Error(),
			})
		}
		return results
	}

	ids := e.pending.ids()
	results := make([]model.ResolutionResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, e.resolveLocked(ctx, id, res))
	}
	e.logger.Debug("resolve all completed", logging.Resolution(res.String()), logging.Count(len(results)))
	return results
}

// SkipConflict drops a pending conflict without touching either store or
// recording history. It reports false when id is not pending.
func (e *Engine) SkipConflict(id string) bool {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	c, ok := e.pending.take(id)
	if !ok {
		return false
	}
	c.Status = model.StatusSkipped
	e.logger.Info("conflict skipped",
		logging.ConflictID(c.ID),
		logging.Path(c.Path),
		"status", c.Status,
	)
	return true
}
