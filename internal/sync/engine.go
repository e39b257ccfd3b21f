package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/model"
)

// Engine detects and resolves conflicts between a local cache and an
// external store. It is safe for concurrent use.
type Engine struct {
	local LocalStore

	extMu    stdsync.RWMutex
	external ExternalStore

	// opMu serializes detection, resolution and skip.
	opMu stdsync.Mutex

	pending *registry
	history *history
	events  *bus

	now          func() time.Time
	newID        func() string
	storeTimeout time.Duration
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for detection and resolution stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides how conflict ids are generated.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithStoreTimeout bounds every individual store call. Zero disables the bound.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.storeTimeout = d
	}
}

// WithLogger sets the logger used by the engine.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine over the given local cache. No external store is
// attached until Connect is called.
func New(local LocalStore, opts ...Option) *Engine {
	e := &Engine{
		local:   local,
		pending: newRegistry(),
		history: newHistory(HistoryCapacity),
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.events = &bus{logger: e.logger}
	return e
}

// Connect attaches the external store, replacing any previous one.
func (e *Engine) Connect(store ExternalStore) {
	e.extMu.Lock()
	defer e.extMu.Unlock()
	e.external = store
	e.logger.Debug("external store connected")
}

// Disconnect detaches the external store.
func (e *Engine) Disconnect() {
	e.extMu.Lock()
	defer e.extMu.Unlock()
	e.external = nil
	e.logger.Debug("external store disconnected")
}

// IsConnected reports whether an external store is attached.
func (e *Engine) IsConnected() bool {
	return e.externalStore() != nil
}

func (e *Engine) externalStore() ExternalStore {
	e.extMu.RLock()
	defer e.extMu.RUnlock()
	return e.external
}

// GetPendingConflicts returns a copy of the pending conflicts in detection order.
func (e *Engine) GetPendingConflicts() []model.Conflict {
	return e.pending.snapshot()
}

// GetHistory returns a copy of the resolution history, oldest first.
func (e *Engine) GetHistory() []model.ConflictHistoryEntry {
	return e.history.snapshot()
}

// ClearHistory drops every history entry.
func (e *Engine) ClearHistory() {
	e.history.clear()
}

// Subscribe registers a listener for every event the engine emits and
// returns a function that removes it.
func (e *Engine) Subscribe(fn Listener) func() {
	return e.events.subscribe(fn)
}

func (e *Engine) emit(ev model.Event) {
	e.events.emit(ev)
}

// storeCall runs fn with the per-call timeout applied to ctx.
func (e *Engine) storeCall(ctx context.Context, fn func(context.Context) error) error {
	if e.storeTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	return fn(ctx)
}
