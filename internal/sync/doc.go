// Package sync reconciles a local document cache with an authoritative external store.
//
// The Engine detects paths whose local and external copies diverged since the last
// agreed-synced state and applies an explicit resolution strategy to both sides.
//
// # Detection
//
// A path conflicts only when the local cache reports it dirty, the cache reports it
// externally modified, and the two contents actually differ:
//
//	engine := sync.New(localCache)
//	engine.Connect(externalStore)
//
//	result := engine.DetectConflicts(ctx)             // every dirty path
//	result = engine.DetectConflicts(ctx, "/notes/a.md") // explicit candidates
//
// A missing external file is read as empty content, so an external deletion surfaces
// as a conflict against an empty document. Identical contents collapse the conflict
// and mark the path synced. Failures are isolated per path and reported in
// DetectionResult.Errors.
//
// # Resolution
//
//	res := engine.ResolveConflict(ctx, id, model.KeepLocal)
//	res = engine.ResolveConflict(ctx, id, model.Merge, sync.WithMergedContent(text))
//	results := engine.ResolveAllConflicts(ctx, model.KeepExternal)
//	engine.SkipConflict(id)
//
// Resolutions are not transactional. When a store write fails part way through,
// already applied writes stay in place and the conflict remains pending so the
// call can be retried. When no external store is connected, keepLocal and merge
// update only the local side.
//
// # Events
//
// Subscribe registers a listener that receives every model.Event synchronously
// in emission order. A panicking listener is recovered and logged; it never
// reaches the caller or other listeners.
//
// # Concurrency
//
// Engine methods are safe for concurrent use. Detection, resolution and skip are
// serialized; pending conflicts and history are guarded separately so snapshot
// reads do not wait for store I/O.
package sync
