package sync

import (
	stdsync "sync"

	"github.com/klauern/docsync/internal/model"
)

// HistoryCapacity is the number of resolution records retained.
const HistoryCapacity = 100

// previewLength is the number of characters kept in history previews.
const previewLength = 100

// registry owns the pending conflicts, keyed by id in detection order.
type registry struct {
	mu    stdsync.RWMutex
	byID  map[string]*model.Conflict
	order []string
}

func newRegistry() *registry {
	return &registry{byID: make(map[string]*model.Conflict)}
}

func (r *registry) add(c *model.Conflict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[c.ID]; !exists {
		r.order = append(r.order, c.ID)
	}
	r.byID[c.ID] = c
}

// get returns a copy of the pending conflict.
func (r *registry) get(id string) (model.Conflict, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return model.Conflict{}, false
	}
	return *c, true
}

func (r *registry) remove(id string) bool {
	_, ok := r.take(id)
	return ok
}

// take removes a pending conflict and returns it.
func (r *registry) take(id string) (model.Conflict, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return model.Conflict{}, false
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return *c, true
}

func (r *registry) ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *registry) snapshot() []model.Conflict {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Conflict, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}

// history is a fixed-capacity FIFO of resolution records.
type history struct {
	mu      stdsync.RWMutex
	entries []model.ConflictHistoryEntry
	limit   int
}

func newHistory(limit int) *history {
	return &history{limit: limit}
}

func (h *history) append(e model.ConflictHistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
	}
}

func (h *history) snapshot() []model.ConflictHistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]model.ConflictHistoryEntry(nil), h.entries...)
}

func (h *history) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// Preview truncates content to the history preview length, adding "..." when cut.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}

func historyEntry(c model.Conflict) model.ConflictHistoryEntry {
	entry := model.ConflictHistoryEntry{
		ConflictID:      c.ID,
		Path:            c.Path,
		Resolution:      c.Resolution,
		LocalPreview:    Preview(c.LocalContent),
		ExternalPreview: Preview(c.ExternalContent),
	}
	if c.ResolvedAt != nil {
		entry.ResolvedAt = *c.ResolvedAt
	}
	return entry
}
