package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	stdsync "sync"
	"time"

	"github.com/klauern/docsync/internal/model"
)

type memDoc struct {
	content     string
	dirty       bool
	extModified bool
	modified    time.Time
}

// memLocal is an in-memory LocalStore with failure injection.
type memLocal struct {
	mu   stdsync.Mutex
	docs map[string]*memDoc

	markSyncedCalls map[string]int
	writes          int

	failRead       map[string]error
	failWrite      map[string]error
	failMarkSynced map[string]error
	failMetadata   map[string]error
	failDirtyList  error
}

func newMemLocal() *memLocal {
	return &memLocal{
		docs:            make(map[string]*memDoc),
		markSyncedCalls: make(map[string]int),
		failRead:        make(map[string]error),
		failWrite:       make(map[string]error),
		failMarkSynced:  make(map[string]error),
		failMetadata:    make(map[string]error),
	}
}

// put seeds a document with explicit flags.
func (m *memLocal) put(path, content string, dirty, extModified bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[path] = &memDoc{
		content:     content,
		dirty:       dirty,
		extModified: extModified,
		modified:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func (m *memLocal) IsDirty(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[path]
	return ok && d.dirty, nil
}

func (m *memLocal) IsExternallyModified(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[path]
	return ok && d.extModified, nil
}

func (m *memLocal) ReadFile(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failRead[path]; err != nil {
		return "", err
	}
	d, ok := m.docs[path]
	if !ok {
		return "", errors.New("not cached")
	}
	return d.content, nil
}

func (m *memLocal) WriteFile(_ context.Context, path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failWrite[path]; err != nil {
		return err
	}
	m.writes++
	d, ok := m.docs[path]
	if !ok {
		d = &memDoc{}
		m.docs[path] = d
	}
	d.content = content
	d.dirty = true
	return nil
}

func (m *memLocal) MarkSynced(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failMarkSynced[path]; err != nil {
		return err
	}
	m.markSyncedCalls[path]++
	if d, ok := m.docs[path]; ok {
		d.dirty = false
		d.extModified = false
	}
	return nil
}

func (m *memLocal) GetFileMetadata(_ context.Context, path string) (*FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failMetadata[path]; err != nil {
		return nil, err
	}
	d, ok := m.docs[path]
	if !ok || d.modified.IsZero() {
		return nil, nil
	}
	return &FileMetadata{LastModified: d.modified}, nil
}

func (m *memLocal) GetDirtyFiles(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDirtyList != nil {
		return nil, m.failDirtyList
	}
	var out []string
	for p, d := range m.docs {
		if d.dirty {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memLocal) content(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[path]; ok {
		return d.content
	}
	return ""
}

func (m *memLocal) synced(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markSyncedCalls[path]
}

func (m *memLocal) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// memExternal is an in-memory ExternalStore.
type memExternal struct {
	mu     stdsync.Mutex
	files  map[string]string
	writes int

	failRead  map[string]error
	failWrite map[string]error
	panicRead string
}

func newMemExternal() *memExternal {
	return &memExternal{
		files:     make(map[string]string),
		failRead:  make(map[string]error),
		failWrite: make(map[string]error),
	}
}

func (m *memExternal) ReadFile(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if path == m.panicRead {
		panic("external store exploded")
	}
	if err := m.failRead[path]; err != nil {
		return "", err
	}
	c, ok := m.files[path]
	if !ok {
		return "", ErrNotFound
	}
	return c, nil
}

func (m *memExternal) WriteFile(_ context.Context, path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failWrite[path]; err != nil {
		return err
	}
	m.writes++
	m.files[path] = content
	return nil
}

func (m *memExternal) get(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.files[path]
	return c, ok
}

func (m *memExternal) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// recorder collects emitted events.
type recorder struct {
	mu     stdsync.Mutex
	events []model.Event
}

func (r *recorder) listen(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type())
	}
	return out
}

func (r *recorder) all() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

// sequentialIDs returns an id generator yielding c1, c2, ...
func sequentialIDs() func() string {
	var mu stdsync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("c%d", n)
	}
}

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func newTestEngine(local LocalStore, ext ExternalStore) *Engine {
	e := New(local,
		WithIDGenerator(sequentialIDs()),
		WithClock(func() time.Time { return fixedNow }),
	)
	if ext != nil {
		e.Connect(ext)
	}
	return e
}
