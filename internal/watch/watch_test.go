package watch

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/klauern/docsync/internal/fsstore"
	"github.com/klauern/docsync/internal/util"
)

type fakeFlagger struct {
	mu      sync.Mutex
	tracked map[string]bool
	synced  map[string]string
	flagged []string
}

func (f *fakeFlagger) MatchesSynced(_ context.Context, path, content string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	last, ok := f.synced[path]
	return ok && last == content, nil
}

func (f *fakeFlagger) MarkExternallyModified(_ context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.tracked[path] {
		return false, nil
	}
	f.flagged = append(f.flagged, path)
	return true, nil
}

func (f *fakeFlagger) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.flagged...)
}

func TestFlush_Debounce(t *testing.T) {
	root := t.TempDir()
	flagger := &fakeFlagger{tracked: map[string]bool{"/a.md": true, "/notes/b.md": true}}
	var batches [][]string
	w := New(fsstore.New(root), flagger, Config{
		Extensions: []string{".md"},
		Debounce:   time.Second,
		OnChange: func(_ context.Context, paths []string) {
			batches = append(batches, paths)
		},
	})

	start := time.Now()
	w.handle(fsnotify.Event{Name: filepath.Join(root, "a.md"), Op: fsnotify.Write})
	w.handle(fsnotify.Event{Name: filepath.Join(root, "notes", "b.md"), Op: fsnotify.Remove})
	w.handle(fsnotify.Event{Name: filepath.Join(root, "image.png"), Op: fsnotify.Write})
	w.handle(fsnotify.Event{Name: filepath.Join(root, ".a.md.tmp-123"), Op: fsnotify.Create})
	w.handle(fsnotify.Event{Name: filepath.Join(root, "untracked.md"), Op: fsnotify.Write})
	w.handle(fsnotify.Event{Name: filepath.Join(root, "a.md"), Op: fsnotify.Chmod})

	ctx := context.Background()
	if got := w.flush(ctx, start); len(got) != 0 {
		t.Errorf("flush before debounce = %v, want none", got)
	}

	got := w.flush(ctx, start.Add(2*time.Second))
	want := []string{"/a.md", "/notes/b.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("flush() = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(flagger.all(), want) {
		t.Errorf("flagged = %v, want %v", flagger.all(), want)
	}
	if len(batches) != 1 || !reflect.DeepEqual(batches[0], want) {
		t.Errorf("OnChange batches = %v", batches)
	}

	if got := w.flush(ctx, start.Add(3*time.Second)); len(got) != 0 {
		t.Errorf("queue not drained: %v", got)
	}
}

func TestFlush_SkipsContentMatchingLastSync(t *testing.T) {
	root := t.TempDir()
	util.WriteFile(t, filepath.Join(root, "a.md"), "resolved")
	util.WriteFile(t, filepath.Join(root, "b.md"), "edited elsewhere")
	flagger := &fakeFlagger{
		tracked: map[string]bool{"/a.md": true, "/b.md": true, "/gone.md": true},
		synced:  map[string]string{"/a.md": "resolved", "/b.md": "resolved", "/gone.md": "resolved"},
	}
	w := New(fsstore.New(root), flagger, Config{Debounce: time.Second})

	start := time.Now()
	for _, name := range []string{"a.md", "b.md", "gone.md"} {
		w.handle(fsnotify.Event{Name: filepath.Join(root, name), Op: fsnotify.Write})
	}

	got := w.flush(context.Background(), start.Add(2*time.Second))
	want := []string{"/b.md", "/gone.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("flush() = %v, want %v", got, want)
	}
}

func TestWatcher_StartStop(t *testing.T) {
	root := t.TempDir()
	w := New(fsstore.New(root), &fakeFlagger{}, Config{})

	if w.IsRunning() {
		t.Fatal("IsRunning() = true before Start")
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !w.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	if err := w.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if w.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestWatcher_StartMissingRoot(t *testing.T) {
	w := New(fsstore.New(filepath.Join(t.TempDir(), "missing")), &fakeFlagger{}, Config{})
	if err := w.Start(context.Background()); err == nil {
		_ = w.Stop()
		t.Fatal("Start() on missing root should fail")
	}
}

func TestWatcher_FlagsRealChanges(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "notes"), 0o750); err != nil {
		t.Fatal(err)
	}
	flagger := &fakeFlagger{tracked: map[string]bool{"/notes/a.md": true, "/new/b.md": true}}
	changed := make(chan []string, 10)
	w := New(fsstore.New(root), flagger, Config{
		Extensions: []string{".md"},
		Debounce:   20 * time.Millisecond,
		OnChange: func(_ context.Context, paths []string) {
			changed <- paths
		},
	})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = w.Stop() }()

	if err := os.WriteFile(filepath.Join(root, "notes", "a.md"), []byte("edit"), 0o600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, "/notes/a.md")

	// Directories created after Start are watched too.
	newDir := filepath.Join(root, "new")
	if err := os.MkdirAll(newDir, 0o750); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := os.WriteFile(filepath.Join(newDir, "b.md"), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		select {
		case paths := <-changed:
			if reflect.DeepEqual(paths, []string{"/new/b.md"}) {
				return
			}
		case <-time.After(200 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for change in new directory")
		}
	}
}

func waitFor(t *testing.T, ch <-chan []string, want string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case paths := <-ch:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}
