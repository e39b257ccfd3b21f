package watch

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/klauern/docsync/internal/fsstore"
)

func TestScan(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := fsstore.NewWithFs(fsys, "/docs")
	ctx := context.Background()

	synced := time.Date(2026, 3, 4, 5, 0, 0, 0, time.UTC)
	for doc, mtime := range map[string]time.Time{
		"/unchanged.md": synced.Add(-time.Hour),
		"/edited.md":    synced.Add(time.Minute),
		"/new.md":       synced,
		"/already.md":   synced.Add(time.Hour),
		"/rewritten.md": synced.Add(time.Minute),
	} {
		if err := store.WriteFile(ctx, doc, "content"); err != nil {
			t.Fatal(err)
		}
		p, _ := store.Resolve(doc)
		if err := fsys.Chtimes(p, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	flagger := &fakeFlagger{tracked: map[string]bool{
		"/unchanged.md": true,
		"/edited.md":    true,
		"/new.md":       true,
		"/removed.md":   true,
		"/never.md":     true,
		"/already.md":   true,
		"/rewritten.md": true,
	}, synced: map[string]string{
		"/edited.md":    "older content",
		"/rewritten.md": "content",
	}}

	docs := []Tracked{
		{Path: "/already.md", SyncedAt: &synced, Flagged: true},
		{Path: "/edited.md", SyncedAt: &synced},
		{Path: "/never.md"},
		{Path: "/new.md"},
		{Path: "/removed.md", SyncedAt: &synced},
		{Path: "/rewritten.md", SyncedAt: &synced},
		{Path: "/unchanged.md", SyncedAt: &synced},
	}

	got, err := Scan(ctx, store, docs, flagger)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	want := []string{"/edited.md", "/new.md", "/removed.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(flagger.all(), want) {
		t.Errorf("flagged = %v, want %v", flagger.all(), want)
	}
}

func TestScan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := fsstore.NewWithFs(afero.NewMemMapFs(), "/docs")
	_, err := Scan(ctx, store, []Tracked{{Path: "/a.md"}}, &fakeFlagger{})
	if err == nil {
		t.Fatal("expected context error")
	}
}
