package sync

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/klauern/docsync/internal/model"
)

func TestDetectConflicts_Paths(t *testing.T) {
	tests := []struct {
		name          string
		dirty         bool
		extModified   bool
		local         string
		external      *string
		wantConflict  bool
		wantExternal  string
		wantMarkCalls int
	}{
		{
			name:         "diverged content",
			dirty:        true,
			extModified:  true,
			local:        "X",
			external:     ptr("Y"),
			wantConflict: true,
			wantExternal: "Y",
		},
		{
			name:        "clean local never conflicts",
			dirty:       false,
			extModified: true,
			local:       "X",
			external:    ptr("Y"),
		},
		{
			name:        "local only edit",
			dirty:       true,
			extModified: false,
			local:       "X",
			external:    ptr("Y"),
		},
		{
			name:          "converged content is marked synced",
			dirty:         true,
			extModified:   true,
			local:         "same",
			external:      ptr("same"),
			wantMarkCalls: 1,
		},
		{
			name:         "external deleted",
			dirty:        true,
			extModified:  true,
			local:        "kept",
			external:     nil,
			wantConflict: true,
			wantExternal: "",
		},
		{
			name:          "empty local and deleted external converge",
			dirty:         true,
			extModified:   true,
			local:         "",
			external:      nil,
			wantMarkCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := newMemLocal()
			ext := newMemExternal()
			local.put("/a.md", tt.local, tt.dirty, tt.extModified)
			if tt.external != nil {
				ext.files["/a.md"] = *tt.external
			}
			e := newTestEngine(local, ext)

			result := e.DetectConflicts(context.Background(), "/a.md")

			if !result.Success {
				t.Fatalf("Success = false, errors = %v", result.Errors)
			}
			if got := len(result.Conflicts); (got == 1) != tt.wantConflict || got > 1 {
				t.Fatalf("got %d conflicts, want conflict = %v", got, tt.wantConflict)
			}
			if got := local.synced("/a.md"); got != tt.wantMarkCalls {
				t.Errorf("MarkSynced calls = %d, want %d", got, tt.wantMarkCalls)
			}
			if !tt.wantConflict {
				if n := len(e.GetPendingConflicts()); n != 0 {
					t.Errorf("pending = %d, want 0", n)
				}
				return
			}

			c := result.Conflicts[0]
			if c.Path != "/a.md" {
				t.Errorf("Path = %q", c.Path)
			}
			if c.LocalContent != tt.local {
				t.Errorf("LocalContent = %q, want %q", c.LocalContent, tt.local)
			}
			if c.ExternalContent != tt.wantExternal {
				t.Errorf("ExternalContent = %q, want %q", c.ExternalContent, tt.wantExternal)
			}
			if c.Status != model.StatusPending {
				t.Errorf("Status = %q, want pending", c.Status)
			}
			if c.ExternalModifiedAt != nil {
				t.Errorf("ExternalModifiedAt = %v, want nil", c.ExternalModifiedAt)
			}
			if !c.DetectedAt.Equal(fixedNow) {
				t.Errorf("DetectedAt = %v, want %v", c.DetectedAt, fixedNow)
			}
			pending := e.GetPendingConflicts()
			if len(pending) != 1 || pending[0].ID != c.ID {
				t.Errorf("pending = %+v, want the detected conflict", pending)
			}
		})
	}
}

func TestDetectConflicts_DefaultsToDirtyFiles(t *testing.T) {
	local := newMemLocal()
	ext := newMemExternal()
	local.put("/b.md", "local b", true, true)
	local.put("/a.md", "local a", true, true)
	local.put("/clean.md", "clean", false, true)
	ext.files["/a.md"] = "ext a"
	ext.files["/b.md"] = "ext b"
	ext.files["/clean.md"] = "ext clean"
	e := newTestEngine(local, ext)

	result := e.DetectConflicts(context.Background())

	if want := []string{"/a.md", "/b.md"}; !reflect.DeepEqual(result.CheckedPaths, want) {
		t.Errorf("CheckedPaths = %v, want %v", result.CheckedPaths, want)
	}
	if len(result.Conflicts) != 2 {
		t.Fatalf("got %d conflicts, want 2", len(result.Conflicts))
	}
	if result.Conflicts[0].Path != "/a.md" || result.Conflicts[1].Path != "/b.md" {
		t.Errorf("conflicts out of order: %s, %s", result.Conflicts[0].Path, result.Conflicts[1].Path)
	}
	if result.Conflicts[0].ID == result.Conflicts[1].ID {
		t.Error("conflict ids must be unique")
	}
}

func TestDetectConflicts_NotConnected(t *testing.T) {
	local := newMemLocal()
	local.put("/a.md", "X", true, true)
	e := newTestEngine(local, nil)
	rec := &recorder{}
	e.Subscribe(rec.listen)

	result := e.DetectConflicts(context.Background(), "/a.md")

	if result.Success {
		t.Error("Success = true, want false")
	}
	if len(result.Conflicts) != 0 {
		t.Errorf("Conflicts = %v, want none", result.Conflicts)
	}
	if len(result.Errors) != 1 || result.Errors[0].Error != ErrNotConnected.Error() {
		t.Errorf("Errors = %v, want single not-connected error", result.Errors)
	}
	if n := len(rec.all()); n != 0 {
		t.Errorf("emitted %d events, want 0", n)
	}
}

func TestDetectConflicts_PerPathErrorIsolation(t *testing.T) {
	local := newMemLocal()
	ext := newMemExternal()
	local.put("/bad.md", "X", true, true)
	local.put("/good.md", "X", true, true)
	ext.files["/good.md"] = "Y"
	ext.failRead["/bad.md"] = errors.New("permission denied")
	e := newTestEngine(local, ext)
	rec := &recorder{}
	e.Subscribe(rec.listen)

	result := e.DetectConflicts(context.Background(), "/bad.md", "/good.md")

	if result.Success {
		t.Error("Success = true, want false")
	}
	if len(result.Errors) != 1 || result.Errors[0].Path != "/bad.md" {
		t.Fatalf("Errors = %v, want one error for /bad.md", result.Errors)
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].Path != "/good.md" {
		t.Errorf("Conflicts = %v, want /good.md only", result.Conflicts)
	}

	want := []model.EventType{
		model.EventDetectionStarted,
		model.EventError,
		model.EventConflictDetected,
		model.EventDetectionCompleted,
	}
	if got := rec.types(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestDetectConflicts_StoreFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		setup  func(*memLocal, *memExternal)
		wantOp Op
	}{
		{
			name:   "local read",
			setup:  func(l *memLocal, _ *memExternal) { l.failRead["/a.md"] = boom },
			wantOp: OpReadLocal,
		},
		{
			name:   "external read",
			setup:  func(_ *memLocal, x *memExternal) { x.failRead["/a.md"] = boom },
			wantOp: OpReadExternal,
		},
		{
			name:   "metadata",
			setup:  func(l *memLocal, _ *memExternal) { l.failMetadata["/a.md"] = boom },
			wantOp: OpMetadata,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := newMemLocal()
			ext := newMemExternal()
			local.put("/a.md", "X", true, true)
			ext.files["/a.md"] = "Y"
			tt.setup(local, ext)
			e := newTestEngine(local, ext)

			result := e.DetectConflicts(context.Background(), "/a.md")

			if len(result.Errors) != 1 {
				t.Fatalf("Errors = %v, want 1", result.Errors)
			}
			want := (&Error{Op: tt.wantOp, Path: "/a.md", Err: boom}).Error()
			if result.Errors[0].Error != want {
				t.Errorf("error = %q, want %q", result.Errors[0].Error, want)
			}
			if n := len(e.GetPendingConflicts()); n != 0 {
				t.Errorf("pending = %d, want 0", n)
			}
		})
	}
}

func TestDetectConflicts_StorePanicIsReported(t *testing.T) {
	local := newMemLocal()
	ext := newMemExternal()
	local.put("/a.md", "X", true, true)
	ext.panicRead = "/a.md"
	e := newTestEngine(local, ext)

	result := e.DetectConflicts(context.Background(), "/a.md")

	if result.Success || len(result.Errors) != 1 {
		t.Fatalf("result = %+v, want one error", result)
	}
}

func TestDetectConflicts_DirtyListFailure(t *testing.T) {
	local := newMemLocal()
	local.failDirtyList = errors.New("db closed")
	e := newTestEngine(local, newMemExternal())
	rec := &recorder{}
	e.Subscribe(rec.listen)

	result := e.DetectConflicts(context.Background())

	if result.Success || len(result.Errors) != 1 {
		t.Fatalf("result = %+v, want single error", result)
	}
	if got := rec.types(); !reflect.DeepEqual(got, []model.EventType{model.EventError}) {
		t.Errorf("events = %v", got)
	}
}

func TestDetectConflicts_MetadataFallback(t *testing.T) {
	local := newMemLocal()
	ext := newMemExternal()
	local.docs["/a.md"] = &memDoc{content: "X", dirty: true, extModified: true}
	ext.files["/a.md"] = "Y"
	e := newTestEngine(local, ext)

	result := e.DetectConflicts(context.Background(), "/a.md")

	if len(result.Conflicts) != 1 {
		t.Fatalf("got %d conflicts", len(result.Conflicts))
	}
	if !result.Conflicts[0].LocalModifiedAt.Equal(fixedNow) {
		t.Errorf("LocalModifiedAt = %v, want clock time", result.Conflicts[0].LocalModifiedAt)
	}
}

func TestDetectConflicts_EventPayloads(t *testing.T) {
	local := newMemLocal()
	ext := newMemExternal()
	local.put("/a.md", "X", true, true)
	ext.files["/a.md"] = "Y"
	e := newTestEngine(local, ext)
	rec := &recorder{}
	e.Subscribe(rec.listen)

	result := e.DetectConflicts(context.Background(), "/a.md")

	events := rec.all()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	started, ok := events[0].(model.DetectionStarted)
	if !ok || !reflect.DeepEqual(started.Paths, []string{"/a.md"}) {
		t.Errorf("first event = %#v", events[0])
	}
	detected, ok := events[1].(model.ConflictDetected)
	if !ok || detected.Conflict.ID != result.Conflicts[0].ID {
		t.Errorf("second event = %#v", events[1])
	}
	completed, ok := events[2].(model.DetectionCompleted)
	if !ok || !reflect.DeepEqual(completed.Result, result) {
		t.Errorf("third event = %#v", events[2])
	}
}

func ptr(s string) *string { return &s }
