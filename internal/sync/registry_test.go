package sync

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/klauern/docsync/internal/model"
)

func TestPreview(t *testing.T) {
	long := strings.Repeat("a", 150)
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "empty", content: "", want: ""},
		{name: "short", content: "hello", want: "hello"},
		{name: "exactly limit", content: strings.Repeat("b", 100), want: strings.Repeat("b", 100)},
		{name: "truncated", content: long, want: strings.Repeat("a", 100) + "..."},
		{name: "multibyte", content: strings.Repeat("é", 101), want: strings.Repeat("é", 100) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview(tt.content); got != tt.want {
				t.Errorf("Preview() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHistory_Bounded(t *testing.T) {
	local := newMemLocal()
	ext := newMemExternal()
	e := newTestEngine(local, ext)
	const total = 105

	for i := 0; i < total; i++ {
		p := fmt.Sprintf("/%03d.md", i)
		c := detectOne(t, e, local, ext, p, "local", "external")
		if res := e.ResolveConflict(context.Background(), c.ID, model.KeepLocal); !res.Success {
			t.Fatalf("resolve %s: %s", p, res.Error)
		}
	}

	hist := e.GetHistory()
	if len(hist) != HistoryCapacity {
		t.Fatalf("len(history) = %d, want %d", len(hist), HistoryCapacity)
	}
	for i, h := range hist {
		want := fmt.Sprintf("/%03d.md", i+total-HistoryCapacity)
		if h.Path != want {
			t.Fatalf("history[%d].Path = %s, want %s", i, h.Path, want)
		}
	}
}

func TestHistory_CopiesAndClear(t *testing.T) {
	local := newMemLocal()
	ext := newMemExternal()
	e := newTestEngine(local, ext)
	c := detectOne(t, e, local, ext, "/a.md", strings.Repeat("x", 120), "y")
	e.ResolveConflict(context.Background(), c.ID, model.KeepExternal)

	hist := e.GetHistory()
	if len(hist) != 1 {
		t.Fatalf("len = %d", len(hist))
	}
	if hist[0].LocalPreview != strings.Repeat("x", 100)+"..." || hist[0].ExternalPreview != "y" {
		t.Errorf("previews = %q / %q", hist[0].LocalPreview, hist[0].ExternalPreview)
	}
	if !hist[0].ResolvedAt.Equal(fixedNow) {
		t.Errorf("ResolvedAt = %v", hist[0].ResolvedAt)
	}

	hist[0].Path = "mutated"
	if e.GetHistory()[0].Path != "/a.md" {
		t.Error("GetHistory returned the live buffer")
	}

	e.ClearHistory()
	if n := len(e.GetHistory()); n != 0 {
		t.Errorf("len after clear = %d", n)
	}
}

func TestPendingConflicts_Copy(t *testing.T) {
	local := newMemLocal()
	ext := newMemExternal()
	e := newTestEngine(local, ext)
	detectOne(t, e, local, ext, "/a.md", "X", "Y")

	pending := e.GetPendingConflicts()
	pending[0].LocalContent = "changed"
	pending = pending[:0]
	_ = pending

	got := e.GetPendingConflicts()
	if len(got) != 1 || got[0].LocalContent != "X" {
		t.Errorf("pending = %+v", got)
	}
}

func TestRegistry_Order(t *testing.T) {
	r := newRegistry()
	for _, id := range []string{"b", "a", "c"} {
		r.add(&model.Conflict{ID: id})
	}
	r.remove("a")
	r.add(&model.Conflict{ID: "d"})

	var got []string
	for _, c := range r.snapshot() {
		got = append(got, c.ID)
	}
	if strings.Join(got, ",") != "b,c,d" {
		t.Errorf("order = %v, want b,c,d", got)
	}
	if r.remove("a") {
		t.Error("remove of missing id = true")
	}
}

func TestRegistry_Take(t *testing.T) {
	r := newRegistry()
	r.add(&model.Conflict{ID: "a", Path: "/a.md", Status: model.StatusPending})

	c, ok := r.take("a")
	if !ok || c.Path != "/a.md" {
		t.Fatalf("take() = %+v, %v", c, ok)
	}
	if len(r.snapshot()) != 0 {
		t.Error("taken conflict still pending")
	}
	if _, ok := r.take("a"); ok {
		t.Error("second take() = true")
	}
}
