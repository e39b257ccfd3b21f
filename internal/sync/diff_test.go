package sync

import "testing"

func TestDiff(t *testing.T) {
	tests := []struct {
		name        string
		local       string
		external    string
		wantHunks   int
		wantSummary string
	}{
		{name: "identical", local: "a\nb\n", external: "a\nb\n", wantHunks: 0, wantSummary: "0 hunk(s), +0/-0 lines"},
		{name: "changed middle line", local: "a\nb\nc", external: "a\nB\nc", wantHunks: 1, wantSummary: "1 hunk(s), +1/-1 lines"},
		{name: "appended", local: "a", external: "a\nb\nc", wantHunks: 1, wantSummary: "1 hunk(s), +2/-0 lines"},
		{name: "deleted external", local: "a\nb", external: "", wantHunks: 1, wantSummary: "1 hunk(s), +0/-2 lines"},
		{name: "two separate edits", local: "a\nb\nc\nd\ne", external: "A\nb\nc\nD\ne", wantHunks: 2, wantSummary: "2 hunk(s), +2/-2 lines"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hunks := Diff(tt.local, tt.external)
			if len(hunks) != tt.wantHunks {
				t.Errorf("got %d hunks, want %d: %+v", len(hunks), tt.wantHunks, hunks)
			}
			if got := DiffSummary(hunks); got != tt.wantSummary {
				t.Errorf("DiffSummary() = %q, want %q", got, tt.wantSummary)
			}
		})
	}
}

func TestDiff_HunkPositions(t *testing.T) {
	hunks := Diff("a\nb\nc", "a\nB\nc")
	if len(hunks) != 1 {
		t.Fatalf("got %d hunks", len(hunks))
	}
	h := hunks[0]
	if h.LocalStart != 2 || h.ExternalStart != 2 || h.LocalCount != 1 || h.ExternalCount != 1 {
		t.Errorf("hunk = %+v", h)
	}
	want := []string{"-b", "+B", " c"}
	if len(h.Lines) != len(want) {
		t.Fatalf("lines = %v", h.Lines)
	}
	for i, l := range h.Lines {
		if l.String() != want[i] {
			t.Errorf("line %d = %q, want %q", i, l.String(), want[i])
		}
	}
}
