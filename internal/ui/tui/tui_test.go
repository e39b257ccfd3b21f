package tui

import "testing"

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{name: "fits", text: "notes/a.md", width: 20, want: "notes/a.md"},
		{name: "cut with ellipsis", text: "guides/installation.md", width: 10, want: "guides/..."},
		{name: "tiny width", text: "abcdef", width: 2, want: "ab"},
		{name: "zero width", text: "abc", width: 0, want: ""},
		{name: "multibyte", text: "ñññññ", width: 4, want: "ñ..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateText(tt.text, tt.width); got != tt.want {
				t.Errorf("truncateText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
		})
	}
}

func TestTableStyles(t *testing.T) {
	s := tableStyles()
	if !s.Header.GetBold() {
		t.Error("expected bold table header")
	}
}
