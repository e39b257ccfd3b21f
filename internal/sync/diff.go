package sync

import (
	"fmt"
	"strings"
)

// DiffLineType marks a line as unchanged, added on the external side, or
// removed from the local side.
type DiffLineType string

const (
	DiffLineContext DiffLineType = " "
	DiffLineAdded   DiffLineType = "+"
	DiffLineRemoved DiffLineType = "-"
)

// DiffLine is one line of a hunk.
type DiffLine struct {
	Type    DiffLineType
	Content string
}

func (dl DiffLine) String() string {
	return string(dl.Type) + dl.Content
}

// DiffHunk is a contiguous block of changes. Line numbers are 1-based.
type DiffHunk struct {
	LocalStart    int
	LocalCount    int
	ExternalStart int
	ExternalCount int
	Lines         []DiffLine
}

// Diff compares the local and external content of a conflict line by line.
// It is used for previews only.
func Diff(local, external string) []DiffHunk {
	return diffLines(splitLines(local), splitLines(external))
}

// DiffSummary describes hunks as "N hunk(s), +a/-r lines".
func DiffSummary(hunks []DiffHunk) string {
	added, removed := 0, 0
	for _, h := range hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case DiffLineAdded:
				added++
			case DiffLineRemoved:
				removed++
			}
		}
	}
	return fmt.Sprintf("%d hunk(s), +%d/-%d lines", len(hunks), added, removed)
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// diffLines walks a suffix LCS table and groups changed lines into hunks,
// closing each hunk with the next unchanged line.
func diffLines(a, b []string) []DiffHunk {
	m, n := len(a), len(b)
	suffix := make([][]int, m+1)
	for i := range suffix {
		suffix[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if a[i] == b[j] {
				suffix[i][j] = suffix[i+1][j+1] + 1
			} else {
				suffix[i][j] = max(suffix[i+1][j], suffix[i][j+1])
			}
		}
	}

	var hunks []DiffHunk
	var cur *DiffHunk
	open := func(i, j int) {
		if cur == nil {
			cur = &DiffHunk{LocalStart: i + 1, ExternalStart: j + 1}
		}
	}

	i, j := 0, 0
	for i < m || j < n {
		switch {
		case i < m && j < n && a[i] == b[j]:
			if cur != nil {
				cur.Lines = append(cur.Lines, DiffLine{Type: DiffLineContext, Content: a[i]})
				hunks = append(hunks, *cur)
				cur = nil
			}
			i++
			j++
		case j >= n || (i < m && suffix[i+1][j] >= suffix[i][j+1]):
			open(i, j)
			cur.Lines = append(cur.Lines, DiffLine{Type: DiffLineRemoved, Content: a[i]})
			cur.LocalCount++
			i++
		default:
			open(i, j)
			cur.Lines = append(cur.Lines, DiffLine{Type: DiffLineAdded, Content: b[j]})
			cur.ExternalCount++
			j++
		}
	}
	if cur != nil {
		hunks = append(hunks, *cur)
	}
	return hunks
}
