package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/klauern/docsync/internal/model"
)

func makeConflict(id, path, local, external string) model.Conflict {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	return model.Conflict{
		ID:              id,
		Path:            path,
		LocalContent:    local,
		ExternalContent: external,
		LocalModifiedAt: now,
		DetectedAt:      now,
		Status:          model.StatusPending,
	}
}

func testConflicts() []model.Conflict {
	return []model.Conflict{
		makeConflict("c1", "/notes/alpha.md", "one\ntwo", "one\nthree"),
		makeConflict("c2", "/notes/beta.md", "hello", ""),
	}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func send(m ConflictListModel, keys ...string) ConflictListModel {
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		m = next.(ConflictListModel)
	}
	return m
}

func TestChoice_Resolution(t *testing.T) {
	tests := []struct {
		choice Choice
		want   model.Resolution
		wantOK bool
	}{
		{ChoiceKeepLocal, model.KeepLocal, true},
		{ChoiceKeepExternal, model.KeepExternal, true},
		{ChoiceSkip, "", false},
	}
	for _, tt := range tests {
		got, ok := tt.choice.Resolution()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("%s.Resolution() = %q, %v", tt.choice, got, ok)
		}
	}
}

func TestConflictListModel_ChooseAndApply(t *testing.T) {
	m := NewConflictListModel(testConflicts())

	m = send(m, "y")
	if m.confirmMode {
		t.Fatal("confirm should require a choice for every conflict")
	}

	m = send(m, "l", "down", "x")
	if !m.allDecided() {
		t.Fatalf("expected all decided, choices = %v", m.choices)
	}

	m = send(m, "y")
	if !m.confirmMode {
		t.Fatal("expected confirm mode")
	}
	if !strings.Contains(m.View(), "Apply 2 choice(s)?") {
		t.Errorf("expected confirmation prompt in view")
	}

	next, cmd := m.Update(keyMsg("y"))
	m = next.(ConflictListModel)
	if cmd == nil {
		t.Fatal("expected quit command")
	}

	result := m.Result()
	if result.Action != ConflictActionResolve {
		t.Fatalf("Action = %v", result.Action)
	}
	want := []Decision{
		{ConflictID: "c1", Path: "/notes/alpha.md", Choice: ChoiceKeepLocal},
		{ConflictID: "c2", Path: "/notes/beta.md", Choice: ChoiceSkip},
	}
	if len(result.Decisions) != len(want) {
		t.Fatalf("Decisions = %+v", result.Decisions)
	}
	for i := range want {
		if result.Decisions[i] != want[i] {
			t.Errorf("Decisions[%d] = %+v, want %+v", i, result.Decisions[i], want[i])
		}
	}
}

func TestConflictListModel_ApplyToUndecided(t *testing.T) {
	m := NewConflictListModel(testConflicts())
	m = send(m, "e", "a")

	if m.choices["c1"] != ChoiceKeepExternal || m.choices["c2"] != ChoiceKeepExternal {
		t.Errorf("choices = %v", m.choices)
	}
}

func TestConflictListModel_ConfirmCanBeDeclined(t *testing.T) {
	m := NewConflictListModel(testConflicts())
	m = send(m, "l", "a", "y", "n")

	if m.confirmMode {
		t.Error("expected confirm mode to be dismissed")
	}
	if m.Result().Action != ConflictActionNone {
		t.Errorf("Action = %v", m.Result().Action)
	}
}

func TestConflictListModel_Cancel(t *testing.T) {
	m := NewConflictListModel(testConflicts())
	m = send(m, "esc")

	if m.Result().Action != ConflictActionCancel {
		t.Errorf("Action = %v, want cancel", m.Result().Action)
	}
	if m.View() != "" {
		t.Error("expected empty view after quitting")
	}
}

func TestConflictListModel_DetailView(t *testing.T) {
	m := NewConflictListModel(testConflicts())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(ConflictListModel)

	m = send(m, "enter")
	if m.phase != phaseDetail || !m.ready {
		t.Fatalf("expected ready detail phase, phase=%v ready=%v", m.phase, m.ready)
	}

	content := m.buildDetailContent()
	for _, want := range []string{"/notes/alpha.md", "@@ -2,1 +2,1 @@", "-two", "+three", "1 hunk(s), +1/-1 lines"} {
		if !strings.Contains(content, want) {
			t.Errorf("detail content missing %q:\n%s", want, content)
		}
	}

	m = send(m, "e")
	if m.choices["c1"] != ChoiceKeepExternal {
		t.Errorf("expected choice from detail view, got %v", m.choices)
	}
	if !strings.Contains(m.buildDetailContent(), "Choice: keepExternal") {
		t.Error("expected choice shown in detail view")
	}

	m = send(m, "b")
	if m.phase != phaseList {
		t.Error("expected back to list")
	}
}

func TestConflictListModel_DetailExternalMissing(t *testing.T) {
	m := NewConflictListModel(testConflicts())
	m.cursor = 1

	content := m.buildDetailContent()
	if !strings.Contains(content, "external copy is missing") {
		t.Errorf("expected missing external warning:\n%s", content)
	}

	row := buildConflictRow(m.conflicts[1], "")
	if row[2] != "external missing" || row[3] != "-" {
		t.Errorf("row = %v", row)
	}
}

func TestRunConflictList_Empty(t *testing.T) {
	result, err := RunConflictList(nil)
	if err != nil {
		t.Fatalf("RunConflictList(nil) error = %v", err)
	}
	if result.Action != ConflictActionNone {
		t.Errorf("Action = %v", result.Action)
	}
}
