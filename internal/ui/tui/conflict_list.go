package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/klauern/docsync/internal/model"
	docsync "github.com/klauern/docsync/internal/sync"
)

// ConflictAction represents the action to perform after conflict resolution.
type ConflictAction int

const (
	// ConflictActionNone means no action was taken (user quit).
	ConflictActionNone ConflictAction = iota
	// ConflictActionResolve means the user made a choice for every conflict and wants to apply.
	ConflictActionResolve
	// ConflictActionCancel means the user cancelled.
	ConflictActionCancel
)

// Choice is the decision made for a single conflict.
type Choice string

const (
	// ChoiceKeepLocal pushes the local copy to the external store.
	ChoiceKeepLocal = Choice(model.KeepLocal)
	// ChoiceKeepExternal pulls the external copy into the cache.
	ChoiceKeepExternal = Choice(model.KeepExternal)
	// ChoiceSkip drops the conflict without touching either store.
	ChoiceSkip Choice = "skip"
)

// Resolution returns the engine resolution for the choice; false for skip.
func (c Choice) Resolution() (model.Resolution, bool) {
	switch c {
	case ChoiceKeepLocal:
		return model.KeepLocal, true
	case ChoiceKeepExternal:
		return model.KeepExternal, true
	default:
		return "", false
	}
}

// Decision pairs a conflict with the choice made for it.
type Decision struct {
	ConflictID string
	Path       string
	Choice     Choice
}

// ConflictListResult contains the result of the conflict resolution interaction.
type ConflictListResult struct {
	Action    ConflictAction
	Decisions []Decision
}

// conflictPhase represents the current phase of conflict resolution.
type conflictPhase int

const (
	phaseList conflictPhase = iota
	phaseDetail
)

// conflictKeyMap defines the key bindings for conflict resolution.
type conflictKeyMap struct {
	Select   key.Binding
	Local    key.Binding
	External key.Binding
	Skip     key.Binding
	All      key.Binding
	Confirm  key.Binding
	Back     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultConflictKeyMap() conflictKeyMap {
	return conflictKeyMap{
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "view diff"),
		),
		Local: key.NewBinding(
			key.WithKeys("l", "1"),
			key.WithHelp("l/1", "keep local"),
		),
		External: key.NewBinding(
			key.WithKeys("e", "2"),
			key.WithHelp("e/2", "keep external"),
		),
		Skip: key.NewBinding(
			key.WithKeys("x", "3"),
			key.WithHelp("x/3", "skip"),
		),
		All: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "apply choice to undecided"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "apply choices"),
		),
		Back: key.NewBinding(
			key.WithKeys("b", "esc"),
			key.WithHelp("b/esc", "back"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ConflictListModel is the BubbleTea model for choosing how each conflict is resolved.
type ConflictListModel struct {
	conflicts   []model.Conflict
	choices     map[string]Choice
	lastChoice  Choice
	table       table.Model
	viewport    viewport.Model
	keys        conflictKeyMap
	result      ConflictListResult
	phase       conflictPhase
	cursor      int
	showHelp    bool
	confirmMode bool
	width       int
	height      int
	quitting    bool
	ready       bool
}

// Styles for the conflict resolution TUI.
var conflictStyles = struct {
	Title         lipgloss.Style
	Help          lipgloss.Style
	Status        lipgloss.Style
	Added         lipgloss.Style
	Removed       lipgloss.Style
	Context       lipgloss.Style
	Info          lipgloss.Style
	Warning       lipgloss.Style
	Decided       lipgloss.Style
	HunkHeader    lipgloss.Style
	Confirm       lipgloss.Style
	LocalLabel    lipgloss.Style
	ExternalLabel lipgloss.Style
	SectionTitle  lipgloss.Style
}{
	Title:         lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(0, 1),
	Help:          lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	Status:        lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1),
	Added:         lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	Removed:       lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	Context:       lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
	Info:          lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Italic(true),
	Warning:       lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
	Decided:       lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	HunkHeader:    lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true),
	Confirm:       lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true).Padding(0, 1),
	LocalLabel:    lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true),
	ExternalLabel: lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true),
	SectionTitle:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(1, 0),
}

// NewConflictListModel creates a new conflict resolution model.
func NewConflictListModel(conflicts []model.Conflict) ConflictListModel {
	columns := []table.Column{
		{Title: "Status", Width: 6},
		{Title: "Path", Width: 36},
		{Title: "Changes", Width: 26},
		{Title: "Choice", Width: 14},
	}

	rows := make([]table.Row, len(conflicts))
	for i := range conflicts {
		rows[i] = buildConflictRow(conflicts[i], "")
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	t.SetStyles(tableStyles())

	return ConflictListModel{
		conflicts:  conflicts,
		choices:    make(map[string]Choice),
		lastChoice: ChoiceKeepLocal,
		table:      t,
		keys:       defaultConflictKeyMap(),
		phase:      phaseList,
	}
}

func buildConflictRow(c model.Conflict, choice Choice) table.Row {
	status := "○"
	choiceStr := "-"
	if choice != "" {
		status = "✓"
		choiceStr = string(choice)
	}

	changes := docsync.DiffSummary(docsync.Diff(c.LocalContent, c.ExternalContent))
	if c.ExternallyDeleted() {
		changes = "external missing"
	}

	return table.Row{
		status,
		truncateText(c.Path, 36),
		changes,
		choiceStr,
	}
}

// Init implements tea.Model.
func (m ConflictListModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ConflictListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.phase {
	case phaseList:
		return m.updateList(msg)
	case phaseDetail:
		return m.updateDetail(msg)
	}
	return m, nil
}

func (m ConflictListModel) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(msg.Height-10, 5))

	case tea.KeyMsg:
		if m.confirmMode {
			switch msg.String() {
			case "y", "Y":
				m.result = ConflictListResult{
					Action:    ConflictActionResolve,
					Decisions: m.buildDecisions(),
				}
				m.quitting = true
				return m, tea.Quit
			case "n", "N", "esc":
				m.confirmMode = false
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Select):
			if len(m.conflicts) > 0 {
				m.cursor = m.table.Cursor()
				m.phase = phaseDetail
				m.ready = false
				if m.width > 0 {
					m.initViewport(m.width, m.height)
				}
				return m, nil
			}

		case key.Matches(msg, m.keys.Local):
			m.chooseAt(m.table.Cursor(), ChoiceKeepLocal)
			return m, nil

		case key.Matches(msg, m.keys.External):
			m.chooseAt(m.table.Cursor(), ChoiceKeepExternal)
			return m, nil

		case key.Matches(msg, m.keys.Skip):
			m.chooseAt(m.table.Cursor(), ChoiceSkip)
			return m, nil

		case key.Matches(msg, m.keys.All):
			m.chooseUndecided(m.lastChoice)
			return m, nil

		case key.Matches(msg, m.keys.Confirm):
			if m.allDecided() {
				m.confirmMode = true
			}
			return m, nil

		case key.Matches(msg, m.keys.Back):
			m.result = ConflictListResult{Action: ConflictActionCancel}
			m.quitting = true
			return m, tea.Quit
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *ConflictListModel) initViewport(width, height int) {
	headerHeight := 4
	footerHeight := 4
	viewportHeight := max(height-headerHeight-footerHeight, 5)

	if !m.ready {
		m.viewport = viewport.New(width-2, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = width - 2
		m.viewport.Height = viewportHeight
	}
	m.viewport.SetContent(m.buildDetailContent())
}

func (m ConflictListModel) updateDetail(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.initViewport(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Back):
			m.phase = phaseList
			return m, nil

		case key.Matches(msg, m.keys.Local):
			m.chooseAt(m.cursor, ChoiceKeepLocal)
			m.refreshDetail()
			return m, nil

		case key.Matches(msg, m.keys.External):
			m.chooseAt(m.cursor, ChoiceKeepExternal)
			m.refreshDetail()
			return m, nil

		case key.Matches(msg, m.keys.Skip):
			m.chooseAt(m.cursor, ChoiceSkip)
			m.refreshDetail()
			return m, nil
		}
	}

	if !m.ready {
		return m, nil
	}
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *ConflictListModel) refreshDetail() {
	if m.ready {
		m.viewport.SetContent(m.buildDetailContent())
	}
}

func (m *ConflictListModel) chooseAt(idx int, choice Choice) {
	if idx < 0 || idx >= len(m.conflicts) {
		return
	}
	m.choices[m.conflicts[idx].ID] = choice
	m.lastChoice = choice
	m.updateTableRow(idx)
}

func (m *ConflictListModel) chooseUndecided(choice Choice) {
	for i, c := range m.conflicts {
		if _, ok := m.choices[c.ID]; !ok {
			m.choices[c.ID] = choice
			m.updateTableRow(i)
		}
	}
}

func (m *ConflictListModel) updateTableRow(idx int) {
	rows := m.table.Rows()
	if idx < 0 || idx >= len(rows) {
		return
	}
	c := m.conflicts[idx]
	rows[idx] = buildConflictRow(c, m.choices[c.ID])
	m.table.SetRows(rows)
}

func (m ConflictListModel) allDecided() bool {
	for _, c := range m.conflicts {
		if _, ok := m.choices[c.ID]; !ok {
			return false
		}
	}
	return len(m.conflicts) > 0
}

func (m ConflictListModel) buildDecisions() []Decision {
	decisions := make([]Decision, 0, len(m.choices))
	for _, c := range m.conflicts {
		if choice, ok := m.choices[c.ID]; ok {
			decisions = append(decisions, Decision{
				ConflictID: c.ID,
				Path:       c.Path,
				Choice:     choice,
			})
		}
	}
	return decisions
}

func (m ConflictListModel) buildDetailContent() string {
	if m.cursor < 0 || m.cursor >= len(m.conflicts) {
		return "No conflict selected"
	}

	c := m.conflicts[m.cursor]
	hunks := docsync.Diff(c.LocalContent, c.ExternalContent)
	var b strings.Builder

	b.WriteString(conflictStyles.SectionTitle.Render("Conflict Details"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Path:     %s\n", c.Path)
	fmt.Fprintf(&b, "  Detected: %s\n", c.DetectedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "  Local:    modified %s\n", c.LocalModifiedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "  %s\n", docsync.DiffSummary(hunks))

	if choice, ok := m.choices[c.ID]; ok {
		b.WriteString("\n")
		b.WriteString(conflictStyles.Decided.Render(fmt.Sprintf("  Choice: %s", choice)))
		b.WriteString("\n")
	}

	if c.ExternallyDeleted() {
		b.WriteString("\n")
		b.WriteString(conflictStyles.Warning.Render("  The external copy is missing or empty."))
		b.WriteString("\n")
	}

	if len(hunks) > 0 {
		b.WriteString("\n")
		b.WriteString(conflictStyles.LocalLabel.Render("--- local"))
		b.WriteString("\n")
		b.WriteString(conflictStyles.ExternalLabel.Render("+++ external"))
		b.WriteString("\n")

		for i, hunk := range hunks {
			header := fmt.Sprintf("@@ -%d,%d +%d,%d @@",
				hunk.LocalStart, hunk.LocalCount,
				hunk.ExternalStart, hunk.ExternalCount)
			b.WriteString(conflictStyles.HunkHeader.Render(header))
			b.WriteString("\n")

			for _, line := range hunk.Lines {
				b.WriteString(renderDiffLine(line))
				b.WriteString("\n")
			}

			if i < len(hunks)-1 {
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n\n")
	b.WriteString(conflictStyles.Info.Render("Press: l=keep local, e=keep external, x=skip"))

	return b.String()
}

func renderDiffLine(line docsync.DiffLine) string {
	switch line.Type {
	case docsync.DiffLineAdded:
		return conflictStyles.Added.Render(line.String())
	case docsync.DiffLineRemoved:
		return conflictStyles.Removed.Render(line.String())
	default:
		return conflictStyles.Context.Render(line.String())
	}
}

// View implements tea.Model.
func (m ConflictListModel) View() string {
	if m.quitting {
		return ""
	}

	switch m.phase {
	case phaseDetail:
		return m.viewDetail()
	default:
		return m.viewList()
	}
}

func (m ConflictListModel) viewList() string {
	var b strings.Builder

	b.WriteString(conflictStyles.Title.Render("Resolve Conflicts"))
	b.WriteString("\n\n")
	b.WriteString(conflictStyles.Info.Render("Choose keep local, keep external or skip for each document"))
	b.WriteString("\n\n")

	b.WriteString(m.table.View())
	if m.confirmMode {
		b.WriteString("\n\n")
		confirmMsg := fmt.Sprintf("Apply %d choice(s)? (y/n)", len(m.choices))
		b.WriteString(conflictStyles.Confirm.Render(confirmMsg))
		return b.String()
	}
	b.WriteString("\n")

	decided := len(m.choices)
	total := len(m.conflicts)
	status := fmt.Sprintf("%d/%d decided", decided, total)
	if decided == total && total > 0 {
		status += " • Press y to apply"
	}
	b.WriteString(conflictStyles.Status.Render(status))
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString("\n")
		b.WriteString(m.renderFullHelp())
	} else {
		b.WriteString(renderShortHelp(m.keys.Select, m.keys.Local, m.keys.External, m.keys.Skip, m.keys.All, m.keys.Help, m.keys.Quit))
	}

	return b.String()
}

func (m ConflictListModel) viewDetail() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder

	path := ""
	if m.cursor >= 0 && m.cursor < len(m.conflicts) {
		path = m.conflicts[m.cursor].Path
	}
	b.WriteString(conflictStyles.Title.Render("Conflict: " + path))
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	status := fmt.Sprintf("Scroll: %d%%", int(m.viewport.ScrollPercent()*100))
	b.WriteString(conflictStyles.Status.Render(status))
	b.WriteString("\n")
	b.WriteString(renderShortHelp(m.keys.Local, m.keys.External, m.keys.Skip, m.keys.Back, m.keys.Quit))

	return b.String()
}

func renderShortHelp(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return conflictStyles.Help.Render(strings.Join(parts, " • "))
}

func (m ConflictListModel) renderFullHelp() string {
	help := `Navigation:
  ↑/k      Move up
  ↓/j      Move down
  Enter    View diff

Choices:
  l/1      Keep local (push cache copy to the external store)
  e/2      Keep external (replace cache copy)
  x/3      Skip (leave both copies untouched)
  a        Apply the last choice to every undecided conflict

Actions:
  y        Apply all choices
  b/Esc    Cancel

General:
  ?        Toggle full help
  q        Quit`
	return conflictStyles.Help.Render(help)
}

// Result returns the result of the user interaction.
func (m ConflictListModel) Result() ConflictListResult {
	return m.result
}

// RunConflictList runs the interactive conflict picker and returns the result.
func RunConflictList(conflicts []model.Conflict) (ConflictListResult, error) {
	if len(conflicts) == 0 {
		return ConflictListResult{}, nil
	}

	finalModel, err := Run(NewConflictListModel(conflicts), tea.WithAltScreen())
	if err != nil {
		return ConflictListResult{}, err
	}

	if m, ok := finalModel.(ConflictListModel); ok {
		return m.Result(), nil
	}

	return ConflictListResult{}, nil
}
