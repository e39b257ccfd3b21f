package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauern/docsync/internal/model"
	docsync "github.com/klauern/docsync/internal/sync"
	"github.com/klauern/docsync/internal/ui"
	"github.com/klauern/docsync/internal/ui/tui"
)

// errAborted is returned when the user abandons the prompt.
var errAborted = errors.New("aborted by user")

// ConflictPrompter asks the user, line by line, how each conflict is resolved.
type ConflictPrompter struct {
	reader *bufio.Reader
	out    io.Writer
	// fallback is chosen when the user just presses enter
	fallback tui.Choice
}

// NewConflictPrompter creates a prompter reading answers from in.
func NewConflictPrompter(in io.Reader, out io.Writer, fallback model.Resolution) *ConflictPrompter {
	choice := tui.ChoiceKeepLocal
	if fallback == model.KeepExternal {
		choice = tui.ChoiceKeepExternal
	}
	return &ConflictPrompter{
		reader:   bufio.NewReader(in),
		out:      out,
		fallback: choice,
	}
}

// ConflictMode defines how to handle all conflicts of a sync at once.
type ConflictMode string

const (
	// ConflictModeInteractive prompts for each conflict.
	ConflictModeInteractive ConflictMode = "interactive"

	// ConflictModeKeepLocal keeps the local copy for every conflict.
	ConflictModeKeepLocal ConflictMode = "keep-local"

	// ConflictModeKeepExternal keeps the external copy for every conflict.
	ConflictModeKeepExternal ConflictMode = "keep-external"

	// ConflictModeSkip skips every conflict.
	ConflictModeSkip ConflictMode = "skip"

	// ConflictModeAbort aborts the sync operation.
	ConflictModeAbort ConflictMode = "abort"
)

// PromptForConflictMode asks the user how they want to handle conflicts.
func (p *ConflictPrompter) PromptForConflictMode(conflictCount int) (ConflictMode, error) {
	fmt.Fprintf(p.out, "\n%d document(s) changed on both sides.\n", conflictCount)
	fmt.Fprintln(p.out, "\nHow would you like to handle these conflicts?")
	fmt.Fprintln(p.out, "  1. Decide for each conflict")
	fmt.Fprintln(p.out, "  2. Keep local for all (overwrite external files)")
	fmt.Fprintln(p.out, "  3. Keep external for all (discard local edits)")
	fmt.Fprintln(p.out, "  4. Skip all")
	fmt.Fprintln(p.out, "  5. Abort sync")
	fmt.Fprint(p.out, "\nEnter choice [1-5]: ")

	response, err := p.readLine()
	if err != nil {
		return "", err
	}

	choice, err := strconv.Atoi(response)
	if err != nil || choice < 1 || choice > 5 {
		return "", fmt.Errorf("invalid choice: %s", response)
	}

	switch choice {
	case 1:
		return ConflictModeInteractive, nil
	case 2:
		return ConflictModeKeepLocal, nil
	case 3:
		return ConflictModeKeepExternal, nil
	case 4:
		return ConflictModeSkip, nil
	default:
		return ConflictModeAbort, nil
	}
}

// DecideAll applies a non-interactive mode to every conflict.
func DecideAll(conflicts []model.Conflict, mode ConflictMode) ([]tui.Decision, error) {
	var choice tui.Choice
	switch mode {
	case ConflictModeKeepLocal:
		choice = tui.ChoiceKeepLocal
	case ConflictModeKeepExternal:
		choice = tui.ChoiceKeepExternal
	case ConflictModeSkip:
		choice = tui.ChoiceSkip
	default:
		return nil, fmt.Errorf("invalid conflict mode: %s", mode)
	}

	decisions := make([]tui.Decision, len(conflicts))
	for i, c := range conflicts {
		decisions[i] = tui.Decision{ConflictID: c.ID, Path: c.Path, Choice: choice}
	}
	return decisions, nil
}

// Decide prompts for every conflict in turn.
func (p *ConflictPrompter) Decide(conflicts []model.Conflict) ([]tui.Decision, error) {
	fmt.Fprintf(p.out, "\n=== Conflict Resolution ===\n")
	fmt.Fprintf(p.out, "Found %d conflict(s) that require a decision.\n\n", len(conflicts))

	decisions := make([]tui.Decision, 0, len(conflicts))
	for i, c := range conflicts {
		fmt.Fprintf(p.out, "--- Conflict %d of %d: %s ---\n", i+1, len(conflicts), c.Path)

		hunks := docsync.Diff(c.LocalContent, c.ExternalContent)
		fmt.Fprintf(p.out, "Changes: %s\n\n", docsync.DiffSummary(hunks))
		p.showDiffPreview(hunks)

		choice, err := p.promptChoice(c)
		if err != nil {
			return decisions, fmt.Errorf("failed to get a decision for %s: %w", c.Path, err)
		}
		decisions = append(decisions, tui.Decision{ConflictID: c.ID, Path: c.Path, Choice: choice})
		fmt.Fprintf(p.out, "%s\n\n", ui.StatusSuccess(fmt.Sprintf("%s: %s", c.Path, choice)))
	}
	return decisions, nil
}

func (p *ConflictPrompter) showDiffPreview(hunks []docsync.DiffHunk) {
	fmt.Fprintln(p.out, "Preview of changes (local -> external):")
	fmt.Fprintln(p.out, strings.Repeat("-", 50))
	printDiffPreview(p.out, hunks, maxPreviewLines)
	fmt.Fprintln(p.out, strings.Repeat("-", 50))
}

func (p *ConflictPrompter) promptChoice(c model.Conflict) (tui.Choice, error) {
	prompt := fmt.Sprintf("\nEnter choice [1-5, q] (default %s): ", p.fallback)

	fmt.Fprintln(p.out, "\nHow would you like to resolve this conflict?")
	fmt.Fprintln(p.out, "  1. Keep local (overwrite the external file)")
	fmt.Fprintln(p.out, "  2. Keep external (discard the local edit)")
	fmt.Fprintln(p.out, "  3. Skip this document")
	fmt.Fprintln(p.out, "  4. Show full local content")
	fmt.Fprintln(p.out, "  5. Show full external content")
	fmt.Fprintln(p.out, "  q. Quit")
	fmt.Fprint(p.out, prompt)

	for {
		response, err := p.readLine()
		if err != nil {
			return "", err
		}

		switch strings.ToLower(response) {
		case "":
			return p.fallback, nil
		case "1", "l":
			return tui.ChoiceKeepLocal, nil
		case "2", "e":
			return tui.ChoiceKeepExternal, nil
		case "3", "x", "s":
			return tui.ChoiceSkip, nil
		case "4":
			p.showFullContent("LOCAL", c.LocalContent)
		case "5":
			p.showFullContent("EXTERNAL", c.ExternalContent)
		case "q", "quit":
			return "", errAborted
		default:
			fmt.Fprint(p.out, "Invalid choice. ")
		}
		fmt.Fprint(p.out, prompt)
	}
}

// showFullContent displays the full content of one side.
func (p *ConflictPrompter) showFullContent(label, content string) {
	fmt.Fprintf(p.out, "\n=== %s CONTENT ===\n", label)
	fmt.Fprintln(p.out, strings.Repeat("-", 50))

	if content == "" {
		fmt.Fprintln(p.out, ui.Dim("(empty)"))
	} else {
		for i, line := range strings.Split(strings.TrimSuffix(content, "\n"), "\n") {
			fmt.Fprintf(p.out, "%4d | %s\n", i+1, line)
		}
	}

	fmt.Fprintln(p.out, strings.Repeat("-", 50))
}

func (p *ConflictPrompter) readLine() (string, error) {
	response, err := p.reader.ReadString('\n')
	if err != nil && (response == "" || !errors.Is(err, io.EOF)) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(response), nil
}

// DisplayConflictSummary shows a summary of all conflicts.
func DisplayConflictSummary(out io.Writer, conflicts []model.Conflict) {
	fmt.Fprintln(out, "\n=== Conflict Summary ===")
	fmt.Fprintf(out, "%-40s %-26s\n", "PATH", "CHANGES")
	fmt.Fprintf(out, "%-40s %-26s\n", "----", "-------")

	for _, c := range conflicts {
		fmt.Fprintf(out, "%-40s %-26s\n", truncate(c.Path, 40), docsync.DiffSummary(docsync.Diff(c.LocalContent, c.ExternalContent)))
	}
	fmt.Fprintln(out)
}
