// Package ui provides terminal UI utilities for docsync.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/klauern/docsync/internal/model"
)

// Color function types for styled output.
var (
	// Success is used for successful operations (green).
	Success = color.New(color.FgGreen).SprintFunc()
	// Error is used for errors and failures (red).
	Error = color.New(color.FgRed).SprintFunc()
	// Warning is used for warnings and cautions (yellow).
	Warning = color.New(color.FgYellow).SprintFunc()
	// Info is used for informational messages (cyan).
	Info = color.New(color.FgCyan).SprintFunc()
	// Bold is used for emphasis (bold white).
	Bold = color.New(color.Bold).SprintFunc()
	// Dim is used for secondary information (faint).
	Dim = color.New(color.Faint).SprintFunc()
	// Header is used for table headers (bold cyan).
	Header = color.New(color.FgCyan, color.Bold).SprintFunc()
	// Added and Removed color diff lines.
	Added   = color.New(color.FgGreen).SprintFunc()
	Removed = color.New(color.FgRed).SprintFunc()
)

// Status symbols with colors.
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolSkipped = "-"
	SymbolPending = "○"
)

// StatusSuccess returns a green checkmark with optional message.
func StatusSuccess(msg string) string {
	if msg == "" {
		return Success(SymbolSuccess)
	}
	return Success(SymbolSuccess) + " " + msg
}

// StatusError returns a red X with optional message.
func StatusError(msg string) string {
	if msg == "" {
		return Error(SymbolError)
	}
	return Error(SymbolError) + " " + msg
}

// StatusWarning returns a yellow warning with optional message.
func StatusWarning(msg string) string {
	if msg == "" {
		return Warning(SymbolWarning)
	}
	return Warning(SymbolWarning) + " " + msg
}

// StatusSkipped returns a dimmed skip symbol with optional message.
func StatusSkipped(msg string) string {
	if msg == "" {
		return Dim(SymbolSkipped)
	}
	return Dim(SymbolSkipped) + " " + msg
}

// StatusPending returns a pending marker with optional message.
func StatusPending(msg string) string {
	if msg == "" {
		return Warning(SymbolPending)
	}
	return Warning(SymbolPending) + " " + msg
}

// Label turns an identifier such as "externally_modified" into "Externally Modified".
func Label(s string) string {
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return cases.Title(language.English).String(s)
}

// ConflictStatus renders a conflict lifecycle state with its symbol.
func ConflictStatus(s model.ConflictStatus) string {
	switch s {
	case model.StatusResolved:
		return StatusSuccess(Label(string(s)))
	case model.StatusSkipped:
		return StatusSkipped(Label(string(s)))
	default:
		return StatusPending(Label(string(s)))
	}
}

// DocumentState renders the cache flags of a document for status output.
func DocumentState(dirty, externallyModified bool) string {
	switch {
	case dirty && externallyModified:
		return StatusWarning(Label("conflict_candidate"))
	case dirty:
		return Warning(Label("dirty"))
	case externallyModified:
		return Info(Label("externally_modified"))
	default:
		return Success(Label("clean"))
	}
}

// DiffLine colors a rendered diff line by its leading marker.
func DiffLine(line string) string {
	switch {
	case strings.HasPrefix(line, "+"):
		return Added(line)
	case strings.HasPrefix(line, "-"):
		return Removed(line)
	default:
		return Dim(line)
	}
}

// ConfigureColors applies a color mode of auto, always or never.
// NO_COLOR and noColor force colors off regardless of mode.
func ConfigureColors(mode string, noColor bool) error {
	if noColor || os.Getenv("NO_COLOR") != "" {
		DisableColors()
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		// fatih/color already detected the terminal at init
		return nil
	case "always":
		EnableColors()
	case "never":
		DisableColors()
	default:
		return fmt.Errorf("invalid color mode %q (valid: auto, always, never)", mode)
	}
	return nil
}

// DisableColors disables all color output.
// This is useful for piping output or for users who prefer no colors.
func DisableColors() {
	color.NoColor = true
}

// EnableColors enables color output.
func EnableColors() {
	color.NoColor = false
}

// IsColorEnabled returns whether colors are currently enabled.
func IsColorEnabled() bool {
	return !color.NoColor
}
