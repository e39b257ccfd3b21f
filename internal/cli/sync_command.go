package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/klauern/docsync/internal/model"
	docsync "github.com/klauern/docsync/internal/sync"
	"github.com/klauern/docsync/internal/ui"
	"github.com/klauern/docsync/internal/ui/tui"
)

// runPicker is swapped out in tests.
var runPicker = tui.RunConflictList

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Detect conflicts and decide how to resolve each one",
		ArgsUsage: "[paths...]",
		Description: `Runs detection over the given paths (or every dirty document) and asks
   how each conflict should be resolved: keep local, keep external, or skip.

   The interactive picker is used when standard input is a terminal;
   otherwise, or with --no-tui, a line prompt is used.`,
		Flags: []cli.Flag{
			noScanFlag(),
			&cli.BoolFlag{
				Name:  "no-tui",
				Usage: "Use the line prompt instead of the interactive picker",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withWorkspace(ctx, true, func(ws *workspace) error {
				out := stdout(cmd)
				detection, err := ws.detect(ctx, cmd.Bool("no-scan"), cmd.Args().Slice())
				if err != nil {
					return err
				}
				for _, e := range detection.Errors {
					fmt.Fprintln(out, ui.StatusError(fmt.Sprintf("%s: %s", e.Path, e.Error)))
				}

				conflicts := ws.engine.GetPendingConflicts()
				if len(conflicts) == 0 {
					fmt.Fprintln(out, ui.StatusSuccess(fmt.Sprintf("No conflicts in %d checked path(s)", len(detection.CheckedPaths))))
					if !detection.Success {
						return fmt.Errorf("detection %w: %d path(s)", errFailures, len(detection.Errors))
					}
					return nil
				}

				useTUI := ws.cfg.Output.TUI && !cmd.Bool("no-tui") && isTerminal(stdin(cmd)) && isTerminal(out)
				decisions, err := decide(cmd, ws, conflicts, useTUI)
				if err != nil {
					return err
				}

				failed := applyDecisions(ctx, out, ws.engine, decisions)
				if failed > 0 || !detection.Success {
					return fmt.Errorf("sync %w: %d resolution(s), %d detection error(s)", errFailures, failed, len(detection.Errors))
				}
				return nil
			})
		},
	}
}

func decide(cmd *cli.Command, ws *workspace, conflicts []model.Conflict, useTUI bool) ([]tui.Decision, error) {
	if useTUI {
		result, err := runPicker(conflicts)
		if err != nil {
			return nil, fmt.Errorf("conflict picker failed: %w", err)
		}
		if result.Action != tui.ConflictActionResolve {
			return nil, errAborted
		}
		return result.Decisions, nil
	}

	out := stdout(cmd)
	DisplayConflictSummary(out, conflicts)
	prompter := NewConflictPrompter(stdin(cmd), out, ws.cfg.GetStrategy())
	mode, err := prompter.PromptForConflictMode(len(conflicts))
	if err != nil {
		return nil, err
	}
	switch mode {
	case ConflictModeAbort:
		return nil, errAborted
	case ConflictModeInteractive:
		return prompter.Decide(conflicts)
	default:
		return DecideAll(conflicts, mode)
	}
}

// applyDecisions resolves or skips each decided conflict and returns the
// number of failed resolutions.
func applyDecisions(ctx context.Context, out io.Writer, engine *docsync.Engine, decisions []tui.Decision) int {
	var results []model.ResolutionResult
	skipped := 0
	for _, d := range decisions {
		res, ok := d.Choice.Resolution()
		if !ok {
			if engine.SkipConflict(d.ConflictID) {
				skipped++
				fmt.Fprintln(out, ui.StatusSkipped(d.Path+" skipped"))
			}
			continue
		}
		results = append(results, engine.ResolveConflict(ctx, d.ConflictID, res))
	}

	failed := printResults(out, results)
	fmt.Fprintf(out, "\n%d resolved, %d skipped, %d failed\n", len(results)-failed, skipped, failed)
	return failed
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) // #nosec G115 - file descriptors fit in int
}
