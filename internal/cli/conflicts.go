package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/klauern/docsync/internal/journal"
	"github.com/klauern/docsync/internal/model"
	docsync "github.com/klauern/docsync/internal/sync"
	"github.com/klauern/docsync/internal/ui"
)

// maxPreviewLines bounds the diff lines printed per conflict.
const maxPreviewLines = 10

func detectCommand() *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Usage:     "Find documents whose local and external copies diverged",
		ArgsUsage: "[paths...]",
		Description: `Checks the given paths, or every dirty document when none are given.
   Documents whose copies turn out identical are marked synced.`,
		Flags: []cli.Flag{
			noScanFlag(),
			&cli.BoolFlag{
				Name:  "diff",
				Usage: "Print a diff preview for each conflict",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the detection result as JSON",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withWorkspace(ctx, true, func(ws *workspace) error {
				result, err := ws.detect(ctx, cmd.Bool("no-scan"), cmd.Args().Slice())
				if err != nil {
					return err
				}
				out := stdout(cmd)

				if cmd.Bool("json") {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(result); err != nil {
						return err
					}
				} else {
					printDetection(out, result, cmd.Bool("diff"))
				}

				if !result.Success {
					return fmt.Errorf("detection %w: %d path(s)", errFailures, len(result.Errors))
				}
				return nil
			})
		},
	}
}

func printDetection(out io.Writer, result model.DetectionResult, withDiff bool) {
	for _, e := range result.Errors {
		label := e.Path
		if label == "" {
			label = "detection"
		}
		fmt.Fprintln(out, ui.StatusError(fmt.Sprintf("%s: %s", label, e.Error)))
	}
	if len(result.Conflicts) == 0 {
		fmt.Fprintln(out, ui.StatusSuccess(fmt.Sprintf("No conflicts in %d checked path(s)", len(result.CheckedPaths))))
		return
	}

	fmt.Fprintf(out, "%s\n", ui.Bold(fmt.Sprintf("%d conflict(s) in %d checked path(s)", len(result.Conflicts), len(result.CheckedPaths))))
	for _, c := range result.Conflicts {
		printConflict(out, c, withDiff)
	}
}

func printConflict(out io.Writer, c model.Conflict, withDiff bool) {
	hunks := docsync.Diff(c.LocalContent, c.ExternalContent)
	summary := docsync.DiffSummary(hunks)
	if c.ExternallyDeleted() {
		summary += ", external missing"
	}
	fmt.Fprintf(out, "%s %s\n", ui.ConflictStatus(c.Status), ui.Bold(c.Path))
	fmt.Fprintf(out, "    %s %s\n", ui.Dim("id:"), c.ID)
	fmt.Fprintf(out, "    %s %s\n", ui.Dim("changes:"), summary)
	if withDiff {
		printDiffPreview(out, hunks, maxPreviewLines)
	}
}

// printDiffPreview prints up to limit diff lines, then a truncation note.
func printDiffPreview(out io.Writer, hunks []docsync.DiffHunk, limit int) {
	shown := 0
	for i, hunk := range hunks {
		if shown >= limit {
			fmt.Fprintln(out, ui.Dim(fmt.Sprintf("    ... (%d more hunk(s) not shown)", len(hunks)-i)))
			return
		}
		fmt.Fprintln(out, ui.Info(fmt.Sprintf("    @@ -%d,%d +%d,%d @@",
			hunk.LocalStart, hunk.LocalCount, hunk.ExternalStart, hunk.ExternalCount)))
		for _, line := range hunk.Lines {
			if shown >= limit {
				fmt.Fprintln(out, ui.Dim("    ... (truncated)"))
				break
			}
			fmt.Fprintln(out, "    "+ui.DiffLine(line.String()))
			shown++
		}
	}
}

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Detect conflicts and resolve them all with one strategy",
		ArgsUsage: "[paths...]",
		Description: `Strategies:
     keepLocal     push the cached copy to the external directory
     keepExternal  replace the cached copy with the external file
     merge         write --merged-file to both sides (exactly one path)

   Examples:
     docsync resolve --strategy keepExternal
     docsync resolve --strategy merge --merged-file merged.md notes/a.md`,
		Flags: []cli.Flag{
			noScanFlag(),
			&cli.StringFlag{
				Name:    "strategy",
				Aliases: []string{"s"},
				Usage:   "Resolution strategy (defaults to sync.default_strategy)",
			},
			&cli.StringFlag{
				Name:  "merged-file",
				Usage: `File holding the merged content ("-" for standard input)`,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			strategy := cfg.GetStrategy()
			if s := cmd.String("strategy"); s != "" {
				parsed, err := model.ParseResolution(s)
				if err != nil {
					return err
				}
				strategy = parsed
			}

			paths := cmd.Args().Slice()
			var opts []docsync.ResolveOption
			if strategy == model.Merge {
				if len(paths) != 1 || !cmd.IsSet("merged-file") {
					return errors.New("merge requires exactly one path and --merged-file")
				}
				merged, err := readContent(cmd, cmd.String("merged-file"))
				if err != nil {
					return err
				}
				opts = append(opts, docsync.WithMergedContent(merged))
			} else if cmd.IsSet("merged-file") {
				return errors.New("--merged-file is only valid with --strategy merge")
			}

			return withWorkspace(ctx, true, func(ws *workspace) error {
				out := stdout(cmd)
				detection, err := ws.detect(ctx, cmd.Bool("no-scan"), paths)
				if err != nil {
					return err
				}
				for _, e := range detection.Errors {
					fmt.Fprintln(out, ui.StatusError(fmt.Sprintf("%s: %s", e.Path, e.Error)))
				}

				var results []model.ResolutionResult
				if strategy == model.Merge {
					for _, c := range detection.Conflicts {
						results = append(results, ws.engine.ResolveConflict(ctx, c.ID, strategy, opts...))
					}
				} else {
					results = ws.engine.ResolveAllConflicts(ctx, strategy)
				}

				if len(results) == 0 {
					fmt.Fprintln(out, ui.StatusSuccess("No conflicts to resolve"))
				}
				failed := printResults(out, results)
				if failed > 0 || !detection.Success {
					return fmt.Errorf("resolve %w: %d resolution(s), %d detection error(s)", errFailures, failed, len(detection.Errors))
				}
				return nil
			})
		},
	}
}

// printResults prints one line per resolution and returns the failure count.
func printResults(out io.Writer, results []model.ResolutionResult) int {
	failed := 0
	for _, r := range results {
		if r.Success {
			fmt.Fprintln(out, ui.StatusSuccess(fmt.Sprintf("%s resolved with %s", r.Conflict.Path, r.Conflict.Resolution)))
			continue
		}
		failed++
		label := r.Conflict.Path
		if label == "" {
			label = r.Conflict.ID
		}
		fmt.Fprintln(out, ui.StatusError(fmt.Sprintf("%s: %s", label, r.Error)))
	}
	return failed
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recently resolved conflicts from the journal",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   docsync.HistoryCapacity,
				Usage:   "Maximum number of entries (0 = all)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			out := stdout(cmd)
			if !cfg.Journal.Enabled {
				fmt.Fprintln(out, ui.StatusWarning("The journal is disabled; no history is recorded"))
				return nil
			}

			entries, err := journal.ReadResolved(cfg.JournalPath(), int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, ui.Dim("No resolved conflicts"))
				return nil
			}

			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-14s %s\n",
					e.ResolvedAt.Local().Format("2006-01-02 15:04:05"),
					e.Resolution,
					ui.Bold(e.Path),
				)
				fmt.Fprintf(out, "    %s %s\n", ui.Dim("local:   "), oneLine(e.LocalPreview))
				fmt.Fprintf(out, "    %s %s\n", ui.Dim("external:"), oneLine(e.ExternalPreview))
			}
			return nil
		},
	}
}

// oneLine flattens a preview for single-line display.
func oneLine(s string) string {
	if s == "" {
		return "(empty)"
	}
	return strings.Join(strings.Fields(s), " ")
}
