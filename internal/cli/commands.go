package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/klauern/docsync/internal/config"
	"github.com/klauern/docsync/internal/fsstore"
	"github.com/klauern/docsync/internal/progress"
	"github.com/klauern/docsync/internal/ui"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Display the effective configuration",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "toml",
				Usage: "Print as TOML instead of YAML",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			data, err := cfg.Encode(cmd.Bool("toml"))
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			out := stdout(cmd)
			fmt.Fprintf(out, "# %s\n", configPath(cmd))
			_, err = out.Write(data)
			return err
		},
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a default config file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing config file",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					path := configPath(cmd)
					if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
						return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
					}
					if err := config.Default().SaveToPath(path); err != nil {
						return fmt.Errorf("failed to write config: %w", err)
					}
					fmt.Fprintln(stdout(cmd), ui.StatusSuccess("Wrote "+path))
					return nil
				},
			},
		},
	}
}

func configPath(cmd *cli.Command) string {
	if path := cmd.Root().String("config"); path != "" {
		return path
	}
	return config.FilePath()
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Seed the cache with clean copies of the external documents",
		Description: `Walks the external root and stores every document with a configured
   extension in the cache. Documents with unsynced local edits are left
   alone unless --force is given.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite documents that have local edits",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withWorkspace(ctx, true, func(ws *workspace) error {
				docs, err := ws.store.Walk(ws.cfg.Store.Extensions)
				if err != nil {
					return err
				}

				force := cmd.Bool("force")
				skipped := 0
				failed, err := progress.Each(ctx, progress.Options{
					Description: "Importing",
					Writer:      stderr(cmd),
				}, docs, func(ctx context.Context, doc string) error {
					if !force {
						dirty, err := ws.cache.IsDirty(ctx, doc)
						if err != nil {
							return err
						}
						if dirty {
							skipped++
							return nil
						}
					}
					content, err := ws.store.ReadFile(ctx, doc)
					if err != nil {
						return err
					}
					return ws.cache.Import(ctx, doc, content)
				})
				if err != nil {
					return err
				}

				out := stdout(cmd)
				for _, f := range failed {
					fmt.Fprintln(out, ui.StatusError(f.Error()))
				}
				imported := len(docs) - skipped - len(failed)
				fmt.Fprintln(out, ui.StatusSuccess(fmt.Sprintf("Imported %d document(s) from %s", imported, ws.store.Root())))
				if skipped > 0 {
					fmt.Fprintln(out, ui.StatusSkipped(fmt.Sprintf("%d document(s) with local edits left untouched", skipped)))
				}
				if len(failed) > 0 {
					return fmt.Errorf("import %w: %d document(s)", errFailures, len(failed))
				}
				return nil
			})
		},
	}
}

func stageCommand() *cli.Command {
	return &cli.Command{
		Name:      "stage",
		Usage:     "Write new local content for a document into the cache",
		ArgsUsage: "<path> [file|-]",
		Description: `Stores content as the local copy of <path> and marks it dirty.
   Content is read from file, or from standard input when file is "-" or omitted.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() < 1 || args.Len() > 2 {
				return errors.New("stage requires <path> and an optional content file")
			}
			doc, err := fsstore.Clean(args.Get(0))
			if err != nil {
				return err
			}

			content, err := readContent(cmd, args.Get(1))
			if err != nil {
				return err
			}

			return withWorkspace(ctx, true, func(ws *workspace) error {
				if err := ws.cache.WriteFile(ctx, doc, content); err != nil {
					return err
				}
				fmt.Fprintln(stdout(cmd), ui.StatusSuccess("Staged "+doc))
				return nil
			})
		},
	}
}

// readContent reads a file argument, or stdin for "" and "-".
func readContent(cmd *cli.Command, source string) (string, error) {
	if source == "" || source == "-" {
		data, err := io.ReadAll(stdin(cmd))
		if err != nil {
			return "", fmt.Errorf("failed to read standard input: %w", err)
		}
		return string(data), nil
	}
	// #nosec G304 - path is provided by the user
	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", source, err)
	}
	return string(data), nil
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "List cached documents and their sync state",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "changed",
				Usage: "Only show documents that are dirty or externally modified",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withWorkspace(ctx, false, func(ws *workspace) error {
				docs, err := ws.cache.List(ctx)
				if err != nil {
					return err
				}

				out := stdout(cmd)
				shown := 0
				fmt.Fprintf(out, "%s\n", ui.Header(fmt.Sprintf("%-40s %-24s %-20s %s", "PATH", "STATE", "MODIFIED", "SYNCED")))
				for _, d := range docs {
					if cmd.Bool("changed") && !d.Dirty && !d.ExternallyModified {
						continue
					}
					synced := "never"
					if d.SyncedAt != nil {
						synced = d.SyncedAt.Local().Format("2006-01-02 15:04")
					}
					fmt.Fprintf(out, "%-40s %s %-20s %s\n",
						truncate(d.Path, 40),
						padColored(ui.DocumentState(d.Dirty, d.ExternallyModified), 24),
						d.LastModified.Local().Format("2006-01-02 15:04"),
						synced,
					)
					shown++
				}
				if shown == 0 {
					fmt.Fprintln(out, ui.Dim("No documents"))
				}
				return nil
			})
		},
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// padColored pads a string that may carry ANSI codes to a visible width.
func padColored(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}
