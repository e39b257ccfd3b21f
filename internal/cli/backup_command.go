package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/klauern/docsync/internal/backup"
	"github.com/klauern/docsync/internal/ui"
)

func backupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Manage copies of external files taken before they were overwritten",
		Commands: []*cli.Command{
			backupListCommand(),
			backupRestoreCommand(),
			backupCleanCommand(),
		},
	}
}

// withBackups opens a workspace and hands its backup store to fn.
func withBackups(ctx context.Context, mutating bool, fn func(ws *workspace) error) error {
	return withWorkspace(ctx, mutating, func(ws *workspace) error {
		if ws.backups == nil {
			return errors.New("backups are disabled (backup.enabled is false)")
		}
		return fn(ws)
	})
}

func backupListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List backups, newest first",
		ArgsUsage: "[path]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withBackups(ctx, false, func(ws *workspace) error {
				backups, err := ws.backups.List(cmd.Args().First())
				if err != nil {
					return err
				}
				out := stdout(cmd)
				if len(backups) == 0 {
					fmt.Fprintln(out, ui.Dim("No backups"))
					return nil
				}
				fmt.Fprintln(out, ui.Header(fmt.Sprintf("%-34s %-19s %8s  %s", "ID", "CREATED", "SIZE", "PATH")))
				for _, b := range backups {
					fmt.Fprintf(out, "%-34s %-19s %8d  %s\n",
						b.ID,
						b.CreatedAt.Local().Format("2006-01-02 15:04:05"),
						b.Size,
						b.Path,
					)
				}
				return nil
			})
		},
	}
}

func backupRestoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Write a backup back to the external directory",
		ArgsUsage: "<id>",
		Description: `Restores the external file and flags the cached document as externally
   modified, so the next detection compares it with any local edit.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("restore requires exactly one backup id")
			}
			return withBackups(ctx, true, func(ws *workspace) error {
				meta, err := ws.backups.Restore(ctx, cmd.Args().First())
				if err != nil {
					return err
				}
				if _, err := ws.cache.MarkExternallyModified(ctx, meta.Path); err != nil {
					return err
				}
				fmt.Fprintln(stdout(cmd), ui.StatusSuccess(fmt.Sprintf("Restored %s from %s", meta.Path, meta.ID)))
				return nil
			})
		},
	}
}

func backupCleanCommand() *cli.Command {
	defaults := backup.DefaultCleanupOptions()
	return &cli.Command{
		Name:  "clean",
		Usage: "Delete old backups",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "keep",
				Value: 10,
				Usage: "Backups to keep per document",
			},
			&cli.DurationFlag{
				Name:  "max-age",
				Value: defaults.MaxAge,
				Usage: "Delete backups older than this (0 = no age limit)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Show what would be deleted",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withBackups(ctx, true, func(ws *workspace) error {
				deleted, err := ws.backups.Cleanup(backup.CleanupOptions{
					MaxBackups:     int(cmd.Int("keep")),
					MaxAge:         cmd.Duration("max-age"),
					KeepAtLeastOne: true,
					DryRun:         cmd.Bool("dry-run"),
				})
				if err != nil {
					return err
				}

				out := stdout(cmd)
				verb := "Deleted"
				if cmd.Bool("dry-run") {
					verb = "Would delete"
				}
				for _, id := range deleted {
					fmt.Fprintln(out, ui.StatusSkipped(id))
				}
				fmt.Fprintln(out, ui.StatusSuccess(fmt.Sprintf("%s %d backup(s)", verb, len(deleted))))

				if stats, err := ws.backups.Stats(); err == nil && stats.TotalBackups > 0 {
					fmt.Fprintf(out, "%d backup(s) of %d document(s), %d bytes, newest %s\n",
						stats.TotalBackups, stats.Documents, stats.TotalSize,
						stats.NewestBackup.Local().Format(time.DateTime))
				}
				return nil
			})
		},
	}
}
