package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	stdsync "sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/model"
	docsync "github.com/klauern/docsync/internal/sync"
	"github.com/klauern/docsync/internal/ui"
	"github.com/klauern/docsync/internal/watch"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch the external directory and detect conflicts as files change",
		Description: `Flags cached documents as externally modified when their files change
   and runs detection on each debounced batch. When watch.auto_resolve is
   set to keepLocal or keepExternal, detected conflicts are resolved with it.`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "for",
				Usage: "Stop after this long (0 = until interrupted)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if d := cmd.Duration("for"); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			return withWorkspace(ctx, true, func(ws *workspace) error {
				out := &lockedWriter{w: stdout(cmd)}
				autoResolve, auto := ws.cfg.AutoResolveStrategy()
				if ws.cfg.Watch.AutoResolve != "" && !auto {
					fmt.Fprintln(out, ui.StatusWarning(fmt.Sprintf("Ignoring watch.auto_resolve %q: use keepLocal or keepExternal", ws.cfg.Watch.AutoResolve)))
				}

				w := watch.New(ws.store, ws.cache, watch.Config{
					Extensions: ws.cfg.Store.Extensions,
					Debounce:   ws.cfg.Watch.Debounce,
					OnChange: func(ctx context.Context, paths []string) {
						onWatchBatch(ctx, out, ws.engine, paths, autoResolve, auto)
					},
				})
				if err := w.Start(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, ui.Info(fmt.Sprintf("Watching %s (Ctrl+C to stop)", ws.store.Root())))

				<-ctx.Done()
				if err := w.Stop(); err != nil {
					logging.Warn("failed to stop watcher", logging.Err(err))
				}
				fmt.Fprintln(out, ui.Dim("Stopped watching"))
				return nil
			})
		},
	}
}

// onWatchBatch runs detection on the documents flagged in one batch and
// optionally resolves what it finds.
func onWatchBatch(ctx context.Context, out io.Writer, engine *docsync.Engine, paths []string, strategy model.Resolution, auto bool) {
	if len(paths) == 0 {
		return
	}
	stamp := time.Now().Format("15:04:05")
	fmt.Fprintf(out, "%s %d document(s) changed externally\n", ui.Dim(stamp), len(paths))

	result := engine.DetectConflicts(ctx, paths...)
	for _, e := range result.Errors {
		fmt.Fprintln(out, ui.StatusError(fmt.Sprintf("%s: %s", e.Path, e.Error)))
	}
	for _, c := range result.Conflicts {
		printConflict(out, c, false)
	}
	if !auto || len(result.Conflicts) == 0 {
		return
	}
	printResults(out, engine.ResolveAllConflicts(ctx, strategy))
}

// lockedWriter serializes writes from the watcher goroutine and the command.
type lockedWriter struct {
	mu stdsync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
