package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/conneroisu/girouette/internal/registry"
	"github.com/conneroisu/girouette/pkg/girouette"
	"github.com/conneroisu/girouette/pkg/router/memrouter"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Print route changes as controller files change",
	Long: `Load the controllers, then watch the controllers directory and print
every file that is added or reloaded and every reconciliation with the router.

Examples:
  girouette watch                     # Watch the configured directory
  girouette watch -c app/controllers  # Watch another directory`,
	RunE: runWatch,
}

var watchMiddleware []string

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringSliceVarP(&watchMiddleware, "middleware", "m", nil, "Middleware names to accept as pass-through")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	r := memrouter.New(stubMiddleware(watchMiddleware))
	app, err := newApp(cfg, r, newLogger(cfg), girouette.WithHotReload(true))
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if err := app.Load(ctx); err != nil {
		return err
	}
	writeFailures(cmd.ErrOrStderr(), failureInfos(app.Failures()))
	fmt.Fprintf(out, "Loaded %d controllers, %d routes\n", len(app.Entries()), len(r.Routes()))

	events := app.Subscribe()
	defer app.Unsubscribe(events)

	if err := app.Watch(ctx); err != nil {
		return fmt.Errorf("failed to watch controllers: %w", err)
	}
	fmt.Fprintf(out, "Watching %s (press Ctrl+C to stop)\n", cfg.Controllers.Path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			writeEvent(out, ev)
		}
	}
}

func writeEvent(w io.Writer, ev registry.Event) {
	stamp := ev.Timestamp.Format("15:04:05")

	switch ev.Type {
	case registry.EventTypeAdded, registry.EventTypeUpdated:
		mark, c := "+", color.New(color.FgGreen)
		if ev.Type == registry.EventTypeUpdated {
			mark, c = "~", color.New(color.FgYellow)
		}
		routes := 0
		if ev.Entry != nil && ev.Entry.Result != nil {
			routes = ev.Entry.Result.Len()
		}
		c.Fprintf(w, "%s %s %s (%d routes)\n", stamp, mark, ev.Path, routes)
	case registry.EventTypeReconciled:
		fmt.Fprintf(w, "%s = %d routes committed\n", stamp, ev.Routes)
		if len(ev.Skipped) > 0 {
			color.New(color.FgRed).Fprintf(w, "    skipped: %s\n", strings.Join(ev.Skipped, ", "))
		}
	}
	if ev.Err != nil {
		color.New(color.FgRed).Fprintf(w, "    error: %v\n", ev.Err)
	}
}
