package cli

import (
	"context"
	"fmt"

	"github.com/slnstrip/slnstrip/internal/watcher"
	"github.com/slnstrip/slnstrip/pkg/cleaner"
	"github.com/slnstrip/slnstrip/pkg/launcher"
	"github.com/slnstrip/slnstrip/pkg/notifier"
	"github.com/slnstrip/slnstrip/pkg/process"
	"github.com/slnstrip/slnstrip/pkg/solution"
	"github.com/slnstrip/slnstrip/pkg/tracing"
	"github.com/spf13/cobra"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [solution]",
		Short: "Keep the solution free of ALL_BUILD across regenerations",
		Long: `Watch the solution file and strip ALL_BUILD every time CMake rewrites it.
Without an argument the solution path is derived from CMakeLists.txt.
Stops on Ctrl+C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) > 0 {
				target = args[0]
			}
			return c.runWatch(cmd.Context(), target)
		},
	}
}

func (c *CLI) runWatch(parent context.Context, target string) error {
	if target == "" {
		l, err := launcher.New(c.settings, launcher.Options{
			Root:       c.config.ProjectRoot,
			Executable: "slnstrip",
			Console:    c.console,
			Logger:     c.logger,
		})
		if err != nil {
			return err
		}
		if _, target, err = l.Target(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(tracing.Enrich(tracing.WithRunID(parent, ""), "watch"))
	defer cancel()

	manager := process.NewManager(c.logger)
	manager.RegisterShutdownHandler(cancel)
	manager.Start(ctx)
	defer manager.Stop()

	fw, err := watcher.NewFileWatcher(target, c.settings.Watch.SettlingDuration(), c.logger)
	if err != nil {
		return err
	}
	defer fw.Close()

	n := notifier.New(notifier.Config{Enabled: c.settings.Notifications.Enabled}, c.logger)
	cl := cleaner.New(c.settings, c.config.ProjectRoot, c.logger, n, nil)
	svc := watcher.NewService(fw, cl, solution.NewStripper(c.settings.Marker, c.settings.BlockLength), c.logger)

	c.console.Info(fmt.Sprintf("Watching %s (Ctrl+C to stop)", fw.Target()))
	if err := svc.Run(ctx); err != nil {
		return err
	}
	c.console.Success("Stopped watching")
	return nil
}
