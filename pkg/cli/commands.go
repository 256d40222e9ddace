package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/slnstrip/slnstrip/pkg/cleaner"
	"github.com/slnstrip/slnstrip/pkg/config"
	"github.com/slnstrip/slnstrip/pkg/launcher"
	"github.com/slnstrip/slnstrip/pkg/lock"
	"github.com/slnstrip/slnstrip/pkg/logger"
	"github.com/slnstrip/slnstrip/pkg/notifier"
	"github.com/slnstrip/slnstrip/pkg/revision"
	"github.com/slnstrip/slnstrip/pkg/solution"
	"github.com/slnstrip/slnstrip/pkg/tracing"
	"github.com/spf13/cobra"
)

func (c *CLI) newLaunchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "launch",
		Short: "Start a background cleaner for this project's solution (default)",
		Long: `Read the project name from CMakeLists.txt, print where the solution is
expected and start a detached cleaner for it. A missing or unreadable project
file is reported but does not fail the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLaunch(cmd.Context())
		},
	}
}

func (c *CLI) runLaunch(ctx context.Context) error {
	l, err := launcher.New(c.settings, launcher.Options{
		Root:       c.config.ProjectRoot,
		Executable: c.executable,
		ConfigFile: c.config.ConfigFile,
		Console:    c.console,
		Logger:     c.logger,
		Spawner:    c.spawner,
	})
	if err != nil {
		return err
	}

	_, err = l.Launch(tracing.Enrich(ctx, "launch"))
	if err != nil && launcher.IsRecoverable(err) {
		return nil
	}
	return err
}

func (c *CLI) newCleanCmd() *cobra.Command {
	var runID string
	var noWait bool
	var detached bool

	cmd := &cobra.Command{
		Use:   "clean <solution>",
		Short: "Strip ALL_BUILD from a solution file",
		Long: `Take the run-lock, wait for the solution to appear and remove every
ALL_BUILD project block from it. This is what the launcher runs in the
background; run it by hand if the background cleaner gave up.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runClean(cmd.Context(), args[0], runID, noWait, detached)
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "correlation id from the launcher")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "strip immediately instead of waiting for the file")
	cmd.Flags().BoolVar(&detached, "detached", false, "running as the launcher's background cleaner")
	cmd.Flags().MarkHidden("detached")

	return cmd
}

func (c *CLI) runClean(ctx context.Context, target, runID string, noWait, detached bool) error {
	log := c.logger
	if detached {
		// stdout is already redirected to the log file
		log = c.createLogger("")
	}

	ctx = tracing.Enrich(tracing.WithRunID(ctx, runID), "clean")
	n := notifier.New(notifier.Config{Enabled: c.settings.Notifications.Enabled}, log)
	cl := cleaner.New(c.settings, c.config.ProjectRoot, log, n, nil)

	var result *cleaner.Result
	var err error
	if noWait {
		result, err = cl.StripNow(ctx, target)
	} else {
		result, err = cl.Run(ctx, target)
	}

	switch {
	case errors.Is(err, lock.ErrAlreadyLocked):
		c.console.Warn("Already running")
		return nil
	case err != nil:
		return fmt.Errorf("clean %s: %w", target, err)
	}

	switch result.Outcome {
	case cleaner.OutcomeStripped:
		c.console.Success(fmt.Sprintf("Removed %d block(s), %d line(s) from %s", result.Blocks, result.Removed, target))
	case cleaner.OutcomeNotFound:
		c.console.Info(fmt.Sprintf("%s not found", target))
	}
	return nil
}

func (c *CLI) newGitInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gitinfo",
		Short: "Write the git revision header",
		Long:  `Write a C++ header exposing the abbreviated HEAD revision as GIT_VERSION_INFO.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stamper := revision.NewStamper(c.config.ProjectRoot, c.settings.Revision.HeaderPath,
				c.settings.Revision.Length, nil, c.logger)

			rev, err := stamper.Stamp(cmd.Context())
			if err != nil {
				return err
			}
			c.console.Success(fmt.Sprintf("%s -> %s", rev, stamper.HeaderPath()))
			return nil
		},
	}
}

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the expected solution and run-lock state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus()
		},
	}
}

func (c *CLI) runStatus() error {
	l, err := launcher.New(c.settings, launcher.Options{
		Root:       c.config.ProjectRoot,
		Executable: "slnstrip",
		Console:    c.console,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	defer w.Flush()

	project, target, err := l.Target()
	if err != nil {
		if !launcher.IsRecoverable(err) {
			return err
		}
		fmt.Fprintf(w, "PROJECT\t%s\n", color.RedString(err.Error()))
	} else {
		fmt.Fprintf(w, "PROJECT\t%s\n", project.Name)
		fmt.Fprintf(w, "SOLUTION\t%s\n", target)
		fmt.Fprintf(w, "STATE\t%s\n", solutionState(target, c.settings))
	}

	lockPath := c.resolve(c.settings.LockFile)
	locked, err := lock.IsLocked(lockPath)
	if err != nil {
		return err
	}
	lockState := color.GreenString("free")
	if locked {
		lockState = color.YellowString("held (%s)", lockPath)
	}
	fmt.Fprintf(w, "LOCK\t%s\n", lockState)
	return nil
}

func solutionState(target string, settings *config.Config) string {
	dirty, err := solution.FileContainsMarker(target, solution.NewStripper(settings.Marker, settings.BlockLength))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return color.WhiteString("missing")
	case err != nil:
		return color.RedString(err.Error())
	case dirty:
		return color.YellowString("contains %s", settings.Marker)
	default:
		return color.GreenString("clean")
	}
}

func (c *CLI) newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Remove a stale run-lock",
		Long: `Remove the run-lock left behind by a cleaner that was killed while holding
it. Only use this when no cleaner is running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lockPath := c.resolve(c.settings.LockFile)
			removed, err := lock.Remove(lockPath)
			if err != nil {
				return err
			}
			if removed {
				c.logger.Warn("Removed run-lock", logger.WithField("path", lockPath))
				c.console.Success(fmt.Sprintf("Removed %s", lockPath))
			} else {
				c.console.Info("No run-lock present")
			}
			return nil
		},
	}
}

func (c *CLI) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default slnstrip.config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(c.config.ProjectRoot, config.ConfigName+".yaml")
			if err := config.Save(path, config.Default()); err != nil {
				if errors.Is(err, os.ErrExist) {
					return fmt.Errorf("%s already exists", path)
				}
				return err
			}
			c.console.Success(fmt.Sprintf("Created %s", path))
			return nil
		},
	}
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the slnstrip version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(c.output, "🧹 slnstrip v%s\n", c.config.Version)
			return nil
		},
	}
}
