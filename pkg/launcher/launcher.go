// Package launcher implements the foreground half of slnstrip. It derives the
// solution path from the project file, tells the user where to look and
// hands the real work to a detached cleaner process.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slnstrip/slnstrip/pkg/analyzers"
	"github.com/slnstrip/slnstrip/pkg/config"
	"github.com/slnstrip/slnstrip/pkg/logger"
	"github.com/slnstrip/slnstrip/pkg/process"
	"github.com/slnstrip/slnstrip/pkg/tracing"
)

// Spawner starts the cleaner without waiting for it
type Spawner interface {
	Spawn(spec process.Spec) (int, error)
}

// SpawnerFunc adapts a function to Spawner
type SpawnerFunc func(spec process.Spec) (int, error)

// Spawn implements Spawner
func (f SpawnerFunc) Spawn(spec process.Spec) (int, error) {
	return f(spec)
}

// DetachedSpawner spawns through process.SpawnDetached
var DetachedSpawner Spawner = SpawnerFunc(process.SpawnDetached)

// Options configures a Launcher
type Options struct {
	Root string
	// Executable is the binary re-run as the cleaner; defaults to os.Executable
	Executable string
	// ConfigFile is forwarded to the cleaner so both processes load the same settings
	ConfigFile string
	Console    *logger.ConsoleLogger
	Logger     logger.Logger
	Spawner    Spawner
}

// Launcher computes the target and starts the cleaner
type Launcher struct {
	cfg        *config.Config
	root       string
	executable string
	configFile string
	console    *logger.ConsoleLogger
	logger     logger.Logger
	spawner    Spawner
}

// Result describes a successful launch
type Result struct {
	Project *analyzers.CMakeProject
	Target  string
	RunID   string
	PID     int
}

// New creates a launcher
func New(cfg *config.Config, opts Options) (*Launcher, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	executable := opts.Executable
	if executable == "" {
		executable, err = os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate slnstrip executable: %w", err)
		}
	}

	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	console := opts.Console
	if console == nil {
		console = logger.NewConsoleLogger(nil, nil)
	}
	spawner := opts.Spawner
	if spawner == nil {
		spawner = DetachedSpawner
	}

	return &Launcher{
		cfg:        cfg,
		root:       absRoot,
		executable: executable,
		configFile: opts.ConfigFile,
		console:    console,
		logger:     log.WithComponent("launcher"),
		spawner:    spawner,
	}, nil
}

// IsRecoverable reports whether err is a project-file problem that the
// launcher reports without failing the build step
func IsRecoverable(err error) bool {
	return errors.Is(err, analyzers.ErrProjectFileNotFound) ||
		errors.Is(err, analyzers.ErrMalformedProject) ||
		errors.Is(err, analyzers.ErrNoProjectDeclaration)
}

// Target derives the solution path from the project file
func (l *Launcher) Target() (*analyzers.CMakeProject, string, error) {
	analyzer := analyzers.NewCMakeAnalyzer(l.root, l.cfg.ProjectFile)
	project, err := analyzer.AnalyzeProject()
	if err != nil {
		return nil, "", err
	}
	target := project.SolutionPath(filepath.Join(l.root, l.cfg.OutputDir), l.cfg.SolutionExtension)
	return project, target, nil
}

// Launch derives the target, prints the notice and spawns the cleaner.
// Project-file problems are reported on the console and returned; check them
// with IsRecoverable.
func (l *Launcher) Launch(ctx context.Context) (*Result, error) {
	ctx = tracing.WithRunID(ctx, tracing.GetRunID(ctx))
	log := logger.WithContext(ctx, l.logger)
	runID := tracing.GetRunID(ctx)

	project, target, err := l.Target()
	if err != nil {
		if IsRecoverable(err) {
			l.console.Warn(fmt.Sprintf("Nothing to clean: %v", err))
			log.Debug("Project file problem", logger.WithError(err))
		} else {
			l.console.Error(fmt.Sprintf("Failed to read project: %v", err))
		}
		return nil, err
	}

	l.console.Info(fmt.Sprintf("Solution: %s", target))
	l.console.Warn(fmt.Sprintf("ALL_BUILD is removed in the background within %s (run %s). If it is still there, run: slnstrip clean %s",
		l.cfg.Wait.Window(), runID, target))

	spec := process.Spec{
		Path:    l.executable,
		Args:    l.cleanerArgs(target, runID),
		Dir:     l.root,
		LogFile: l.logFilePath(),
	}

	pid, err := l.spawner.Spawn(spec)
	if err != nil {
		l.console.Error(fmt.Sprintf("Failed to start cleaner: %v", err))
		return nil, fmt.Errorf("failed to start cleaner: %w", err)
	}

	log.Info("Cleaner started",
		logger.WithField("pid", pid),
		logger.WithField("project", project.Name),
		logger.WithField("target", target))

	return &Result{
		Project: project,
		Target:  target,
		RunID:   runID,
		PID:     pid,
	}, nil
}

func (l *Launcher) cleanerArgs(target, runID string) []string {
	// --detached: the child's stdout already is the log file
	args := []string{"clean", target, "--run-id", runID, "--root", l.root, "--detached"}
	if l.configFile != "" {
		configFile := l.configFile
		if abs, err := filepath.Abs(configFile); err == nil {
			configFile = abs
		}
		args = append(args, "--config", configFile)
	}
	return args
}

func (l *Launcher) logFilePath() string {
	if l.cfg.LogFile == "" || filepath.IsAbs(l.cfg.LogFile) {
		return l.cfg.LogFile
	}
	return filepath.Join(l.root, l.cfg.LogFile)
}
