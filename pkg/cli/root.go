// Package cli provides the command-line interface for slnstrip
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/slnstrip/slnstrip/pkg/config"
	"github.com/slnstrip/slnstrip/pkg/launcher"
	"github.com/slnstrip/slnstrip/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CLI wires the cobra command tree to one set of flags and settings
type CLI struct {
	config   *Config
	settings *config.Config
	rootCmd  *cobra.Command
	logger   logger.Logger
	logFile  io.Closer
	console  *logger.ConsoleLogger
	output   io.Writer
	errorOut io.Writer

	// spawner and executable start the detached cleaner; replaced in tests
	spawner    launcher.Spawner
	executable string
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(cfg *Config) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}

	cli := &CLI{
		config:   cfg,
		output:   os.Stdout,
		errorOut: os.Stderr,
	}

	cli.setupCommands()
	return cli
}

// NewCLIWithOutput creates a CLI with custom output writers (for testing)
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	cli := NewCLI(cfg)
	cli.output = output
	cli.errorOut = errorOut
	cli.rootCmd.SetOut(output)
	cli.rootCmd.SetErr(errorOut)
	return cli
}

// SetSpawner replaces the way the launcher starts the cleaner
func (c *CLI) SetSpawner(spawner launcher.Spawner, executable string) {
	c.spawner = spawner
	c.executable = executable
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	defer c.closeLogFile()
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

func (c *CLI) closeLogFile() {
	if c.logFile == nil {
		return
	}
	c.logFile.Close()
	c.logFile = nil
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "slnstrip",
		Short: "Removes the ALL_BUILD project from generated Visual Studio solutions",
		Long: `🧹 slnstrip - keeps ALL_BUILD out of your generated solution

Run slnstrip after the CMake configure step. It reads the project name from
CMakeLists.txt, works out where the solution will be written and starts a
background cleaner that strips the ALL_BUILD project block as soon as the
solution appears.`,

		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: c.initializeConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLaunch(cmd.Context())
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("🧹 slnstrip v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newLaunchCmd())
	c.rootCmd.AddCommand(c.newCleanCmd())
	c.rootCmd.AddCommand(c.newWatchCmd())
	c.rootCmd.AddCommand(c.newGitInfoCmd())
	c.rootCmd.AddCommand(c.newStatusCmd())
	c.rootCmd.AddCommand(c.newUnlockCmd())
	c.rootCmd.AddCommand(c.newInitCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", "", "config file (default: slnstrip.config.yaml in the project root)")
	flags.StringVar(&c.config.ProjectRoot, "root", ".", "project root directory")
	flags.StringVarP(&c.config.Verbosity, "verbosity", "v", "", "log level (debug, info, warn, error)")
}

func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	c.console = logger.NewConsoleLogger(c.output, c.errorOut)

	settings, err := config.Load(viper.New(), c.config.ProjectRoot, c.config.ConfigFile)
	if err != nil {
		return err
	}
	if c.config.Verbosity != "" {
		settings.LogLevel = c.config.Verbosity
	}
	c.settings = settings

	c.logger = c.createLogger(settings.LogFile)
	c.logger.Debug("Configuration loaded",
		logger.WithField("root", c.config.ProjectRoot),
		logger.WithField("config", c.config.ConfigFile))
	return nil
}

// createLogger logs to the CLI's output and, when set, appends to logFile
func (c *CLI) createLogger(logFile string) logger.Logger {
	if c.output != os.Stdout {
		return logger.CreateLoggerWithOutput(c.settings.LogLevel, c.output)
	}
	log, closer := logger.CreateLoggerWithStreams(c.resolve(logFile), c.settings.LogLevel, c.output, c.errorOut)
	if logFile != "" {
		c.closeLogFile()
		c.logFile = closer
	}
	return log
}

// resolve makes a configured path relative to the project root
func (c *CLI) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.config.ProjectRoot, path)
}

// ExecuteWithVersion runs slnstrip with os.Args
func ExecuteWithVersion(version string) error {
	cfg := NewConfig()
	cfg.Version = version
	return NewCLI(cfg).Execute(os.Args[1:])
}
