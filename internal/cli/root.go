// Package cli provides the command-line interface for tafel.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kacperjurak/tafelcore/pkg/config"
)

// Version is set at build time.
var Version = "0.1.0"

// app carries state shared by the subcommands of one invocation.
type app struct {
	configPath string
	quiet      bool

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "tafel",
		Short: "Tafel analysis of cyclic voltammetry sweeps",
		Long: `Tafel finds the linear Tafel region of cyclic voltammetry sweeps and
reports the Tafel slope, exchange current density, onset potential and the
potential at a reference current density.

Configuration is read from an optional YAML file, then TAFEL_* environment
variables, then command-line flags.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// version and help need no configuration
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.closeLog != nil {
				if err := a.closeLog(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to close log file: %v\n", err)
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "only print results, warnings and errors")

	rootCmd.AddCommand(newAnalyzeCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// setup loads the configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.quiet {
		cfg.Quiet = true
	}
	if cfg.Quiet && (cfg.Logging.Level == "" || cfg.Logging.Level == "info" || cfg.Logging.Level == "debug") {
		cfg.Logging.Level = "warn"
	}

	logger, closeLog, err := config.SetupLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	a.closeLog = closeLog
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tafel %s\n", Version)
		},
	}
}
