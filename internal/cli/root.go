// Package cli implements the toki command line.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sadopc/toki/internal/config"
	"github.com/sadopc/toki/internal/daemon"
	"github.com/sadopc/toki/internal/logger"
	"github.com/sadopc/toki/internal/store"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	dataDir  string
	logLevel string
}

// config loads config.yaml from --data-dir when given, otherwise from the
// default data directory.
func (g *globals) config() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.dataDir != "" {
		cfg, err = config.LoadFile(filepath.Join(g.dataDir, "config.yaml"))
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	return cfg, nil
}

func (g *globals) logger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	return logger.NewConsole(cmd.ErrOrStderr(), cfg.LogLevel)
}

// openStore loads the config and opens the database it names.
func (g *globals) openStore() (*config.Config, *store.Store, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, nil, err
	}
	st, err := daemon.OpenStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return cfg, st, nil
}

// NewRootCmd builds the toki command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "toki",
		Short:         "toki - automatic work activity tracking",
		Long:          "toki watches the focused window, groups activity into sessions and spans, and attributes time to projects and issues.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "data directory (default: platform data dir, or $TOKI_DATA_DIR)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newInitCmd(g))
	cmd.AddCommand(newStartCmd(g))
	cmd.AddCommand(newStopCmd(g))
	cmd.AddCommand(newStatusCmd(g))
	cmd.AddCommand(newDaemonCmd(g))
	cmd.AddCommand(newLearnCmd(g))
	cmd.AddCommand(newRulesCmd(g))
	cmd.AddCommand(newSettingsCmd(g))
	cmd.AddCommand(newReportCmd(g))
	cmd.AddCommand(newExportCmd(g))
	cmd.AddCommand(newSummaryCmd(g))
	cmd.AddCommand(newStandupCmd(g))
	cmd.AddCommand(newProjectCmd(g))
	cmd.AddCommand(newSyncCmd(g))
	cmd.AddCommand(newIntegrationCmd(g))
	cmd.AddCommand(newDashboardCmd(g))
	cmd.AddCommand(newMCPCmd(g))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "toki %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return execute(NewRootCmd(), os.Args[1:])
}

func execute(cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		return 1
	}
	return 0
}
