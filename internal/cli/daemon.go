package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sadopc/toki/internal/config"
	"github.com/sadopc/toki/internal/daemon"
	"github.com/sadopc/toki/internal/ipc"
	"github.com/sadopc/toki/internal/logger"
)

var errNotRunning = errors.New("toki is not running")

func newInitCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the data directory, config file, and database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			return runInit(cmd, cfg)
		},
	}
}

func runInit(cmd *cobra.Command, cfg *config.Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(cfg.DataDir, "config.yaml")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
	}

	st, err := daemon.OpenStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	encrypted := st.Encrypted()
	if err := st.Close(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "data dir:  %s\n", cfg.DataDir)
	fmt.Fprintf(out, "config:    %s\n", path)
	fmt.Fprintf(out, "database:  %s (encrypted: %t)\n", cfg.DBPath(), encrypted)
	return nil
}

func newStartCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the tracking daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			extra := []string{"--data-dir", cfg.DataDir}
			if g.logLevel != "" {
				extra = append(extra, "--log-level", g.logLevel)
			}
			pid, err := daemon.Spawn(daemon.FilesFor(cfg), extra...)
			if errors.Is(err, daemon.ErrAlreadyRunning) {
				fmt.Fprintf(cmd.OutOrStdout(), "toki is already running (pid %d)\n", pid)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "toki started (pid %d)\n", pid)
			return nil
		},
	}
}

func newStopCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the tracking daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			f := daemon.FilesFor(cfg)
			if _, alive := f.Running(); !alive {
				fmt.Fprintln(cmd.OutOrStdout(), "toki is not running")
				return f.CleanupStale()
			}
			if err := daemon.Stop(cmd.Context(), f); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "toki stopped")
			return nil
		},
	}
}

func newStatusCmd(g *globals) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what the daemon is tracking",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
			defer cancel()
			st, err := ipc.NewClient(cfg.SocketPath()).Status(ctx)
			if err != nil {
				return fmt.Errorf("%w: %v", errNotRunning, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderStatus(st, verbose))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "include engine counters")
	return cmd
}

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).Width(18)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C0CAF5"))
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2ECC71"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F39C12"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#414868")).Padding(0, 1)
)

func renderStatus(st ipc.Status, verbose bool) string {
	row := func(label, value string) string {
		if value == "" {
			value = "-"
		}
		return labelStyle.Render(label) + valueStyle.Render(value)
	}

	state := okStyle.Render("tracking")
	if !st.Running {
		state = warnStyle.Render("stalled")
	}
	session := "none"
	if st.SessionID != "" {
		session = fmt.Sprintf("%s (%s)", st.SessionID, time.Duration(st.SessionDurationSeconds)*time.Second)
	}

	rows := []string{
		labelStyle.Render("state") + state,
		row("window", st.CurrentWindow),
		row("issue", st.CurrentIssue),
		row("session", session),
	}

	if verbose && len(st.Metrics) > 0 {
		names := make([]string, 0, len(st.Metrics))
		for name := range st.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		rows = append(rows, "")
		for _, name := range names {
			rows = append(rows, labelStyle.Width(0).Render(name+" ")+valueStyle.Render(fmt.Sprintf("%g", st.Metrics[name])))
		}
	}
	return boxStyle.Render(strings.Join(rows, "\n")) + "\n"
}

func newDaemonCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Daemon process commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the tracking daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			f, err := logger.OpenFile(cfg.LogPath())
			if err != nil {
				return fmt.Errorf("open log: %w", err)
			}
			defer f.Close()

			log := logger.New(f, "daemon", cfg.LogLevel)
			if err := daemon.Run(cmd.Context(), cfg, log); err != nil {
				log.Error().Stack().Err(err).Msg("daemon exited")
				return err
			}
			log.Info().Msg("daemon stopped")
			return nil
		},
	})
	return cmd
}
