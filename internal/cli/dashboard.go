package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sadopc/toki/internal/classifier"
	"github.com/sadopc/toki/internal/ipc"
	"github.com/sadopc/toki/internal/tui"
)

func newDashboardCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"ui"},
		Short:   "Open the interactive dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			// Console logs would corrupt the alt screen.
			c, err := classifier.New(st, zerolog.Nop())
			if err != nil {
				return fmt.Errorf("load rules: %w", err)
			}

			app := tui.NewApp(st, ipc.NewClient(cfg.SocketPath()), c)
			p := tea.NewProgram(app, tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("dashboard: %w", err)
			}
			return nil
		},
	}
}
