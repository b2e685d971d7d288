package cli

import (
	"github.com/spf13/cobra"

	"github.com/sadopc/toki/internal/classifier"
	"github.com/sadopc/toki/internal/detector"
	"github.com/sadopc/toki/internal/ipc"
	"github.com/sadopc/toki/internal/mcpserver"
)

func newMCPCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve tracked activity as MCP tools over stdio",
		Long:  "Runs a Model Context Protocol server on stdin and stdout so assistants can read status, summaries, projects, sessions, and rules, and add corrections. Logs go to stderr.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			log := g.logger(cmd, cfg)
			c, err := classifier.New(st, log)
			if err != nil {
				return err
			}
			srv := mcpserver.New(st, ipc.NewClient(cfg.SocketPath()), c, detector.New(log), log)
			return srv.Serve(Version)
		},
	}
}
