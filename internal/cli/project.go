package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/toki/internal/ai"
	"github.com/sadopc/toki/internal/store"
)

func newProjectCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Inspect and describe tracked projects",
	}
	cmd.AddCommand(newProjectListCmd(g))
	cmd.AddCommand(newProjectDescribeCmd(g))
	cmd.AddCommand(newProjectEmbedCmd(g))
	cmd.AddCommand(newProjectMatchCmd(g))
	return cmd
}

func newProjectListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			projects, err := st.ListProjects()
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no projects")
				return nil
			}
			t := newTable("Name", "Path", "Last active", "Description", "Embedded")
			for _, p := range projects {
				embedded := "no"
				if len(p.Embedding) > 0 {
					embedded = "yes"
				}
				t.Row(p.Name, p.Path, p.LastActive.Local().Format("2006-01-02 15:04"), p.Description, embedded)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
}

// findProject resolves a project by exact name.
func findProject(st *store.Store, name string) (*store.Project, error) {
	projects, err := st.ListProjects()
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].Name == name {
			return &projects[i], nil
		}
	}
	return nil, fmt.Errorf("project %q: %w", name, store.ErrNotFound)
}

func newProjectDescribeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <name> <description...>",
		Short: "Set a project's description",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			p, err := findProject(st, args[0])
			if err != nil {
				return err
			}
			desc := strings.Join(args[1:], " ")
			if err := st.SetProjectDescription(p.ID, desc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "described %s\n", p.Name)
			return nil
		},
	}
}

func newProjectEmbedCmd(g *globals) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Compute project embeddings with the configured embedding model",
		Long:  "Embeds each project's name, description, and path. Projects that already carry an embedding are skipped unless --all is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			emb, err := ai.NewEmbedder(cfg.AI)
			if err != nil {
				return err
			}
			projects, err := st.ListProjects()
			if err != nil {
				return err
			}
			log := g.logger(cmd, cfg)

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			n := 0
			for _, p := range projects {
				if len(p.Embedding) > 0 && !all {
					continue
				}
				vec, err := emb.Embed(ctx, ai.ProjectText(p))
				if err != nil {
					return fmt.Errorf("embed %s: %w", p.Name, err)
				}
				if err := st.SetProjectEmbedding(p.ID, vec); err != nil {
					return err
				}
				log.Debug().Str("project", p.Name).Int("dims", len(vec)).Msg("embedded project")
				n++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "embedded %d projects\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "re-embed projects that already have an embedding")
	return cmd
}

func newProjectMatchCmd(g *globals) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "match <text...>",
		Short: "Rank projects by similarity to a piece of text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			emb, err := ai.NewEmbedder(cfg.AI)
			if err != nil {
				return err
			}
			projects, err := st.ListProjects()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			matches, err := ai.MatchProjects(ctx, emb, projects, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				return errors.New("no embedded projects; run `toki project embed` first")
			}
			if top > 0 && len(matches) > top {
				matches = matches[:top]
			}
			t := newTable("Project", "Score")
			for _, m := range matches {
				t.Row(m.Project.Name, fmt.Sprintf("%.3f", m.Score))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 5, "number of matches to show (0 = all)")
	return cmd
}
