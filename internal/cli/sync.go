package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sadopc/toki/internal/config"
	"github.com/sadopc/toki/internal/integrations"
	"github.com/sadopc/toki/internal/store"
)

// githubTarget merges the stored integration with config.yaml. Stored
// values win.
type githubTarget struct {
	token   string
	repo    string
	baseURL string
}

func resolveGitHub(cfg *config.Config, st *store.Store) (githubTarget, error) {
	t := githubTarget{
		token:   os.Getenv(cfg.Integrations.GitHub.TokenEnv),
		repo:    cfg.Integrations.GitHub.Repo,
		baseURL: cfg.Integrations.GitHub.BaseURL,
	}
	ic, err := st.GetIntegration(integrations.SystemGitHub)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return t, err
	default:
		if ic.APIKey != "" {
			t.token = ic.APIKey
		}
		if ic.WorkspaceSlug != "" {
			t.repo = ic.WorkspaceSlug
		}
		if ic.APIURL != "" {
			t.baseURL = ic.APIURL
		}
	}
	if t.repo == "" {
		return t, errors.New("no github repository configured; run `toki integration add github --repo owner/name`")
	}
	return t, nil
}

func newSyncCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push tracked time to an issue tracker",
	}

	var dryRun, refresh bool
	gh := &cobra.Command{
		Use:   "github",
		Short: "Post unsynced time as GitHub issue comments",
		Long:  "Groups unsynced spans that carry an issue number into one entry per issue per UTC day and posts each entry as a comment. Accepted spans are marked synced.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			log := g.logger(cmd, cfg)

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			var tr integrations.Tracker
			if !dryRun || refresh {
				target, err := resolveGitHub(cfg, st)
				if err != nil {
					return err
				}
				if target.token == "" {
					return fmt.Errorf("no github token; set %s or run `toki integration add github`", cfg.Integrations.GitHub.TokenEnv)
				}
				tr, err = integrations.NewGitHub(ctx, target.token, target.repo, target.baseURL)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if refresh {
				items, err := st.ListWorkItems()
				if err != nil {
					return err
				}
				n, err := integrations.RefreshWorkItems(ctx, items, st, tr)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "refreshed %d of %d issues\n", n, len(items))
			}

			entries, report, err := integrations.Sync(ctx, st, tr, dryRun)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "nothing to sync")
				return nil
			}
			t := newTable("Issue", "Date", "Entry")
			for _, e := range entries {
				t.Row(e.ExternalID, e.Date, e.Description())
			}
			fmt.Fprintln(out, t.String())
			if dryRun {
				fmt.Fprintf(out, "dry run: %d entries not sent\n", len(entries))
				return nil
			}
			for _, msg := range report.Errors {
				log.Warn().Msg(msg)
			}
			fmt.Fprintf(out, "synced %d, failed %d\n", report.Synced, report.Failed)
			if report.Failed > 0 {
				return fmt.Errorf("%d entries failed to sync", report.Failed)
			}
			return nil
		},
	}
	gh.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be sent without sending it")
	gh.Flags().BoolVar(&refresh, "refresh", false, "refresh issue titles and states before syncing")
	cmd.AddCommand(gh)
	return cmd
}

func newIntegrationCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration",
		Short: "Manage issue tracker credentials",
	}

	var repo, baseURL string
	var skipValidate bool
	add := &cobra.Command{
		Use:   "add github",
		Short: "Store a GitHub token and repository",
		Long:  "Reads a token from the terminal (or one line of stdin), checks it against the repository, and stores it in the database.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != integrations.SystemGitHub {
				return fmt.Errorf("%w: %s", integrations.ErrUnknownSystem, args[0])
			}
			if repo == "" {
				return errors.New("--repo is required")
			}
			_, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			token, err := readSecret(cmd, "GitHub token: ")
			if err != nil {
				return err
			}
			if token == "" {
				return errors.New("empty token")
			}

			if !skipValidate {
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				gh, err := integrations.NewGitHub(ctx, token, repo, baseURL)
				if err != nil {
					return err
				}
				if err := gh.ValidateCredentials(ctx); err != nil {
					return err
				}
			}

			err = st.SaveIntegration(&store.Integration{
				SystemType:    integrations.SystemGitHub,
				APIURL:        baseURL,
				APIKey:        token,
				WorkspaceSlug: repo,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "github integration saved for %s\n", repo)
			return nil
		},
	}
	add.Flags().StringVar(&repo, "repo", "", "repository as owner/name")
	add.Flags().StringVar(&baseURL, "base-url", "", "GitHub Enterprise API URL")
	add.Flags().BoolVar(&skipValidate, "skip-validate", false, "store the token without checking it")

	remove := &cobra.Command{
		Use:   "remove github",
		Short: "Delete stored tracker credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.DeleteIntegration(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s integration removed\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}

// readSecret reads without echo when stdin is a terminal, otherwise one
// line from the command's input.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
