package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sadopc/toki/internal/classifier"
	"github.com/sadopc/toki/internal/store"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#414868"))).
		Headers(headers...)
}

func newLearnCmd(g *globals) *cobra.Command {
	var app, title string
	cmd := &cobra.Command{
		Use:   "learn <category>",
		Short: "Teach toki a category for an app or window title",
		Long:  "Stores a user rule mapping a regular expression over the application id (--app) or the window title (--title) to a category. User rules outrank built-in ones and take effect on the daemon's next tick.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (app == "") == (title == "") {
				return errors.New("exactly one of --app or --title is required")
			}
			pattern, target := app, store.TargetAppID
			if title != "" {
				pattern, target = title, store.TargetWindowTitle
			}

			cfg, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			c, err := classifier.New(st, g.logger(cmd, cfg))
			if err != nil {
				return err
			}
			rule, err := c.AddCorrection(pattern, target, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "learned: %s %q -> %s\n", rule.Target, rule.Pattern, rule.Category)
			return nil
		},
	}
	cmd.Flags().StringVar(&app, "app", "", "regular expression over the application id")
	cmd.Flags().StringVar(&title, "title", "", "regular expression over the window title")
	return cmd
}

func newRulesCmd(g *globals) *cobra.Command {
	var userOnly bool
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List classification rules with hit counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			rules, err := st.GetRules(store.ClassUser)
			if err != nil {
				return err
			}
			if !userOnly {
				builtin, err := st.GetRules(store.ClassBuiltIn)
				if err != nil {
					return err
				}
				rules = append(rules, builtin...)
			}
			if len(rules) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no rules")
				return nil
			}

			t := newTable("ID", "Class", "Target", "Pattern", "Category", "Hits", "Last hit")
			for _, r := range rules {
				last := "-"
				if r.LastHit != nil {
					last = r.LastHit.Local().Format("2006-01-02 15:04")
				}
				t.Row(shortID(r.ID), string(r.Class), string(r.Target), r.Pattern, r.Category, strconv.FormatInt(r.HitCount, 10), last)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&userOnly, "user", false, "only list user rules")

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id-prefix>",
		Short: "Delete a user rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			rules, err := st.GetRules(store.ClassUser)
			if err != nil {
				return err
			}
			var match []store.Rule
			for _, r := range rules {
				if strings.HasPrefix(r.ID, args[0]) {
					match = append(match, r)
				}
			}
			switch len(match) {
			case 0:
				return fmt.Errorf("no user rule with id %q", args[0])
			case 1:
			default:
				return fmt.Errorf("id prefix %q is ambiguous (%d rules)", args[0], len(match))
			}
			if err := st.DeleteRule(match[0].ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %q -> %s\n", match[0].Pattern, match[0].Category)
			return nil
		},
	})
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newSettingsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "settings [key=value ...]",
		Short: "Show or update tracking settings",
		Long:  "Without arguments, prints every setting. With key=value pairs, validates and saves them; the daemon applies them on its next tick.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("expected key=value, got %q", arg)
				}
				if err := st.UpdateSetting(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
					return err
				}
			}

			all, err := st.GetAllSettings()
			if err != nil {
				return err
			}
			t := newTable("Setting", "Value")
			for _, s := range all {
				t.Row(s.Key, s.Value)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
}
