package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/toki/internal/store"
)

const (
	shortSessionLimit = 5 * time.Minute
	shortSessionCount = 5
)

type standupItem struct {
	Project     string
	Description string
	Seconds     int64
}

type standupReport struct {
	Yesterday []standupItem
	Today     []standupItem
	Blockers  []string
}

// standupStyle decorates section labels and project names for one chat format.
type standupStyle struct {
	label   func(string) string
	project func(string) string
}

func plain(s string) string { return s }

var standupStyles = map[string]standupStyle{
	"text":     {label: func(s string) string { return s + ":" }, project: plain},
	"markdown": {label: func(s string) string { return "**" + s + ":**" }, project: plain},
	"slack":    {label: func(s string) string { return "*" + s + ":*" }, project: func(s string) string { return "`" + s + "`" }},
}

func newStandupCmd(g *globals) *cobra.Command {
	var format, date string
	cmd := &cobra.Command{
		Use:   "standup",
		Short: "Print a standup note from yesterday's and today's tracked time",
		RunE: func(cmd *cobra.Command, args []string) error {
			style, ok := standupStyles[format]
			if !ok {
				return fmt.Errorf("unknown format %q (use text, markdown, or slack)", format)
			}
			day := now().UTC()
			if date != "" {
				d, err := time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("--date: %w", err)
				}
				day = d
			}
			day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

			_, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			rep, err := buildStandup(st, day)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), rep.render(style))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "text, markdown, or slack")
	cmd.Flags().StringVar(&date, "date", "", "report day as YYYY-MM-DD (UTC, default today)")
	return cmd
}

// buildStandup collects per-project time for day and the day before, and
// flags fragmented or unclosed sessions from the day before.
func buildStandup(st *store.Store, day time.Time) (standupReport, error) {
	var rep standupReport
	var err error
	yesterday := day.AddDate(0, 0, -1)
	if rep.Yesterday, err = standupItems(st, yesterday, day); err != nil {
		return rep, err
	}
	if rep.Today, err = standupItems(st, day, day.AddDate(0, 0, 1)); err != nil {
		return rep, err
	}

	sessions, err := st.ListSessions(500)
	if err != nil {
		return rep, err
	}
	var short, open int
	for _, s := range sessions {
		if s.StartedAt.Before(yesterday) || !s.StartedAt.Before(day) {
			continue
		}
		switch {
		case s.EndedAt == nil:
			open++
		case s.EndedAt.Sub(s.StartedAt) < shortSessionLimit:
			short++
		}
	}
	if short > shortSessionCount {
		rep.Blockers = append(rep.Blockers, fmt.Sprintf("Frequent context switching (%d short sessions)", short))
	}
	if open > 0 {
		rep.Blockers = append(rep.Blockers, fmt.Sprintf("%d session(s) were never closed", open))
	}
	return rep, nil
}

func standupItems(st *store.Store, from, to time.Time) ([]standupItem, error) {
	rows, err := st.GetDailySummary(from, to)
	if err != nil {
		return nil, err
	}
	byProject := map[string]*standupItem{}
	var items []*standupItem
	for _, r := range rows {
		it, ok := byProject[r.ProjectID]
		if !ok {
			it = &standupItem{Project: r.ProjectName}
			if p, err := st.GetProject(r.ProjectID); err == nil {
				it.Description = p.Description
			}
			byProject[r.ProjectID] = it
			items = append(items, it)
		}
		it.Seconds += r.TotalSeconds
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Seconds > items[j].Seconds })

	out := make([]standupItem, 0, len(items))
	for _, it := range items {
		out = append(out, *it)
	}
	return out, nil
}

func (r standupReport) render(style standupStyle) string {
	var b strings.Builder

	line := func(label, empty string, parts []string) {
		b.WriteString(style.label(label) + " ")
		if len(parts) == 0 {
			b.WriteString(empty)
		} else {
			b.WriteString(strings.Join(parts, ", "))
		}
		b.WriteByte('\n')
	}

	var parts []string
	for _, it := range r.Yesterday {
		work := "Worked"
		if it.Description != "" {
			work = it.Description
		}
		parts = append(parts, fmt.Sprintf("%s on %s (%s)", work, style.project(it.Project), humanize(it.Seconds)))
	}
	line("Yesterday", "No tracked activity", parts)

	parts = nil
	for _, it := range r.Today {
		work := "Working"
		if it.Description != "" {
			work = it.Description
		}
		parts = append(parts, fmt.Sprintf("%s on %s", work, style.project(it.Project)))
	}
	line("Today", "Will continue previous work", parts)

	line("Blockers", "None", r.Blockers)
	return b.String()
}
