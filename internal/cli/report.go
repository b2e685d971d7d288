package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/sadopc/toki/internal/ai"
	"github.com/sadopc/toki/internal/export"
	"github.com/sadopc/toki/internal/store"
)

// now is swapped in tests.
var now = time.Now

// dayRange returns [start of the UTC day days-1 before today, start of tomorrow).
func dayRange(days int) (time.Time, time.Time) {
	t := now().UTC()
	today := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, 1-days), today.AddDate(0, 0, 1)
}

func humanize(secs int64) string {
	return (time.Duration(secs) * time.Second).String()
}

func newReportCmd(g *globals) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show time per category and per project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			_, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			from, to := dayRange(days)
			cats, err := st.GetCategorySummary(from, to)
			if err != nil {
				return err
			}
			daily, err := st.GetDailySummary(from, to)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s to %s (UTC)\n", from.Format("2006-01-02"), to.AddDate(0, 0, -1).Format("2006-01-02"))
			if len(cats) == 0 {
				fmt.Fprintln(out, "no activity recorded")
				return nil
			}

			var total int64
			for _, c := range cats {
				total += c.TotalSeconds
			}
			ct := newTable("Category", "Time", "Share", "Spans")
			for _, c := range cats {
				ct.Row(c.Category, humanize(c.TotalSeconds), fmt.Sprintf("%.0f%%", share(c.TotalSeconds, total)), fmt.Sprint(c.SpanCount))
			}
			fmt.Fprintln(out, ct.String())

			if len(daily) > 0 {
				pt := newTable("Date", "Project", "Time")
				for _, d := range daily {
					pt.Row(d.Date, d.ProjectName, humanize(d.TotalSeconds))
				}
				fmt.Fprintln(out, pt.String())
			}
			fmt.Fprintf(out, "total: %s\n", humanize(total))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days to include, ending today")
	return cmd
}

func share(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func newExportCmd(g *globals) *cobra.Command {
	var (
		format  string
		outPath string
		days    int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export spans to CSV or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != "csv" && format != "json" {
				return fmt.Errorf("unknown format %q (want csv or json)", format)
			}
			_, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var f store.SpanFilter
			if days > 0 {
				from, to := dayRange(days)
				f.From, f.To = &from, &to
			}
			spans, err := st.ListSpans(f)
			if err != nil {
				return err
			}
			projects, err := st.ListProjects()
			if err != nil {
				return err
			}
			items, err := st.ListWorkItems()
			if err != nil {
				return err
			}
			cat := export.NewCatalog(projects, items)

			if outPath == "" {
				outPath = fmt.Sprintf("toki-export-%s.%s", now().Format("2006-01-02"), format)
			}
			if format == "csv" {
				err = export.ToCSV(spans, cat, outPath)
			} else {
				err = export.ToJSON(spans, cat, outPath)
			}
			if err != nil {
				return err
			}
			abs, _ := filepath.Abs(outPath)
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d spans to %s\n", len(spans), abs)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "output format: csv or json")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default toki-export-DATE.FORMAT)")
	cmd.Flags().IntVar(&days, "days", 0, "only spans from the last N days (0 = all)")
	return cmd
}

func newSummaryCmd(g *globals) *cobra.Command {
	var (
		useAI bool
		width int
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize today's work",
		Long:  "Prints a markdown summary of today's categories, projects, and issues. With --ai the configured language model writes the summary instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := g.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			from, to := dayRange(1)
			day := from.Format("2006-01-02")
			cats, err := st.GetCategorySummary(from, to)
			if err != nil {
				return err
			}
			projects, err := st.GetDailySummary(from, to)
			if err != nil {
				return err
			}
			items, err := touchedWorkItems(st, from, to)
			if err != nil {
				return err
			}

			var md string
			if useAI {
				gen, err := ai.NewGenerator(cfg.AI)
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
				defer cancel()
				md, err = gen.Generate(ctx, ai.SummaryPrompt(day, projects, cats, items))
				if err != nil {
					return err
				}
				md = "# " + day + "\n\n" + md
			} else {
				md = plainSummary(day, projects, cats, items)
			}

			r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
			if err != nil {
				return err
			}
			rendered, err := r.Render(md)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), rendered)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useAI, "ai", false, "ask the configured language model for the summary")
	cmd.Flags().IntVar(&width, "width", 80, "word wrap width")
	return cmd
}

// touchedWorkItems returns the distinct work items of spans starting in [from, to).
func touchedWorkItems(st *store.Store, from, to time.Time) ([]store.WorkItem, error) {
	spans, err := st.ListSpans(store.SpanFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var items []store.WorkItem
	for _, sp := range spans {
		if sp.WorkItemID == "" || seen[sp.WorkItemID] {
			continue
		}
		seen[sp.WorkItemID] = true
		wi, err := st.GetWorkItem(sp.WorkItemID)
		if err != nil {
			return nil, err
		}
		items = append(items, *wi)
	}
	return items, nil
}

func plainSummary(day string, projects []store.DailySummary, cats []store.CategorySummary, items []store.WorkItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", day)
	if len(cats) == 0 {
		b.WriteString("No activity recorded.\n")
		return b.String()
	}

	var total int64
	for _, c := range cats {
		total += c.TotalSeconds
	}
	fmt.Fprintf(&b, "Tracked **%s** in total.\n\n## Categories\n\n", humanize(total))
	for _, c := range cats {
		fmt.Fprintf(&b, "- %s: %s (%d spans)\n", c.Category, humanize(c.TotalSeconds), c.SpanCount)
	}
	if len(projects) > 0 {
		b.WriteString("\n## Projects\n\n")
		for _, p := range projects {
			fmt.Fprintf(&b, "- %s: %s\n", p.ProjectName, humanize(p.TotalSeconds))
		}
	}
	if len(items) > 0 {
		b.WriteString("\n## Issues\n\n")
		for _, wi := range items {
			if wi.Title != "" {
				fmt.Fprintf(&b, "- %s: %s\n", wi.ExternalID, wi.Title)
			} else {
				fmt.Fprintf(&b, "- %s\n", wi.ExternalID)
			}
		}
	}
	return b.String()
}
