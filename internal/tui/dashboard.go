package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/toki/internal/ipc"
	"github.com/sadopc/toki/internal/store"
)

// DaemonStatus reports the live state of the tracking daemon.
type DaemonStatus interface {
	Status(ctx context.Context) (ipc.Status, error)
}

const (
	statusTimeout = 500 * time.Millisecond
	recentSpans   = 6
	reloadEvery   = 5 // ticks between store reloads
)

type dashboardModel struct {
	store  *store.Store
	daemon DaemonStatus
	width  int
	height int
	ticks  int

	status    ipc.Status
	statusErr error
	paused    bool

	todayTotal int64
	categories []store.CategorySummary
	projects   []store.DailySummary
	recent     []store.Span
	names      map[string]string
}

func newDashboardModel(s *store.Store, d DaemonStatus) dashboardModel {
	return dashboardModel{store: s, daemon: d}
}

func (d dashboardModel) Init() tea.Cmd {
	return tea.Batch(d.loadData(), d.pollStatus())
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d dashboardModel) tracking() bool { return d.statusErr == nil && d.status.Running }

type daemonStatusMsg struct {
	status ipc.Status
	err    error
}

type dashboardDataMsg struct {
	todayTotal int64
	paused     bool
	categories []store.CategorySummary
	projects   []store.DailySummary
	recent     []store.Span
	names      map[string]string
}

func (d dashboardModel) pollStatus() tea.Cmd {
	if d.daemon == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
		defer cancel()
		st, err := d.daemon.Status(ctx)
		return daemonStatusMsg{status: st, err: err}
	}
}

func (d dashboardModel) loadData() tea.Cmd {
	return func() tea.Msg {
		from, to := utcDay(time.Now())
		total, _ := d.store.GetDayTotal(from)
		categories, _ := d.store.GetCategorySummary(from, to)
		projects, _ := d.store.GetDailySummary(from, to)

		spans, _ := d.store.ListSpans(store.SpanFilter{From: &from, To: &to})
		if len(spans) > recentSpans {
			spans = spans[len(spans)-recentSpans:]
		}

		names := map[string]string{}
		plist, _ := d.store.ListProjects()
		for _, p := range plist {
			names[p.ID] = p.Name
		}

		settings, _ := d.store.LoadSettings()
		return dashboardDataMsg{
			todayTotal: total,
			paused:     settings.PauseTracking,
			categories: categories,
			projects:   projects,
			recent:     spans,
			names:      names,
		}
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.todayTotal = msg.todayTotal
		d.paused = msg.paused
		d.categories = msg.categories
		d.projects = msg.projects
		d.recent = msg.recent
		d.names = msg.names
		return d, nil

	case daemonStatusMsg:
		d.status = msg.status
		d.statusErr = msg.err
		return d, nil

	case tickMsg:
		d.ticks++
		cmds := []tea.Cmd{d.pollStatus()}
		if d.ticks%reloadEvery == 0 {
			cmds = append(cmds, d.loadData())
		}
		return d, tea.Batch(cmds...)

	case tea.KeyMsg:
		if key.Matches(msg, keys.Pause) {
			return d.togglePause()
		}
	}
	return d, nil
}

// togglePause flips pause_tracking. The daemon picks it up on its next tick.
func (d dashboardModel) togglePause() (dashboardModel, tea.Cmd) {
	next := !d.paused
	if err := d.store.UpdateSetting("pause_tracking", strconv.FormatBool(next)); err != nil {
		return d, func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
	}
	d.paused = next
	text := "Tracking resumed"
	if next {
		text = "Tracking paused"
	}
	return d, func() tea.Msg { return statusMsg{text: text} }
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4

	return lipgloss.JoinVertical(lipgloss.Left,
		d.renderStatusPanel(contentWidth),
		d.renderSummaryPanel(contentWidth),
		d.renderRecentPanel(contentWidth),
	)
}

func (d dashboardModel) renderStatusPanel(w int) string {
	var duration, indicator string
	var lines []string

	switch {
	case d.statusErr != nil:
		duration = stateStyle.Width(w - 6).Render("--:--:--")
		indicator = mutedStyle.Render("■  DAEMON NOT RUNNING")
		lines = append(lines, mutedStyle.Render("Run `toki start` to begin tracking"))
	case d.paused:
		duration = statePausedStyle.Width(w - 6).Render(formatSeconds(d.status.SessionDurationSeconds))
		indicator = warningStyle.Render("⏸  PAUSED")
		lines = append(lines, mutedStyle.Render("Press p to resume tracking"))
	case !d.status.Running:
		duration = statePausedStyle.Width(w - 6).Render("--:--:--")
		indicator = warningStyle.Render("●  STALLED")
		lines = append(lines, mutedStyle.Render("The daemon has not ticked recently"))
	default:
		duration = stateRunningStyle.Width(w - 6).Render(formatSeconds(d.status.SessionDurationSeconds))
		if d.status.SessionID != "" {
			indicator = successStyle.Render("●  IN SESSION")
		} else {
			indicator = successStyle.Render("●  TRACKING")
		}
		if d.status.CurrentWindow != "" {
			lines = append(lines, highlightStyle.Render(truncate(d.status.CurrentWindow, w-8)))
		}
		if d.status.CurrentIssue != "" {
			lines = append(lines, mutedStyle.Render("issue "+d.status.CurrentIssue))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Center, append([]string{duration, indicator}, lines...)...)
	if d.tracking() && !d.paused {
		return activePanelStyle.Width(w).Render(content)
	}
	return panelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderSummaryPanel(w int) string {
	title := titleStyle.Render("Today")
	total := highlightStyle.Render(formatSeconds(d.todayTotal))
	header := fmt.Sprintf("%s  %s", title, total)

	if len(d.categories) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			header,
			mutedStyle.Render("No activity today"),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, header)
	for _, c := range d.categories {
		rows = append(rows, fmt.Sprintf("  %s %-20s %s  (%d spans)",
			dot(c.Category), c.Category, formatSeconds(c.TotalSeconds), c.SpanCount,
		))
	}
	if len(d.projects) > 0 {
		rows = append(rows, "")
		for _, p := range d.projects {
			rows = append(rows, fmt.Sprintf("  %s %-20s %s",
				dot(p.ProjectName), p.ProjectName, formatSeconds(p.TotalSeconds),
			))
		}
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderRecentPanel(w int) string {
	title := titleStyle.Render("Recent Spans")
	if len(d.recent) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No spans yet"),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	for i := len(d.recent) - 1; i >= 0; i-- {
		sp := d.recent[i]
		project := d.names[sp.ProjectID]
		if project == "" {
			project = "-"
		}
		rows = append(rows, fmt.Sprintf("  %s %s  %-14s %-16s %s",
			dot(sp.Category),
			sp.Start.Local().Format("15:04"),
			truncate(sp.Category, 14),
			truncate(project, 16),
			formatSeconds(sp.DurationSeconds),
		))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
