package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/toki/internal/store"
)

type projectsModel struct {
	store  *store.Store
	width  int
	height int

	projects []store.Project
	today    map[string]int64
	cursor   int

	formActive bool
	form       *huh.Form

	// Form field pointers (survive value copies)
	formDescription *string
	editingID       string
}

func newProjectsModel(s *store.Store) projectsModel {
	desc := ""
	return projectsModel{
		store:           s,
		today:           map[string]int64{},
		formDescription: &desc,
	}
}

func (p *projectsModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

type projectsDataMsg struct {
	projects []store.Project
	today    map[string]int64
}

func (p projectsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		projects, _ := p.store.ListProjects()
		day := time.Now().UTC().Format("2006-01-02")
		today := make(map[string]int64, len(projects))
		for _, proj := range projects {
			secs, _ := p.store.GetProjectTime(proj.ID, day)
			today[proj.ID] = secs
		}
		return projectsDataMsg{projects: projects, today: today}
	}
}

func (p projectsModel) update(msg tea.Msg) (projectsModel, tea.Cmd) {
	if p.formActive && p.form != nil {
		return p.updateForm(msg)
	}

	switch msg := msg.(type) {
	case projectsDataMsg:
		p.projects = msg.projects
		p.today = msg.today
		if p.cursor >= len(p.projects) {
			p.cursor = max(0, len(p.projects)-1)
		}
		return p, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if p.cursor > 0 {
				p.cursor--
			}
		case key.Matches(msg, keys.Down):
			if p.cursor < len(p.projects)-1 {
				p.cursor++
			}
		case key.Matches(msg, keys.Enter):
			if len(p.projects) > 0 {
				return p.showDescriptionForm()
			}
		}
	}
	return p, nil
}

func (p projectsModel) showDescriptionForm() (projectsModel, tea.Cmd) {
	proj := p.projects[p.cursor]
	*p.formDescription = proj.Description
	p.editingID = proj.ID

	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Description for " + proj.Name).
				Description("Used when matching free text to projects").
				Value(p.formDescription),
		),
	).WithShowHelp(true).WithShowErrors(true)

	p.formActive = true
	return p, p.form.Init()
}

func (p projectsModel) updateForm(msg tea.Msg) (projectsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			p.formActive = false
			p.form = nil
			return p, nil
		}
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}

	if p.form.State == huh.StateCompleted {
		p.formActive = false
		if err := p.store.SetProjectDescription(p.editingID, strings.TrimSpace(*p.formDescription)); err != nil {
			return p, func() tea.Msg {
				return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
			}
		}
		return p, p.refresh()
	}

	return p, cmd
}

func (p projectsModel) view() string {
	w := p.width - 4

	if p.formActive && p.form != nil {
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Edit Project"), "", p.form.View())
		return panelStyle.Width(w).Render(content)
	}

	title := titleStyle.Render("Projects")
	if len(p.projects) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No projects yet. They appear once work is tracked inside a repository."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-3s %-20s %-10s %-12s %s", "", "Name", "Today", "Last active", "Path")))

	for i, proj := range p.projects {
		cursor := "  "
		style := normalItemStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		last := "-"
		if !proj.LastActive.IsZero() {
			last = proj.LastActive.Local().Format("Jan 02 15:04")
		}
		row := style.Render(fmt.Sprintf("%s%s %-20s %-10s %-12s %s",
			cursor, dot(proj.Name), truncate(proj.Name, 20), formatHours(p.today[proj.ID]), last, proj.Path,
		))
		rows = append(rows, row)
		if i == p.cursor && proj.Description != "" {
			rows = append(rows, mutedStyle.Render("      "+truncate(proj.Description, max(w-10, 10))))
		}
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: edit description"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
