package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/toki/internal/classifier"
	"github.com/sadopc/toki/internal/store"
)

type rulesModel struct {
	store      *store.Store
	classifier *classifier.Classifier
	width      int
	height     int

	rules  []store.Rule
	cursor int

	formActive bool
	form       *huh.Form

	// Form field pointers (survive value copies)
	formPattern  *string
	formTarget   *string
	formCategory *string
}

func newRulesModel(s *store.Store, c *classifier.Classifier) rulesModel {
	pattern, target, category := "", string(store.TargetAppID), ""
	return rulesModel{
		store:        s,
		classifier:   c,
		formPattern:  &pattern,
		formTarget:   &target,
		formCategory: &category,
	}
}

func (r *rulesModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type rulesDataMsg struct {
	rules []store.Rule
	err   error
}

type ruleSavedMsg struct {
	rule *store.Rule
}

func (r rulesModel) refresh() tea.Cmd {
	return func() tea.Msg {
		if err := r.classifier.Reload(); err != nil {
			return rulesDataMsg{err: err}
		}
		return rulesDataMsg{rules: r.classifier.Rules()}
	}
}

func (r rulesModel) update(msg tea.Msg) (rulesModel, tea.Cmd) {
	if r.formActive && r.form != nil {
		return r.updateForm(msg)
	}

	switch msg := msg.(type) {
	case rulesDataMsg:
		if msg.err != nil {
			return r, func() tea.Msg {
				return statusMsg{text: fmt.Sprintf("Error: %v", msg.err), isError: true}
			}
		}
		r.rules = msg.rules
		if r.cursor >= len(r.rules) {
			r.cursor = max(0, len(r.rules)-1)
		}
		return r, nil

	case ruleSavedMsg:
		r.cursor = 0
		text := fmt.Sprintf("Saved rule %s -> %s", msg.rule.Pattern, msg.rule.Category)
		return r, tea.Batch(r.refresh(), func() tea.Msg { return statusMsg{text: text} })

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if r.cursor > 0 {
				r.cursor--
			}
		case key.Matches(msg, keys.Down):
			if r.cursor < len(r.rules)-1 {
				r.cursor++
			}
		case key.Matches(msg, keys.New):
			return r.showForm()
		case key.Matches(msg, keys.Delete):
			return r.deleteSelected()
		}
	}
	return r, nil
}

// deleteSelected removes the selected user rule. Built-in rules stay.
func (r rulesModel) deleteSelected() (rulesModel, tea.Cmd) {
	if r.cursor >= len(r.rules) {
		return r, nil
	}
	rule := r.rules[r.cursor]
	if rule.Class != store.ClassUser {
		return r, func() tea.Msg {
			return statusMsg{text: "Built-in rules cannot be deleted", isError: true}
		}
	}
	if err := r.store.DeleteRule(rule.ID); err != nil {
		return r, func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
	}
	return r, r.refresh()
}

func (r rulesModel) showForm() (rulesModel, tea.Cmd) {
	*r.formPattern = ""
	*r.formTarget = string(store.TargetAppID)
	*r.formCategory = ""

	r.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Match against").
				Options(
					huh.NewOption("Application", string(store.TargetAppID)),
					huh.NewOption("Window title", string(store.TargetWindowTitle)),
				).Value(r.formTarget),
			huh.NewInput().Title("Pattern (regular expression)").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("pattern is required")
					}
					return nil
				}).Value(r.formPattern),
			huh.NewInput().Title("Category").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("category is required")
					}
					return nil
				}).Value(r.formCategory),
		),
	).WithShowHelp(true).WithShowErrors(true)

	r.formActive = true
	return r, r.form.Init()
}

func (r rulesModel) updateForm(msg tea.Msg) (rulesModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			r.formActive = false
			r.form = nil
			return r, nil
		}
	}

	form, cmd := r.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		r.form = f
	}

	if r.form.State == huh.StateCompleted {
		r.formActive = false
		return r, r.saveCorrection()
	}

	return r, cmd
}

func (r rulesModel) saveCorrection() tea.Cmd {
	pattern := strings.TrimSpace(*r.formPattern)
	category := strings.TrimSpace(*r.formCategory)
	target := store.PatternTarget(*r.formTarget)
	return func() tea.Msg {
		rule, err := r.classifier.AddCorrection(pattern, target, category)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return ruleSavedMsg{rule: rule}
	}
}

func (r rulesModel) view() string {
	w := r.width - 4

	if r.formActive && r.form != nil {
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("New Rule"), "", r.form.View())
		return panelStyle.Width(w).Render(content)
	}

	title := titleStyle.Render("Classification Rules")
	if len(r.rules) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No rules. Press n to add one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-8s %-12s %-30s %-16s %6s", "Class", "Target", "Pattern", "Category", "Hits")))

	// Keep the cursor visible on short terminals.
	visible := max(r.height-10, 5)
	start := 0
	if r.cursor >= visible {
		start = r.cursor - visible + 1
	}
	end := min(start+visible, len(r.rules))

	for i := start; i < end; i++ {
		rule := r.rules[i]
		cursor := "  "
		style := normalItemStyle
		if i == r.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		class := string(rule.Class)
		if rule.Class == store.ClassUser {
			class = highlightStyle.Render(fmt.Sprintf("%-8s", class))
		} else {
			class = fmt.Sprintf("%-8s", class)
		}
		rows = append(rows, style.Render(cursor)+class+style.Render(fmt.Sprintf(" %-12s %-30s %-16s %6d",
			rule.Target, truncate(rule.Pattern, 30), truncate(rule.Category, 16), rule.HitCount,
		)))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %d rules  n: new  d: delete user rule", len(r.rules))))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
