package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/toki/internal/store"
)

type settingsModel struct {
	store  *store.Store
	width  int
	height int

	settings   []store.Setting
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	shortBreak    *string
	longBreak     *string
	away          *string
	idleThreshold *string
	workStart     *string
	workEnd       *string
	excludedApps  *string
	captureTitle  *bool
	pauseTracking *bool
}

func newSettingsModel(s *store.Store) settingsModel {
	sb, lb, aw, it, ws, we, ex := "", "", "", "", "", "", ""
	capture, pause := true, false
	return settingsModel{
		store:         s,
		shortBreak:    &sb,
		longBreak:     &lb,
		away:          &aw,
		idleThreshold: &it,
		workStart:     &ws,
		workEnd:       &we,
		excludedApps:  &ex,
		captureTitle:  &capture,
		pauseTracking: &pause,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings []store.Setting
}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		settings, _ := s.store.GetAllSettings()
		return settingsDataMsg{settings: settings}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		s.settings = msg.settings
		return s, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.New):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	cur, err := s.store.LoadSettings()
	if err != nil {
		return s, func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
	}
	s.fill(cur)

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Short break (min)").Validate(isNumber).Value(s.shortBreak),
			huh.NewInput().Title("Long break (min)").Validate(isNumber).Value(s.longBreak),
			huh.NewInput().Title("Away, ends the session (min)").Validate(isNumber).Value(s.away),
			huh.NewInput().Title("Idle threshold (min)").Validate(isNumber).Value(s.idleThreshold),
		).Title("Breaks"),
		huh.NewGroup(
			huh.NewInput().Title("Work day starts (hour)").Validate(isInt).Value(s.workStart),
			huh.NewInput().Title("Work day ends (hour)").Validate(isInt).Value(s.workEnd),
			huh.NewInput().Title("Excluded apps (comma-separated)").Value(s.excludedApps),
			huh.NewConfirm().Title("Capture window titles").Value(s.captureTitle),
			huh.NewConfirm().Title("Pause tracking").Value(s.pauseTracking),
		).Title("Tracking"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) fill(st store.Settings) {
	*s.shortBreak = secsToMin(strconv.Itoa(st.ShortBreakSeconds))
	*s.longBreak = secsToMin(strconv.Itoa(st.LongBreakSeconds))
	*s.away = secsToMin(strconv.Itoa(st.AwaySeconds))
	*s.idleThreshold = secsToMin(strconv.Itoa(st.IdleThresholdSeconds))
	*s.workStart = strconv.Itoa(st.WorkStartHour)
	*s.workEnd = strconv.Itoa(st.WorkEndHour)
	*s.excludedApps = strings.Join(st.ExcludedApps, ", ")
	*s.captureTitle = st.CaptureWindowTitle
	*s.pauseTracking = st.PauseTracking
}

// collect turns the form values back into typed settings.
func (s settingsModel) collect() store.Settings {
	atoi := func(v string) int {
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	excluded := []string{}
	for _, app := range strings.Split(*s.excludedApps, ",") {
		if app = strings.TrimSpace(app); app != "" {
			excluded = append(excluded, app)
		}
	}
	return store.Settings{
		ShortBreakSeconds:    atoi(minToSecs(*s.shortBreak)),
		LongBreakSeconds:     atoi(minToSecs(*s.longBreak)),
		AwaySeconds:          atoi(minToSecs(*s.away)),
		IdleThresholdSeconds: atoi(minToSecs(*s.idleThreshold)),
		WorkStartHour:        atoi(*s.workStart),
		WorkEndHour:          atoi(*s.workEnd),
		ExcludedApps:         excluded,
		CaptureWindowTitle:   *s.captureTitle,
		PauseTracking:        *s.pauseTracking,
	}
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		if err := s.store.SaveSettings(s.collect()); err != nil {
			return s, func() tea.Msg {
				return statusMsg{text: fmt.Sprintf("Settings not saved: %v", err), isError: true}
			}
		}
		return s, tea.Batch(s.refresh(), func() tea.Msg { return statusMsg{text: "Settings saved"} })
	}

	return s, cmd
}

func (s settingsModel) view() string {
	w := s.width - 4

	if s.formActive && s.form != nil {
		title := titleStyle.Render("Settings")
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	title := titleStyle.Render("Settings")
	hint := mutedStyle.Render("Press enter to edit settings")

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	for _, setting := range s.settings {
		label := lipgloss.NewStyle().Width(24).Render(setting.Key)
		value := highlightStyle.Render(formatSettingValue(setting.Key, setting.Value))
		rows = append(rows, fmt.Sprintf("  %s %s", label, value))
	}

	rows = append(rows, "")
	rows = append(rows, hint)

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatSettingValue(k, v string) string {
	switch k {
	case "short_break_seconds", "long_break_seconds", "away_seconds", "idle_threshold_seconds":
		if secs, err := strconv.Atoi(v); err == nil {
			return fmt.Sprintf("%d min", secs/60)
		}
	case "work_start_hour", "work_end_hour":
		if h, err := strconv.Atoi(v); err == nil {
			return fmt.Sprintf("%02d:00", h)
		}
	case "excluded_apps":
		if v == "[]" || v == "" {
			return "none"
		}
	}
	return v
}

func isNumber(s string) error {
	if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
		return fmt.Errorf("enter a number")
	}
	return nil
}

func isInt(s string) error {
	if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("enter a whole number")
	}
	return nil
}

func secsToMin(s string) string {
	if secs, err := strconv.Atoi(s); err == nil {
		if secs%60 == 0 {
			return strconv.Itoa(secs / 60)
		}
		return strconv.FormatFloat(float64(secs)/60, 'f', 1, 64)
	}
	return s
}

func minToSecs(s string) string {
	if mins, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return strconv.Itoa(int(mins * 60))
	}
	return s
}
