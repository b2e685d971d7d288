package tui

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/sadopc/toki/internal/classifier"
	"github.com/sadopc/toki/internal/ipc"
	"github.com/sadopc/toki/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestClassifier(t *testing.T, s *store.Store) *classifier.Classifier {
	t.Helper()
	c, err := classifier.New(s, zerolog.Nop())
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	return c
}

type fakeDaemon struct {
	status ipc.Status
	err    error
}

func (f fakeDaemon) Status(context.Context) (ipc.Status, error) { return f.status, f.err }

// seedToday writes one closed span in a project at the start of the current UTC day.
func seedToday(t *testing.T, s *store.Store) *store.Project {
	t.Helper()
	p, err := s.GetOrCreateProject("toki", "/src/toki")
	if err != nil {
		t.Fatal(err)
	}
	from, _ := utcDay(time.Now())
	start := from.Add(time.Minute)
	end := start.Add(30 * time.Minute)
	if err := s.InsertSpan(&store.Span{
		AppID: "code", Category: "Coding", WindowTitle: "main.go - toki",
		Start: start, End: &end, ProjectID: p.ID,
	}); err != nil {
		t.Fatal(err)
	}
	return p
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// ============================================================
// Helper functions
// ============================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{time.Second, "00:00:01"},
		{time.Minute, "00:01:00"},
		{time.Hour, "01:00:00"},
		{time.Hour + time.Minute + time.Second, "01:01:01"},
		{25 * time.Hour, "25:00:00"},
	}
	for _, tt := range tests {
		got := formatDuration(tt.d)
		if got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{0, "00:00:00"},
		{61, "00:01:01"},
		{3600, "01:00:00"},
		{86400, "24:00:00"},
	}
	for _, tt := range tests {
		got := formatSeconds(tt.secs)
		if got != tt.want {
			t.Errorf("formatSeconds(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

func TestFormatHours(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{0, "0.0h"},
		{3600, "1.0h"},
		{5400, "1.5h"},
		{7200, "2.0h"},
	}
	for _, tt := range tests {
		got := formatHours(tt.secs)
		if got != tt.want {
			t.Errorf("formatHours(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"main.go - toki", 8, "main.go…"},
		{"日本語のタイトル", 4, "日本語…"},
		{"abc", 1, "…"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestUTCDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 02:00 on Mar 3 at UTC+9 is 17:00 on Mar 2 UTC.
	from, to := utcDay(time.Date(2026, 3, 3, 2, 0, 0, 0, loc))
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !from.Equal(want) || !to.Equal(want.AddDate(0, 0, 1)) {
		t.Fatalf("utcDay = [%v, %v), want day starting %v", from, to, want)
	}
}

func TestColorForIsStable(t *testing.T) {
	if colorFor("Coding") != colorFor("Coding") {
		t.Fatal("same name should map to the same color")
	}
	if colorFor("") != colorSubtle {
		t.Fatal("empty name should use the subtle color")
	}
}

// ============================================================
// View state
// ============================================================

func TestViewNames(t *testing.T) {
	expected := []string{"Dashboard", "Projects", "Reports", "Rules", "Settings"}
	if len(viewNames) != len(expected) {
		t.Fatalf("expected %d view names, got %d", len(expected), len(viewNames))
	}
	for i, name := range expected {
		if viewNames[i] != name {
			t.Fatalf("viewNames[%d] = %q, want %q", i, viewNames[i], name)
		}
	}
}

func TestViewStateConstants(t *testing.T) {
	if viewDashboard != 0 || viewProjects != 1 || viewReports != 2 || viewRules != 3 || viewSettings != 4 {
		t.Fatal("view state constants out of order")
	}
}

// ============================================================
// Dashboard model
// ============================================================

func TestDashboardDaemonStatus(t *testing.T) {
	s := newTestStore(t)
	d := newDashboardModel(s, fakeDaemon{status: ipc.Status{
		Running: true, CurrentWindow: "main.go - toki", SessionID: "sess", SessionDurationSeconds: 125,
	}})
	d.setSize(100, 40)

	d, _ = d.update(d.pollStatus()())
	if !d.tracking() {
		t.Fatal("dashboard should report tracking")
	}
	view := d.view()
	if !strings.Contains(view, "IN SESSION") || !strings.Contains(view, "00:02:05") {
		t.Fatalf("status panel missing session state:\n%s", view)
	}
	if !strings.Contains(view, "main.go - toki") {
		t.Fatal("status panel should show the current window")
	}
}

func TestDashboardDaemonDown(t *testing.T) {
	s := newTestStore(t)
	d := newDashboardModel(s, fakeDaemon{err: errors.New("dial: no such file")})
	d.setSize(100, 40)

	d, _ = d.update(d.pollStatus()())
	if d.tracking() {
		t.Fatal("dashboard should not report tracking without a daemon")
	}
	if !strings.Contains(d.view(), "DAEMON NOT RUNNING") {
		t.Fatal("status panel should say the daemon is not running")
	}
}

func TestDashboardWithoutDaemonClient(t *testing.T) {
	s := newTestStore(t)
	d := newDashboardModel(s, nil)
	if d.pollStatus() != nil {
		t.Fatal("no client should mean no status polling")
	}
}

func TestDashboardLoadData(t *testing.T) {
	s := newTestStore(t)
	seedToday(t, s)

	d := newDashboardModel(s, nil)
	d.setSize(100, 40)
	d, _ = d.update(d.loadData()())

	if d.todayTotal != 1800 {
		t.Fatalf("todayTotal = %d, want 1800", d.todayTotal)
	}
	if len(d.categories) != 1 || d.categories[0].Category != "Coding" {
		t.Fatalf("categories = %+v", d.categories)
	}
	if len(d.projects) != 1 || d.projects[0].ProjectName != "toki" {
		t.Fatalf("projects = %+v", d.projects)
	}
	if len(d.recent) != 1 {
		t.Fatalf("recent = %d spans, want 1", len(d.recent))
	}
	view := d.view()
	if !strings.Contains(view, "Coding") || !strings.Contains(view, "00:30:00") {
		t.Fatalf("summary panel missing today's data:\n%s", view)
	}
}

func TestDashboardTogglePause(t *testing.T) {
	s := newTestStore(t)
	d := newDashboardModel(s, nil)

	d, cmd := d.update(runes("p"))
	if !d.paused {
		t.Fatal("p should pause tracking")
	}
	if msg, ok := cmd().(statusMsg); !ok || msg.text != "Tracking paused" {
		t.Fatalf("unexpected status %+v", cmd())
	}
	st, _ := s.LoadSettings()
	if !st.PauseTracking {
		t.Fatal("pause_tracking should be persisted")
	}

	d, _ = d.update(runes("p"))
	st, _ = s.LoadSettings()
	if d.paused || st.PauseTracking {
		t.Fatal("second p should resume tracking")
	}
}

func TestDashboardTickPollsAndReloads(t *testing.T) {
	s := newTestStore(t)
	d := newDashboardModel(s, fakeDaemon{status: ipc.Status{Running: true}})
	for i := 0; i < reloadEvery; i++ {
		var cmd tea.Cmd
		d, cmd = d.update(tickMsg(time.Now()))
		if cmd == nil {
			t.Fatalf("tick %d returned no command", i)
		}
	}
	if d.ticks != reloadEvery {
		t.Fatalf("ticks = %d, want %d", d.ticks, reloadEvery)
	}
}

// ============================================================
// Projects model
// ============================================================

func TestProjectsRefresh(t *testing.T) {
	s := newTestStore(t)
	p := seedToday(t, s)

	m := newProjectsModel(s)
	m.setSize(120, 40)
	m, _ = m.update(m.refresh()())

	if len(m.projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(m.projects))
	}
	if m.today[p.ID] != 1800 {
		t.Fatalf("today = %d, want 1800", m.today[p.ID])
	}
	view := m.view()
	if !strings.Contains(view, "toki") || !strings.Contains(view, "/src/toki") || !strings.Contains(view, "0.5h") {
		t.Fatalf("project row incomplete:\n%s", view)
	}
}

func TestProjectsEmpty(t *testing.T) {
	s := newTestStore(t)
	m := newProjectsModel(s)
	m.setSize(120, 40)
	m, _ = m.update(m.refresh()())
	if !strings.Contains(m.view(), "No projects yet") {
		t.Fatal("empty projects view should say so")
	}
	// Enter with no projects must not open a form.
	m, _ = m.update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.formActive {
		t.Fatal("form should not open without projects")
	}
}

func TestProjectsDescriptionForm(t *testing.T) {
	s := newTestStore(t)
	seedToday(t, s)

	m := newProjectsModel(s)
	m, _ = m.update(m.refresh()())
	m, _ = m.update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.formActive || m.editingID != m.projects[0].ID {
		t.Fatal("enter should open the description form for the selected project")
	}

	m, _ = m.update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.formActive {
		t.Fatal("esc should cancel the form")
	}
}

// ============================================================
// Reports model
// ============================================================

func TestReportsDateRange(t *testing.T) {
	s := newTestStore(t)
	r := newReportsModel(s)
	// Wednesday
	r.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }

	from, to := r.dateRange()
	if !from.Equal(time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("daily range = [%v, %v)", from, to)
	}

	r.mode = reportWeekly
	from, to = r.dateRange()
	if !from.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) || to.Sub(from) != 7*24*time.Hour {
		t.Fatalf("weekly range = [%v, %v)", from, to)
	}

	r.offset = 1
	from, _ = r.dateRange()
	if !from.Equal(time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("previous week starts %v", from)
	}
}

func TestReportsNavigation(t *testing.T) {
	s := newTestStore(t)
	r := newReportsModel(s)

	r, _ = r.update(tea.KeyMsg{Type: tea.KeyLeft})
	if r.offset != 1 {
		t.Fatalf("left should go back one period, offset = %d", r.offset)
	}
	r, _ = r.update(tea.KeyMsg{Type: tea.KeyRight})
	r, _ = r.update(tea.KeyMsg{Type: tea.KeyRight})
	if r.offset != 0 {
		t.Fatalf("offset should not go into the future, got %d", r.offset)
	}
	r, _ = r.update(tea.KeyMsg{Type: tea.KeyEnter})
	if r.mode != reportWeekly {
		t.Fatal("enter should switch to weekly")
	}
}

func TestReportsRefreshAndRender(t *testing.T) {
	s := newTestStore(t)
	seedToday(t, s)

	r := newReportsModel(s)
	r.setSize(120, 40)
	r, _ = r.update(r.refresh()())

	if len(r.summaries) != 1 || len(r.categories) != 1 {
		t.Fatalf("summaries = %d, categories = %d", len(r.summaries), len(r.categories))
	}
	view := r.view()
	for _, want := range []string{"Coding", "100%", "toki"} {
		if !strings.Contains(view, want) {
			t.Fatalf("report missing %q:\n%s", want, view)
		}
	}
}

// ============================================================
// Rules model
// ============================================================

func TestRulesRefreshListsBuiltins(t *testing.T) {
	s := newTestStore(t)
	m := newRulesModel(s, newTestClassifier(t, s))
	m.setSize(120, 60)
	m, _ = m.update(m.refresh()())

	if len(m.rules) == 0 {
		t.Fatal("built-in rules should be listed")
	}
	for _, r := range m.rules {
		if r.Class != store.ClassBuiltIn {
			t.Fatalf("unexpected %s rule on a fresh store", r.Class)
		}
	}
}

func TestRulesAddCorrection(t *testing.T) {
	s := newTestStore(t)
	c := newTestClassifier(t, s)
	m := newRulesModel(s, c)

	*m.formPattern = "  (?i)figma  "
	*m.formTarget = string(store.TargetAppID)
	*m.formCategory = "Design"

	msg := m.saveCorrection()()
	saved, ok := msg.(ruleSavedMsg)
	if !ok {
		t.Fatalf("expected ruleSavedMsg, got %T: %+v", msg, msg)
	}
	if saved.rule.Pattern != "(?i)figma" || saved.rule.Class != store.ClassUser {
		t.Fatalf("saved rule = %+v", saved.rule)
	}
	if got := c.Classify("Figma", ""); got.Category != "Design" {
		t.Fatalf("classifier should apply the correction, got %+v", got)
	}

	m, cmd := m.update(saved)
	if cmd == nil {
		t.Fatal("saving should trigger a refresh")
	}
	m, _ = m.update(m.refresh()())
	if m.rules[0].Pattern != "(?i)figma" {
		t.Fatalf("user rule should be listed first, got %+v", m.rules[0])
	}
}

func TestRulesInvalidPattern(t *testing.T) {
	s := newTestStore(t)
	m := newRulesModel(s, newTestClassifier(t, s))
	*m.formPattern = "("
	*m.formCategory = "X"

	msg, ok := m.saveCorrection()().(statusMsg)
	if !ok || !msg.isError {
		t.Fatalf("invalid pattern should report an error, got %+v", msg)
	}
}

func TestRulesDelete(t *testing.T) {
	s := newTestStore(t)
	c := newTestClassifier(t, s)
	if _, err := c.AddCorrection("slack", store.TargetAppID, "Chat"); err != nil {
		t.Fatal(err)
	}

	m := newRulesModel(s, c)
	m, _ = m.update(m.refresh()())
	n := len(m.rules)

	// The first row is the user rule.
	m, cmd := m.update(runes("d"))
	m, _ = m.update(cmd())
	if len(m.rules) != n-1 {
		t.Fatalf("rules = %d, want %d", len(m.rules), n-1)
	}

	// Built-in rules are protected.
	m, cmd = m.update(runes("d"))
	msg, ok := cmd().(statusMsg)
	if !ok || !msg.isError {
		t.Fatalf("deleting a built-in should fail, got %+v", msg)
	}
	if len(m.rules) != n-1 {
		t.Fatal("built-in rule should remain")
	}
}

// ============================================================
// Settings helpers
// ============================================================

func TestSecsToMin(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1800", "30"},
		{"120", "2"},
		{"90", "1.5"},
		{"0", "0"},
		{"invalid", "invalid"},
	}
	for _, tt := range tests {
		got := secsToMin(tt.in)
		if got != tt.want {
			t.Errorf("secsToMin(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMinToSecs(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"30", "1800"},
		{"2", "120"},
		{"1.5", "90"},
		{"0", "0"},
		{"invalid", "invalid"},
	}
	for _, tt := range tests {
		got := minToSecs(tt.in)
		if got != tt.want {
			t.Errorf("minToSecs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatSettingValue(t *testing.T) {
	tests := []struct {
		key, val, want string
	}{
		{"short_break_seconds", "120", "2 min"},
		{"away_seconds", "1800", "30 min"},
		{"idle_threshold_seconds", "300", "5 min"},
		{"work_start_hour", "9", "09:00"},
		{"excluded_apps", "[]", "none"},
		{"excluded_apps", `["slack"]`, `["slack"]`},
		{"pause_tracking", "false", "false"},
		{"short_break_seconds", "invalid", "invalid"},
	}
	for _, tt := range tests {
		got := formatSettingValue(tt.key, tt.val)
		if got != tt.want {
			t.Errorf("formatSettingValue(%q, %q) = %q, want %q", tt.key, tt.val, got, tt.want)
		}
	}
}

func TestSettingsFillCollectRoundTrip(t *testing.T) {
	s := newTestStore(t)
	m := newSettingsModel(s)

	in := store.DefaultSettings()
	in.ExcludedApps = []string{"1password", "keepassxc"}
	in.PauseTracking = true
	m.fill(in)

	if *m.excludedApps != "1password, keepassxc" {
		t.Fatalf("excluded apps field = %q", *m.excludedApps)
	}
	out := m.collect()
	if out.ShortBreakSeconds != in.ShortBreakSeconds || out.AwaySeconds != in.AwaySeconds {
		t.Fatalf("thresholds changed: %+v", out)
	}
	if len(out.ExcludedApps) != 2 || out.ExcludedApps[1] != "keepassxc" || !out.PauseTracking {
		t.Fatalf("collected = %+v", out)
	}
	if err := s.SaveSettings(out); err != nil {
		t.Fatalf("collected settings should be valid: %v", err)
	}
}

func TestSettingsCollectEmptyExcluded(t *testing.T) {
	s := newTestStore(t)
	m := newSettingsModel(s)
	m.fill(store.DefaultSettings())
	*m.excludedApps = " , "
	if got := m.collect().ExcludedApps; got == nil || len(got) != 0 {
		t.Fatalf("blank excluded list should collect to empty, got %#v", got)
	}
}

func TestSettingsRefresh(t *testing.T) {
	s := newTestStore(t)
	m := newSettingsModel(s)
	m.setSize(120, 40)
	m, _ = m.update(m.refresh()())
	if len(m.settings) == 0 {
		t.Fatal("settings should be loaded")
	}
	if !strings.Contains(m.view(), "away_seconds") {
		t.Fatal("settings view should list keys")
	}
	m, _ = m.update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.formActive {
		t.Fatal("enter should open the settings form")
	}
}

// ============================================================
// App model
// ============================================================

func newTestApp(t *testing.T) App {
	t.Helper()
	s := newTestStore(t)
	app := NewApp(s, nil, newTestClassifier(t, s))
	app.exportDir = t.TempDir()
	return app
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)

	if app.activeView != viewDashboard {
		t.Fatal("default view should be dashboard")
	}
	if app.showHelp {
		t.Fatal("help should be hidden by default")
	}
	if app.exportPicking {
		t.Fatal("export picker should be hidden by default")
	}
	if app.isFormActive() {
		t.Fatal("no forms should be active initially")
	}
}

func TestAppViewStates(t *testing.T) {
	app := newTestApp(t)
	app.width = 120
	app.height = 40

	views := []viewState{viewDashboard, viewProjects, viewReports, viewRules, viewSettings}
	for _, v := range views {
		app.activeView = v
		output := app.View()
		if output == "" {
			t.Fatalf("view %d rendered empty", v)
		}
	}
}

func TestAppTabSwitching(t *testing.T) {
	app := newTestApp(t)

	model, _ := app.Update(runes("4"))
	app = model.(App)
	if app.activeView != viewRules {
		t.Fatalf("4 should open rules, got %d", app.activeView)
	}

	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyTab})
	app = model.(App)
	if app.activeView != viewSettings {
		t.Fatalf("tab should advance to settings, got %d", app.activeView)
	}

	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyTab})
	app = model.(App)
	if app.activeView != viewDashboard {
		t.Fatalf("tab should wrap to dashboard, got %d", app.activeView)
	}
}

func TestAppRenderHeaderContainsAllTabs(t *testing.T) {
	app := newTestApp(t)
	app.width = 120
	app.height = 40

	header := app.renderHeader()
	if !strings.Contains(header, "toki") {
		t.Fatal("header should carry the app name")
	}
	for _, name := range viewNames {
		if !strings.Contains(header, name) {
			t.Fatalf("header missing tab %q", name)
		}
	}
}

func TestAppLoadingState(t *testing.T) {
	app := newTestApp(t)
	// Width 0 means not yet sized
	output := app.View()
	if output != "Loading..." {
		t.Fatalf("expected 'Loading...', got %q", output)
	}
}

func TestAppStatusMessage(t *testing.T) {
	app := newTestApp(t)
	app.width = 120
	app.height = 40

	model, _ := app.Update(statusMsg{text: "test status"})
	app = model.(App)
	if !strings.Contains(app.renderFooter(), "test status") {
		t.Fatal("footer should contain status message")
	}
}

func TestAppFooterShowsStoppedDaemon(t *testing.T) {
	app := newTestApp(t)
	app.width = 120
	app.height = 40

	model, _ := app.Update(daemonStatusMsg{err: errors.New("no daemon")})
	app = model.(App)
	if !strings.Contains(app.renderFooter(), "stopped") {
		t.Fatal("footer should flag the stopped daemon")
	}
}

func TestAppExportPicker(t *testing.T) {
	app := newTestApp(t)
	seedToday(t, app.store)

	model, _ := app.Update(runes("e"))
	app = model.(App)
	if !app.exportPicking {
		t.Fatal("e should open the export picker")
	}

	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyDown})
	app = model.(App)
	if app.exportCursor != 1 {
		t.Fatalf("cursor = %d, want 1 (JSON)", app.exportCursor)
	}

	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	app = model.(App)
	if app.exportPicking || cmd == nil {
		t.Fatal("enter should close the picker and start the export")
	}

	done, ok := cmd().(exportDoneMsg)
	if !ok {
		t.Fatal("export should succeed")
	}
	if !strings.HasSuffix(done.path, ".json") {
		t.Fatalf("expected a JSON export, got %s", done.path)
	}
	data, err := os.ReadFile(done.path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"project": "toki"`) {
		t.Fatalf("export missing project name:\n%s", data)
	}
}

func TestAppExportCSV(t *testing.T) {
	app := newTestApp(t)
	done, ok := app.doExport(0)().(exportDoneMsg)
	if !ok || !strings.HasSuffix(done.path, ".csv") {
		t.Fatalf("csv export failed: %+v", done)
	}
	if _, err := os.Stat(done.path); err != nil {
		t.Fatal(err)
	}
}

// ============================================================
// Key bindings
// ============================================================

func TestKeyMapShortHelp(t *testing.T) {
	bindings := keys.ShortHelp()
	if len(bindings) == 0 {
		t.Fatal("short help should have bindings")
	}
}

func TestKeyMapFullHelp(t *testing.T) {
	groups := keys.FullHelp()
	if len(groups) == 0 {
		t.Fatal("full help should have groups")
	}
	for i, g := range groups {
		if len(g) == 0 {
			t.Fatalf("full help group %d is empty", i)
		}
	}
}

// ============================================================
// Styles (smoke test, just verify they don't panic)
// ============================================================

func TestStylesRender(t *testing.T) {
	styles := []struct {
		name string
		fn   func() string
	}{
		{"activeTab", func() string { return activeTabStyle.Render("test") }},
		{"inactiveTab", func() string { return inactiveTabStyle.Render("test") }},
		{"panel", func() string { return panelStyle.Render("test") }},
		{"activePanel", func() string { return activePanelStyle.Render("test") }},
		{"state", func() string { return stateStyle.Render("test") }},
		{"stateRunning", func() string { return stateRunningStyle.Render("test") }},
		{"statePaused", func() string { return statePausedStyle.Render("test") }},
		{"title", func() string { return titleStyle.Render("test") }},
		{"success", func() string { return successStyle.Render("test") }},
		{"warning", func() string { return warningStyle.Render("test") }},
		{"error", func() string { return errorStyle.Render("test") }},
		{"muted", func() string { return mutedStyle.Render("test") }},
		{"highlight", func() string { return highlightStyle.Render("test") }},
		{"header", func() string { return headerStyle.Render("test") }},
		{"footer", func() string { return footerStyle.Render("test") }},
		{"selectedItem", func() string { return selectedItemStyle.Render("test") }},
		{"normalItem", func() string { return normalItemStyle.Render("test") }},
		{"dot", func() string { return dot("Coding") }},
	}

	for _, s := range styles {
		result := s.fn()
		if result == "" {
			t.Fatalf("style %q rendered empty", s.name)
		}
	}
}
