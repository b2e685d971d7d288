package engine

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/toki/internal/classifier"
	"github.com/sadopc/toki/internal/detector"
	"github.com/sadopc/toki/internal/metrics"
	"github.com/sadopc/toki/internal/probe"
	"github.com/sadopc/toki/internal/store"
)

// t0 is inside default work hours in the local zone.
var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

type harness struct {
	e     *Engine
	st    *store.Store
	probe *probe.Static
	now   time.Time
}

func newHarness(t *testing.T, st Store, opts Options) *harness {
	t.Helper()
	h := &harness{probe: probe.NewStatic(), now: t0}
	if st == nil {
		s, err := store.NewMemory()
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		h.st = s
		st = s
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return h.now }
	}
	e, err := New(st, h.probe, metrics.New(), zerolog.Nop(), opts)
	require.NoError(t, err)
	e.WithDetector(detector.New(zerolog.Nop()).WithStoragePaths(nil))
	h.e = e
	return h
}

// step feeds one sample and runs the tick at its timestamp.
func (h *harness) step(sec int, app, title string, idle int64) {
	h.now = at(sec)
	h.probe.Push(&probe.Sample{
		Timestamp:   h.now,
		AppID:       app,
		AppName:     app,
		WindowTitle: title,
		IdleSeconds: idle,
	})
	h.e.Tick(context.Background(), h.now)
}

func (h *harness) spans(t *testing.T) []store.Span {
	t.Helper()
	spans, err := h.st.ListSpans(store.SpanFilter{})
	require.NoError(t, err)
	return spans
}

func TestQuickCoffeeBreak(t *testing.T) {
	h := newHarness(t, nil, Options{})

	for i := 0; i <= 9; i++ {
		h.step(i*10, "code", "main.go", int64(i*10))
	}
	for i, idle := range []int64{130, 150, 170, 190} {
		h.step(100+i*10, "code", "main.go", idle)
	}
	h.step(140, "code", "main.go", 5)
	h.step(150, "code", "main.go", 15)

	spans := h.spans(t)
	require.Len(t, spans, 1)
	assert.True(t, spans[0].Start.Equal(at(0)))
	assert.True(t, spans[0].End.Equal(at(90)))
	assert.Equal(t, int64(90), spans[0].DurationSeconds)

	_, start, ok := h.e.coal.Peek()
	require.True(t, ok)
	assert.True(t, start.Equal(at(140)))

	open, err := h.st.GetOpenSession()
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, open.ID, spans[0].SessionID)

	idle, interruptions := h.e.mgr.Counters()
	assert.Equal(t, int64(1), interruptions)
	assert.Equal(t, int64(40), idle)
}

func TestLunchEndsSession(t *testing.T) {
	h := newHarness(t, nil, Options{})

	for sec := 0; sec <= 1900; sec += 10 {
		idle := int64(sec - 50)
		if idle < 0 {
			idle = 0
		}
		h.step(sec, "code", "main.go", idle)
	}

	open, err := h.st.GetOpenSession()
	require.NoError(t, err)
	assert.Nil(t, open)

	sessions, err := h.st.ListSessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.NotNil(t, sessions[0].EndedAt)
	assert.True(t, sessions[0].EndedAt.Equal(at(1850)))
	assert.Equal(t, int64(1), sessions[0].Interruptions)

	spans := h.spans(t)
	require.Len(t, spans, 1)
	assert.True(t, spans[0].End.Equal(at(160)))
	assert.LessOrEqual(t, spans[0].DurationSeconds, int64(1850))

	// Returning inside work hours starts a fresh session.
	h.step(1910, "code", "main.go", 0)
	open, err = h.st.GetOpenSession()
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.True(t, open.StartedAt.Equal(at(1910)))
}

func TestNoSessionOutsideWorkHours(t *testing.T) {
	h := newHarness(t, nil, Options{})
	evening := time.Date(2026, 3, 2, 20, 0, 0, 0, time.Local)
	h.now = evening
	h.probe.Push(&probe.Sample{Timestamp: evening, AppID: "code", WindowTitle: "main.go"})
	h.e.Tick(context.Background(), evening)

	assert.Nil(t, h.e.mgr.Current())
	key, _, ok := h.e.coal.Peek()
	require.True(t, ok)
	assert.Empty(t, key.SessionID)
}

func TestWorkHoursEndClosesSession(t *testing.T) {
	h := newHarness(t, nil, Options{})
	closing := time.Date(2026, 3, 2, 18, 0, 0, 0, time.Local)
	base := int(closing.Sub(t0)/time.Second) - 20

	for i := 0; i <= 4; i++ {
		h.step(base+i*10, "code", "main.go", 0)
	}
	assert.Nil(t, h.e.mgr.Current())

	sessions, err := h.st.ListSessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.NotNil(t, sessions[0].EndedAt)
	assert.True(t, sessions[0].EndedAt.Equal(closing))

	h.e.finish(closing.Add(30 * time.Second))

	spans := h.spans(t)
	require.Len(t, spans, 2)
	assert.True(t, spans[0].End.Equal(closing))
	assert.Equal(t, sessions[0].ID, spans[0].SessionID)
	assert.True(t, spans[1].Start.Equal(closing))
	assert.Empty(t, spans[1].SessionID)
	assert.Equal(t, int64(30), spans[1].DurationSeconds)
}

func TestSpansShorterThanTickDropped(t *testing.T) {
	h := newHarness(t, nil, Options{})

	h.step(0, "code", "main.go", 0)
	h.step(10, "code", "main.go", 0)
	h.step(20, "term", "zsh", 0)
	h.step(23, "code", "main.go", 0)
	h.e.finish(at(33))

	spans := h.spans(t)
	require.Len(t, spans, 2)
	for _, sp := range spans {
		assert.Equal(t, "code", sp.AppID)
		assert.GreaterOrEqual(t, sp.DurationSeconds, int64(10))
	}
	assert.True(t, spans[0].End.Equal(at(20)))
	assert.True(t, spans[1].Start.Equal(at(23)))
}

func TestTitleSwitchSplitsSpans(t *testing.T) {
	h := newHarness(t, nil, Options{})

	h.step(0, "code", "foo.rs - toki - Visual Studio Code", 0)
	h.step(10, "code", "bar.rs - toki - Visual Studio Code", 0)
	h.e.finish(at(20))

	spans := h.spans(t)
	require.Len(t, spans, 2)
	assert.Equal(t, spans[0].Category, spans[1].Category)
	assert.True(t, spans[0].End.Equal(spans[1].Start))
	assert.Equal(t, "foo.rs - toki - Visual Studio Code", spans[0].WindowTitle)
	assert.Equal(t, "bar.rs - toki - Visual Studio Code", spans[1].WindowTitle)
}

func TestBranchDerivedIssue(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("%v: %s\n%s", args, err, out)
		}
	}
	run("git", "init", "-b", "main")
	run("git", "config", "user.name", "Test")
	run("git", "config", "user.email", "test@test.com")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0o644))
	run("git", "add", ".")
	run("git", "commit", "-m", "initial")
	run("git", "checkout", "-b", "feature/PROJ-7-login")

	h := newHarness(t, nil, Options{WorkingDir: dir})
	h.step(0, "code", "login.go", 0)
	h.step(10, "code", "auth.go", 0)

	spans := h.spans(t)
	require.Len(t, spans, 1)
	require.NotEmpty(t, spans[0].WorkItemID)
	wi, err := h.st.GetWorkItem(spans[0].WorkItemID)
	require.NoError(t, err)
	assert.Equal(t, "PROJ-7", wi.ExternalID)
	assert.Equal(t, string(detector.SourceBranch), wi.ExternalSystem)

	require.NotEmpty(t, spans[0].ProjectID)
	p, err := h.st.GetProject(spans[0].ProjectID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), p.Name)
	assert.Equal(t, "PROJ-7", h.e.Status().CurrentIssue)
}

func TestUserCorrectionAppliesNextTick(t *testing.T) {
	h := newHarness(t, nil, Options{})

	h.step(0, "com.example.mytool", "", 0)
	key, _, ok := h.e.coal.Peek()
	require.True(t, ok)
	assert.Equal(t, classifier.Uncategorized, key.Category)

	cl, err := classifier.New(h.st, zerolog.Nop())
	require.NoError(t, err)
	rule, err := cl.AddCorrection(`com\.example\.mytool`, store.TargetAppID, "Research")
	require.NoError(t, err)

	h.step(10, "com.example.mytool", "", 0)
	key, _, ok = h.e.coal.Peek()
	require.True(t, ok)
	assert.Equal(t, "Research", key.Category)

	got, err := h.st.GetRule(rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.HitCount)

	spans := h.spans(t)
	require.Len(t, spans, 1)
	assert.Equal(t, classifier.Uncategorized, spans[0].Category)
}

func TestShutdownClosesOpenSpanAndSession(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.step(0, "code", "main.go", 0)
	h.step(10, "code", "main.go", 0)
	h.step(20, "code", "main.go", 0)
	sessID := h.e.mgr.Current().ID

	h.now = at(25)
	h.e.RequestShutdown()
	require.NoError(t, h.e.Run(context.Background()))

	spans := h.spans(t)
	require.Len(t, spans, 1)
	assert.True(t, spans[0].End.Equal(at(25)))
	assert.Equal(t, int64(25), spans[0].DurationSeconds)

	sess, err := h.st.GetSession(sessID)
	require.NoError(t, err)
	require.NotNil(t, sess.EndedAt)
	assert.True(t, sess.EndedAt.Equal(at(25)))
	assert.Equal(t, int64(25), sess.ActiveSeconds)
	assert.False(t, h.e.Status().Running)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h := newHarness(t, nil, Options{Tick: time.Second, Clock: time.Now})
	h.probe.Push(&probe.Sample{AppID: "code", WindowTitle: "main.go"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.e.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestPauseTracking(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.step(0, "code", "main.go", 0)
	h.step(10, "code", "main.go", 0)
	require.NoError(t, h.st.UpdateSetting("pause_tracking", "true"))
	h.step(20, "code", "main.go", 0)

	_, _, ok := h.e.coal.Peek()
	assert.False(t, ok)
	assert.Nil(t, h.e.mgr.Current())

	spans := h.spans(t)
	require.Len(t, spans, 1)
	assert.True(t, spans[0].End.Equal(at(10)))
}

func TestExcludedAppPausesSpan(t *testing.T) {
	h := newHarness(t, nil, Options{})
	st, err := h.st.LoadSettings()
	require.NoError(t, err)
	st.ExcludedApps = []string{"slack"}
	require.NoError(t, h.st.SaveSettings(st))

	h.step(0, "code", "main.go", 0)
	h.step(10, "code", "main.go", 0)
	h.step(20, "com.tinyspeck.slackmacgap", "general", 0)

	_, _, ok := h.e.coal.Peek()
	assert.False(t, ok)
	spans := h.spans(t)
	require.Len(t, spans, 1)
	assert.Equal(t, "code", spans[0].AppID)
}

func TestExcludedMatchesBothWays(t *testing.T) {
	assert.True(t, excluded("com.tinyspeck.slackmacgap", []string{"slack"}))
	assert.True(t, excluded("Safari", []string{"com.apple.Safari"}))
	assert.False(t, excluded("code", []string{"slack", " "}))
	assert.False(t, excluded("", []string{"slack"}))
}

func TestProbeErrorDropsTick(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.step(0, "code", "main.go", 0)
	h.probe.FailNext(errors.New("xdotool: no display"))
	h.e.Tick(context.Background(), at(10))

	_, start, ok := h.e.coal.Peek()
	require.True(t, ok)
	assert.True(t, start.Equal(at(0)))
	assert.Equal(t, 1.0, h.e.m.Snapshot()[`toki_engine_ticks_total{outcome="error"}`])
}

// flakyStore fails span writes while fail is positive.
type flakyStore struct {
	*store.Store
	fail int
}

func (f *flakyStore) InsertSpan(sp *store.Span) error {
	if f.fail > 0 {
		f.fail--
		return errors.New("disk I/O error")
	}
	return f.Store.InsertSpan(sp)
}

func TestFailedWritesAreHeldAndBounded(t *testing.T) {
	retryInterval = time.Millisecond
	s, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	flaky := &flakyStore{Store: s, fail: 1 << 20}

	h := newHarness(t, flaky, Options{MaxPending: 2})
	h.st = s
	for i, app := range []string{"a", "b", "c", "d"} {
		h.step(i*10, app, "", 0)
	}
	assert.Len(t, h.e.pending, 2)
	assert.Equal(t, 1.0, h.e.m.Snapshot()["toki_store_pending_dropped_total"])
	assert.Empty(t, h.spans(t))

	flaky.fail = 0
	h.step(40, "e", "", 0)
	assert.Empty(t, h.e.pending)

	spans := h.spans(t)
	require.Len(t, spans, 3)
	assert.Equal(t, []string{"b", "c", "d"}, []string{spans[0].AppID, spans[1].AppID, spans[2].AppID})
}

func TestSingleFailureIsRetried(t *testing.T) {
	retryInterval = time.Millisecond
	s, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	flaky := &flakyStore{Store: s, fail: 1}

	h := newHarness(t, flaky, Options{})
	h.st = s
	h.step(0, "a", "", 0)
	h.step(10, "b", "", 0)

	assert.Empty(t, h.e.pending)
	assert.Len(t, h.spans(t), 1)
	assert.Equal(t, 1.0, h.e.m.Snapshot()["toki_store_write_retries_total"])
}

func TestStatusSnapshot(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.step(0, "code", "main.go - toki", 0)
	h.now = at(25)

	st := h.e.Status()
	assert.True(t, st.Running)
	assert.Equal(t, "main.go - toki", st.CurrentWindow)
	assert.NotEmpty(t, st.SessionID)
	assert.Equal(t, int64(25), st.SessionDurationSeconds)
	assert.Equal(t, 1.0, st.Metrics["toki_engine_sessions_opened_total"])

	h.now = at(100)
	assert.False(t, h.e.Status().Running)
}

func TestDanglingSessionClosedOnStart(t *testing.T) {
	s, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	_, err = s.OpenSession(at(-3600))
	require.NoError(t, err)

	newHarness(t, s, Options{})
	open, err := s.GetOpenSession()
	require.NoError(t, err)
	assert.Nil(t, open)
}
