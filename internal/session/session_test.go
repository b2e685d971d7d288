package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/toki/internal/store"
)

func TestBreakStateBuckets(t *testing.T) {
	th := DefaultThresholds()
	cases := map[int64]BreakState{
		0:    Active,
		119:  Active,
		120:  ShortBreak,
		299:  ShortBreak,
		300:  LongBreak,
		1799: LongBreak,
		1800: Away,
		9999: Away,
	}
	for idle, want := range cases {
		assert.Equal(t, want, th.State(idle), "idle=%d", idle)
	}
}

func TestBreakStateMovesOneBucketAtEachThreshold(t *testing.T) {
	th := Thresholds{Short: 3, Long: 7, Away: 11}
	prev := th.State(0)
	for i := int64(1); i <= 20; i++ {
		cur := th.State(i)
		assert.True(t, cur == prev || cur == prev+1, "idle %d jumped from %v to %v", i, prev, cur)
		prev = cur
	}
	assert.Equal(t, Away, prev)
}

func TestBreakStateFlags(t *testing.T) {
	assert.False(t, Active.PausesRecording())
	assert.True(t, ShortBreak.PausesRecording())
	assert.True(t, LongBreak.PausesRecording())
	assert.True(t, Away.PausesRecording())

	assert.False(t, LongBreak.EndsSession())
	assert.True(t, Away.EndsSession())
	assert.Equal(t, "short_break", ShortBreak.String())
}

func TestWorkHours(t *testing.T) {
	w := DefaultWorkHours()
	day := func(h int) time.Time { return time.Date(2026, 3, 2, h, 30, 0, 0, time.Local) }
	assert.False(t, w.Contains(day(8)))
	assert.True(t, w.Contains(day(9)))
	assert.True(t, w.Contains(day(17)))
	assert.False(t, w.Contains(day(18)))
}

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	s, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewManager(s, DefaultThresholds(), DefaultWorkHours()), s
}

var morning = time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)

func TestShouldStartAndEnd(t *testing.T) {
	m, _ := newTestManager(t)
	evening := time.Date(2026, 3, 2, 19, 0, 0, 0, time.Local)

	assert.True(t, m.ShouldStart(morning))
	assert.False(t, m.ShouldStart(evening))

	_, err := m.Open(morning)
	require.NoError(t, err)
	assert.False(t, m.ShouldStart(morning), "already open")

	assert.False(t, m.ShouldEnd(0, morning))
	assert.False(t, m.ShouldEnd(1799, morning))
	assert.True(t, m.ShouldEnd(1800, morning))
	assert.True(t, m.ShouldEnd(0, evening))
}

func TestInterruptionsCountedOncePerBreak(t *testing.T) {
	m, s := newTestManager(t)
	_, err := m.Open(morning)
	require.NoError(t, err)

	tick := 10 * time.Second
	for _, st := range []BreakState{Active, Active, ShortBreak, ShortBreak, LongBreak, Active, ShortBreak, Active} {
		m.Observe(st, tick)
	}
	idle, interruptions := m.Counters()
	assert.Equal(t, int64(2), interruptions)
	assert.Equal(t, int64(40), idle)

	closed, err := m.Close(morning.Add(10*time.Minute), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), closed.Interruptions)
	assert.Equal(t, int64(40), closed.IdleSeconds)
	assert.Nil(t, m.Current())

	open, err := s.GetOpenSession()
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestObserveOutsideSessionIgnored(t *testing.T) {
	m, _ := newTestManager(t)
	m.Observe(Active, time.Second)
	m.Observe(ShortBreak, time.Second)
	idle, interruptions := m.Counters()
	assert.Zero(t, idle)
	assert.Zero(t, interruptions)
}

func TestOpenTwiceFails(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Open(morning)
	require.NoError(t, err)
	_, err = m.Open(morning)
	assert.Error(t, err)
}

func TestCloseWithoutSession(t *testing.T) {
	m, _ := newTestManager(t)
	sess, err := m.Close(morning, nil)
	assert.NoError(t, err)
	assert.Nil(t, sess)
}
