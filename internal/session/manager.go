package session

import (
	"fmt"
	"time"

	"github.com/sadopc/toki/internal/store"
)

// Store persists session rows.
type Store interface {
	OpenSession(start time.Time) (*store.Session, error)
	CloseSession(c store.SessionClose, final *store.Span) (*store.Session, error)
}

// Manager owns the live session and its interruption and idle counters.
// It is driven from the engine goroutine only.
type Manager struct {
	st         Store
	thresholds Thresholds
	hours      WorkHours

	current       *store.Session
	idleSeconds   int64
	interruptions int64
	lastState     BreakState
}

func NewManager(st Store, th Thresholds, hours WorkHours) *Manager {
	return &Manager{st: st, thresholds: th, hours: hours}
}

// Configure replaces thresholds and work hours; the open session is kept.
func (m *Manager) Configure(th Thresholds, hours WorkHours) {
	m.thresholds = th
	m.hours = hours
}

func (m *Manager) Thresholds() Thresholds { return m.thresholds }

// Current returns the open session or nil.
func (m *Manager) Current() *store.Session { return m.current }

// ShouldStart is true when now is inside work hours and no session is open.
func (m *Manager) ShouldStart(now time.Time) bool {
	return m.current == nil && m.hours.Contains(now)
}

// ShouldEnd is true when the user is away or now is outside work hours.
func (m *Manager) ShouldEnd(idleSeconds int64, now time.Time) bool {
	return m.thresholds.State(idleSeconds).EndsSession() || !m.hours.Contains(now)
}

// Observe feeds one tick's break state. Inside a session, entering a short
// or long break from Active counts an interruption and paused ticks count
// as idle time.
func (m *Manager) Observe(state BreakState, tick time.Duration) {
	if m.current != nil {
		if m.lastState == Active && (state == ShortBreak || state == LongBreak) {
			m.interruptions++
		}
		if state.PausesRecording() {
			m.idleSeconds += int64(tick / time.Second)
		}
	}
	m.lastState = state
}

// Open persists a new session starting at now.
func (m *Manager) Open(now time.Time) (*store.Session, error) {
	if m.current != nil {
		return nil, fmt.Errorf("session %s already open", m.current.ID)
	}
	sess, err := m.st.OpenSession(now)
	if err != nil {
		return nil, err
	}
	m.current = sess
	m.idleSeconds, m.interruptions = 0, 0
	return sess, nil
}

// Pending returns the close record for the open session ending at now
// without touching storage.
func (m *Manager) Pending(now time.Time) (store.SessionClose, bool) {
	if m.current == nil {
		return store.SessionClose{}, false
	}
	return store.SessionClose{
		ID:            m.current.ID,
		EndedAt:       now,
		IdleSeconds:   m.idleSeconds,
		Interruptions: m.interruptions,
	}, true
}

// Detach forgets the open session once its close has been handed to storage.
func (m *Manager) Detach() {
	m.current = nil
	m.idleSeconds, m.interruptions = 0, 0
}

// Close ends the open session at now, writing final in the same transaction.
func (m *Manager) Close(now time.Time, final *store.Span) (*store.Session, error) {
	c, ok := m.Pending(now)
	if !ok {
		return nil, nil
	}
	sess, err := m.st.CloseSession(c, final)
	if err != nil {
		return nil, err
	}
	m.Detach()
	return sess, nil
}

// Counters returns the engine-maintained idle seconds and interruptions.
func (m *Manager) Counters() (idleSeconds, interruptions int64) {
	return m.idleSeconds, m.interruptions
}
