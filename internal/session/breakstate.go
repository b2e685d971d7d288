// Package session decides when work sessions begin and end.
package session

import "time"

// BreakState classifies how long the user has been away from the input devices.
type BreakState int

const (
	Active BreakState = iota
	ShortBreak
	LongBreak
	Away
)

func (b BreakState) String() string {
	switch b {
	case Active:
		return "active"
	case ShortBreak:
		return "short_break"
	case LongBreak:
		return "long_break"
	case Away:
		return "away"
	}
	return "unknown"
}

// PausesRecording reports whether samples in this state are kept out of spans.
func (b BreakState) PausesRecording() bool { return b != Active }

// EndsSession reports whether this state closes the open session.
func (b BreakState) EndsSession() bool { return b == Away }

// Thresholds are the idle boundaries in seconds; Short < Long < Away.
type Thresholds struct {
	Short int64
	Long  int64
	Away  int64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Short: 120, Long: 300, Away: 1800}
}

// State maps idle seconds to a break state.
func (t Thresholds) State(idleSeconds int64) BreakState {
	switch {
	case idleSeconds >= t.Away:
		return Away
	case idleSeconds >= t.Long:
		return LongBreak
	case idleSeconds >= t.Short:
		return ShortBreak
	}
	return Active
}

// WorkHours is the local-time window [Start, End) in which sessions may run.
type WorkHours struct {
	Start int
	End   int
}

func DefaultWorkHours() WorkHours {
	return WorkHours{Start: 9, End: 18}
}

// Contains reports whether t's hour, in t's own location, is inside the window.
func (w WorkHours) Contains(t time.Time) bool {
	h := t.Hour()
	return h >= w.Start && h < w.End
}
