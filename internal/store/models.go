package store

import "time"

// Span is a persisted activity span covering [Start, End).
type Span struct {
	ID              string
	AppID           string
	Category        string
	WindowTitle     string
	Start           time.Time
	End             *time.Time
	DurationSeconds int64
	ProjectID       string
	WorkItemID      string
	SessionID       string
	Synced          bool
}

type Session struct {
	ID            string
	StartedAt     time.Time
	EndedAt       *time.Time
	ActiveSeconds int64
	IdleSeconds   int64
	Interruptions int64
	Categories    []string
	WorkItems     []string
}

// SessionClose carries the engine-maintained counters applied when a session ends.
type SessionClose struct {
	ID            string
	EndedAt       time.Time
	IdleSeconds   int64
	Interruptions int64
}

type PatternTarget string

const (
	TargetAppID       PatternTarget = "app_id"
	TargetWindowTitle PatternTarget = "window_title"
)

type PriorityClass string

const (
	ClassUser    PriorityClass = "user"
	ClassBuiltIn PriorityClass = "builtin"
)

type Rule struct {
	ID        string
	Pattern   string
	Target    PatternTarget
	Category  string
	Class     PriorityClass
	HitCount  int64
	LastHit   *time.Time
	CreatedAt time.Time
}

// PMLink ties a project to an external project-management system.
type PMLink struct {
	System            string
	ExternalProjectID string
	Workspace         string
}

type Project struct {
	ID          string
	Name        string
	Path        string
	Description string
	CreatedAt   time.Time
	LastActive  time.Time
	PM          *PMLink
	Embedding   []float32
}

type WorkItem struct {
	ID             string
	ExternalID     string
	ExternalSystem string
	Title          string
	Description    string
	Status         string
	ProjectID      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Integration holds credentials and routing for one external tracker.
type Integration struct {
	ID            string
	SystemType    string
	APIURL        string
	APIKey        string
	WorkspaceSlug string
	ProjectID     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Setting struct {
	Key   string
	Value string
}

// Settings is the typed view over the settings key/value table.
type Settings struct {
	IdleThresholdSeconds int
	ShortBreakSeconds    int
	LongBreakSeconds     int
	AwaySeconds          int
	WorkStartHour        int
	WorkEndHour          int
	ExcludedApps         []string
	PauseTracking        bool
	CaptureWindowTitle   bool
}

// SpanFilter is used to filter spans in queries.
type SpanFilter struct {
	SessionID string
	ProjectID string
	Category  string
	From      *time.Time
	To        *time.Time
	Unsynced  bool
	Limit     int
}

// DailySummary represents aggregated time per project per day.
type DailySummary struct {
	Date         string
	ProjectID    string
	ProjectName  string
	TotalSeconds int64
}

// CategorySummary represents aggregated span time per category.
type CategorySummary struct {
	Category     string
	TotalSeconds int64
	SpanCount    int
}
