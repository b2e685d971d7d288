// Package span folds consecutive enriched samples into activity spans.
package span

import (
	"time"

	"github.com/sadopc/toki/internal/store"
)

// Key is the tuple that must stay constant for samples to share a span.
type Key struct {
	AppID       string
	Category    string
	WindowTitle string
	WorkItemRef string
	SessionID   string
}

// Enriched is a probe sample after classification and detection.
type Enriched struct {
	Timestamp   time.Time
	AppID       string
	AppName     string
	WindowTitle string
	IdleSeconds int64
	Category    string
	Source      string
	WorkItemRef string
	WorkItemID  string
	ProjectID   string
	SessionID   string
}

func (e Enriched) Key() Key {
	return Key{
		AppID:       e.AppID,
		Category:    e.Category,
		WindowTitle: e.WindowTitle,
		WorkItemRef: e.WorkItemRef,
		SessionID:   e.SessionID,
	}
}

type openSpan struct {
	key        Key
	start      time.Time
	last       time.Time
	projectID  string
	workItemID string
}

// Coalescer holds at most one open span. It is not safe for concurrent use;
// the engine goroutine owns it.
type Coalescer struct {
	minDuration time.Duration
	open        *openSpan
}

// New returns a coalescer that drops spans shorter than minDuration.
func New(minDuration time.Duration) *Coalescer {
	return &Coalescer{minDuration: minDuration}
}

// Offer folds s into the open span. When the key changes the open span is
// closed at s.Timestamp and returned, and a new span starts at the same instant.
func (c *Coalescer) Offer(s Enriched) *store.Span {
	key := s.Key()
	if c.open != nil && c.open.key == key {
		if s.Timestamp.After(c.open.last) {
			c.open.last = s.Timestamp
		}
		return nil
	}

	var closed *store.Span
	if c.open != nil {
		closed = c.closeAt(s.Timestamp)
	}
	c.open = &openSpan{
		key:        key,
		start:      s.Timestamp,
		last:       s.Timestamp,
		projectID:  s.ProjectID,
		workItemID: s.WorkItemID,
	}
	return closed
}

// Pause closes the open span at the last sample it absorbed.
func (c *Coalescer) Pause() *store.Span {
	if c.open == nil {
		return nil
	}
	return c.closeAt(c.open.last)
}

// CloseAt closes the open span at t, e.g. a session's end or shutdown.
func (c *Coalescer) CloseAt(t time.Time) *store.Span {
	if c.open == nil {
		return nil
	}
	return c.closeAt(t)
}

// Peek reports the open span's key and start.
func (c *Coalescer) Peek() (Key, time.Time, bool) {
	if c.open == nil {
		return Key{}, time.Time{}, false
	}
	return c.open.key, c.open.start, true
}

func (c *Coalescer) closeAt(end time.Time) *store.Span {
	o := c.open
	c.open = nil
	if end.Sub(o.start) < c.minDuration || !end.After(o.start) {
		return nil
	}
	return &store.Span{
		AppID:           o.key.AppID,
		Category:        o.key.Category,
		WindowTitle:     o.key.WindowTitle,
		Start:           o.start,
		End:             &end,
		DurationSeconds: int64(end.Sub(o.start) / time.Second),
		ProjectID:       o.projectID,
		WorkItemID:      o.workItemID,
		SessionID:       o.key.SessionID,
	}
}
