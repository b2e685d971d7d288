// Package integrations pushes tracked time to external issue trackers.
// Sync is batch-only and always started explicitly by the user.
package integrations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sadopc/toki/internal/store"
)

var (
	ErrUnauthorized  = errors.New("tracker rejected credentials")
	ErrUnknownSystem = errors.New("unknown tracker system")
)

// WorkItemDetails is what a tracker knows about one issue.
type WorkItemDetails struct {
	ExternalID  string
	Title       string
	Description string
	Status      string
	URL         string
}

// TimeEntry is a day's worth of time against one work item.
type TimeEntry struct {
	ExternalID      string
	Date            string
	DurationSeconds int64
	Categories      []string
	SpanIDs         []string
}

// Description renders the entry as a short human-readable note.
func (e TimeEntry) Description() string {
	d := time.Duration(e.DurationSeconds) * time.Second
	s := fmt.Sprintf("Logged %s on %s", d.Round(time.Minute), e.Date)
	if len(e.Categories) > 0 {
		s += " (" + strings.Join(e.Categories, ", ") + ")"
	}
	return s
}

type SyncReport struct {
	Synced        int
	Failed        int
	SyncedSpanIDs []string
	Errors        []string
}

// Tracker is one issue-tracker adapter.
type Tracker interface {
	SystemName() string
	ValidateCredentials(ctx context.Context) error
	FetchWorkItem(ctx context.Context, externalID string) (*WorkItemDetails, error)
	AddTimeEntry(ctx context.Context, entry TimeEntry) error
	BatchSync(ctx context.Context, entries []TimeEntry) SyncReport
}

// SyncStore is the storage a sync run reads and updates.
type SyncStore interface {
	ListSpans(f store.SpanFilter) ([]store.Span, error)
	GetWorkItem(id string) (*store.WorkItem, error)
	UpdateWorkItemDetails(id, title, description, status string) error
	MarkSpansSynced(ids []string) error
}

// PendingEntries groups unsynced spans that carry a work item into one
// entry per work item per UTC day.
func PendingEntries(st SyncStore) ([]TimeEntry, error) {
	spans, err := st.ListSpans(store.SpanFilter{Unsynced: true})
	if err != nil {
		return nil, err
	}
	type key struct{ workItem, date string }
	groups := map[key]*TimeEntry{}
	cats := map[key]map[string]bool{}
	var order []key
	externals := map[string]string{}

	for _, sp := range spans {
		ext, ok := externals[sp.WorkItemID]
		if !ok {
			wi, err := st.GetWorkItem(sp.WorkItemID)
			if err != nil {
				return nil, fmt.Errorf("work item %s: %w", sp.WorkItemID, err)
			}
			ext = wi.ExternalID
			externals[sp.WorkItemID] = ext
		}
		k := key{sp.WorkItemID, sp.Start.UTC().Format("2006-01-02")}
		e, ok := groups[k]
		if !ok {
			e = &TimeEntry{ExternalID: ext, Date: k.date}
			groups[k] = e
			cats[k] = map[string]bool{}
			order = append(order, k)
		}
		e.DurationSeconds += sp.DurationSeconds
		e.SpanIDs = append(e.SpanIDs, sp.ID)
		cats[k][sp.Category] = true
	}

	out := make([]TimeEntry, 0, len(order))
	for _, k := range order {
		e := groups[k]
		for c := range cats[k] {
			e.Categories = append(e.Categories, c)
		}
		sort.Strings(e.Categories)
		out = append(out, *e)
	}
	return out, nil
}

// Sync pushes pending entries through tr and marks the spans of every
// accepted entry as synced. With dryRun nothing is sent.
func Sync(ctx context.Context, st SyncStore, tr Tracker, dryRun bool) ([]TimeEntry, SyncReport, error) {
	entries, err := PendingEntries(st)
	if err != nil {
		return nil, SyncReport{}, err
	}
	if dryRun || len(entries) == 0 {
		return entries, SyncReport{}, nil
	}
	report := tr.BatchSync(ctx, entries)
	if len(report.SyncedSpanIDs) > 0 {
		if err := st.MarkSpansSynced(report.SyncedSpanIDs); err != nil {
			return entries, report, fmt.Errorf("mark synced: %w", err)
		}
	}
	return entries, report, nil
}

// RefreshWorkItems copies titles and states from the tracker onto stored
// work items. Items the tracker cannot resolve are skipped.
func RefreshWorkItems(ctx context.Context, items []store.WorkItem, st SyncStore, tr Tracker) (int, error) {
	n := 0
	for _, wi := range items {
		d, err := tr.FetchWorkItem(ctx, wi.ExternalID)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return n, err
			}
			continue
		}
		if err := st.UpdateWorkItemDetails(wi.ID, d.Title, d.Description, d.Status); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
