package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/toki/internal/store"
)

type jsonExport struct {
	ExportedAt string     `json:"exported_at"`
	Count      int        `json:"count"`
	Spans      []jsonSpan `json:"spans"`
}

type jsonSpan struct {
	ID          string `json:"id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time,omitempty"`
	DurationSec int64  `json:"duration_seconds"`
	Duration    string `json:"duration"`
	AppID       string `json:"app_id"`
	Category    string `json:"category"`
	WindowTitle string `json:"window_title,omitempty"`
	Project     string `json:"project,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	Issue       string `json:"issue,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	Synced      bool   `json:"synced"`
}

func ToJSON(spans []store.Span, cat Catalog, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(spans),
	}

	for _, sp := range spans {
		endStr := ""
		if sp.End != nil {
			endStr = sp.End.Local().Format(time.RFC3339)
		}
		export.Spans = append(export.Spans, jsonSpan{
			ID:          sp.ID,
			StartTime:   sp.Start.Local().Format(time.RFC3339),
			EndTime:     endStr,
			DurationSec: sp.DurationSeconds,
			Duration:    formatDuration(sp.DurationSeconds),
			AppID:       sp.AppID,
			Category:    sp.Category,
			WindowTitle: sp.WindowTitle,
			Project:     cat.projectName(sp.ProjectID),
			ProjectID:   sp.ProjectID,
			Issue:       cat.issue(sp.WorkItemID),
			SessionID:   sp.SessionID,
			Synced:      sp.Synced,
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
