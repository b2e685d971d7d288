package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/toki/internal/store"
)

var csvHeader = []string{"ID", "Start", "End", "Duration (s)", "Duration", "App", "Category", "Window", "Project", "Issue", "Session"}

func ToCSV(spans []store.Span, cat Catalog, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, sp := range spans {
		endStr := ""
		if sp.End != nil {
			endStr = sp.End.Local().Format(time.RFC3339)
		}
		row := []string{
			sp.ID,
			sp.Start.Local().Format(time.RFC3339),
			endStr,
			fmt.Sprintf("%d", sp.DurationSeconds),
			formatDuration(sp.DurationSeconds),
			sp.AppID,
			sp.Category,
			sp.WindowTitle,
			cat.projectName(sp.ProjectID),
			cat.issue(sp.WorkItemID),
			sp.SessionID,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return w.Error()
}
