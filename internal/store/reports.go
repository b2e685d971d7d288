package store

import (
	"fmt"
	"time"
)

// GetDailySummary returns per-project totals for days in [from, to).
func (s *Store) GetDailySummary(from, to time.Time) ([]DailySummary, error) {
	rows, err := s.db.Query(`
		SELECT pt.date, pt.project_id, p.name, pt.duration_seconds
		FROM project_time pt
		JOIN projects p ON p.id = pt.project_id
		WHERE pt.date >= ? AND pt.date < ?
		ORDER BY pt.date, p.name`,
		dayOf(from), dayOf(to),
	)
	if err != nil {
		return nil, fmt.Errorf("daily summary: %w", err)
	}
	defer rows.Close()

	var summaries []DailySummary
	for rows.Next() {
		var ds DailySummary
		if err := rows.Scan(&ds.Date, &ds.ProjectID, &ds.ProjectName, &ds.TotalSeconds); err != nil {
			return nil, err
		}
		summaries = append(summaries, ds)
	}
	return summaries, rows.Err()
}

// GetCategorySummary returns per-category totals for spans starting in [from, to).
func (s *Store) GetCategorySummary(from, to time.Time) ([]CategorySummary, error) {
	rows, err := s.db.Query(`
		SELECT category, COALESCE(SUM(duration_seconds), 0), COUNT(*)
		FROM activity_spans
		WHERE start_time >= ? AND start_time < ?
		GROUP BY category
		ORDER BY 2 DESC, category`,
		formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("category summary: %w", err)
	}
	defer rows.Close()

	var summaries []CategorySummary
	for rows.Next() {
		var cs CategorySummary
		if err := rows.Scan(&cs.Category, &cs.TotalSeconds, &cs.SpanCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, cs)
	}
	return summaries, rows.Err()
}

// GetDayTotal returns the tracked seconds for the UTC day containing t.
func (s *Store) GetDayTotal(t time.Time) (int64, error) {
	start, _ := time.Parse("2006-01-02", dayOf(t))
	var total int64
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(duration_seconds), 0)
		FROM activity_spans
		WHERE start_time >= ? AND start_time < ?`,
		formatTime(start), formatTime(start.AddDate(0, 0, 1)),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("day total: %w", err)
	}
	return total, nil
}
