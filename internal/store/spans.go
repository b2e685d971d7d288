package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const spanColumns = `id, app_bundle_id, category, window_title, start_time, end_time, duration_seconds, project_id, work_item_id, session_id, synced`

// InsertSpan appends a closed span and, when the span belongs to a project,
// adds its duration to that project's daily total in the same transaction.
func (s *Store) InsertSpan(sp *Span) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("insert span: %w", err)
	}
	defer tx.Rollback()

	if err := insertSpanTx(tx, sp); err != nil {
		return err
	}
	return tx.Commit()
}

func insertSpanTx(tx *sql.Tx, sp *Span) error {
	if sp.End == nil {
		return fmt.Errorf("insert span: span has no end")
	}
	// Bounds are stored at millisecond precision; the duration must be
	// computed from what is stored.
	start, end := sp.Start.Truncate(time.Millisecond), sp.End.Truncate(time.Millisecond)
	sp.Start, sp.End = start, &end
	if !sp.End.After(sp.Start) {
		return fmt.Errorf("insert span: end %s not after start %s", formatTime(*sp.End), formatTime(sp.Start))
	}
	if sp.ID == "" {
		sp.ID = uuid.NewString()
	}
	sp.DurationSeconds = int64(sp.End.Sub(sp.Start) / time.Second)

	_, err := tx.Exec(
		`INSERT INTO activity_spans (`+spanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.AppID, sp.Category, sp.WindowTitle, formatTime(sp.Start), formatTime(*sp.End),
		sp.DurationSeconds, nullString(sp.ProjectID), nullString(sp.WorkItemID), nullString(sp.SessionID), sp.Synced,
	)
	if err != nil {
		return fmt.Errorf("insert span: %w", err)
	}

	if sp.ProjectID != "" {
		if err := upsertProjectTimeTx(tx, sp.ProjectID, dayOf(sp.Start), sp.DurationSeconds); err != nil {
			return err
		}
		if _, err := tx.Exec(
			`UPDATE projects SET last_active = ? WHERE id = ?`,
			formatTime(*sp.End), sp.ProjectID,
		); err != nil {
			return fmt.Errorf("touch project %s: %w", sp.ProjectID, err)
		}
	}
	return nil
}

func (s *Store) GetSpan(id string) (*Span, error) {
	sp, err := scanSpan(s.db.QueryRow(`SELECT `+spanColumns+` FROM activity_spans WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get span %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get span %s: %w", id, err)
	}
	return sp, nil
}

func (s *Store) ListSpans(f SpanFilter) ([]Span, error) {
	query := `SELECT ` + spanColumns + ` FROM activity_spans WHERE 1=1`
	var args []any

	if f.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, f.SessionID)
	}
	if f.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, f.ProjectID)
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.From != nil {
		query += ` AND start_time >= ?`
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += ` AND start_time < ?`
		args = append(args, formatTime(*f.To))
	}
	if f.Unsynced {
		query += ` AND synced = 0 AND work_item_id IS NOT NULL`
	}
	query += ` ORDER BY start_time ASC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list spans: %w", err)
	}
	defer rows.Close()

	var spans []Span
	for rows.Next() {
		sp, err := scanSpan(rows)
		if err != nil {
			return nil, err
		}
		spans = append(spans, *sp)
	}
	return spans, rows.Err()
}

// MarkSpansSynced flags spans as uploaded to an external tracker.
func (s *Store) MarkSpansSynced(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.Exec(`UPDATE activity_spans SET synced = 1 WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

func scanSpan(row rowScanner) (*Span, error) {
	sp := &Span{}
	var start string
	var end, projectID, workItemID, sessionID sql.NullString
	var synced int
	if err := row.Scan(&sp.ID, &sp.AppID, &sp.Category, &sp.WindowTitle, &start, &end,
		&sp.DurationSeconds, &projectID, &workItemID, &sessionID, &synced); err != nil {
		return nil, err
	}
	sp.Start = parseTime(start)
	sp.End = parseNullTime(end)
	sp.ProjectID = projectID.String
	sp.WorkItemID = workItemID.String
	sp.SessionID = sessionID.String
	sp.Synced = synced == 1
	return sp, nil
}
