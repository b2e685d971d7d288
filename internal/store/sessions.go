package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const sessionColumns = `id, started_at, ended_at, active_seconds, idle_seconds, interruptions, categories, work_items`

// OpenSession persists a new open session. It fails if another session is
// still open.
func (s *Store) OpenSession(start time.Time) (*Session, error) {
	sess := &Session{ID: uuid.NewString(), StartedAt: start.UTC()}
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, started_at) VALUES (?, ?)`,
		sess.ID, formatTime(start),
	)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return sess, nil
}

// CloseSession writes the final span (if any), sets ended_at, and recomputes
// the session's aggregates from its spans, all in one transaction.
func (s *Store) CloseSession(c SessionClose, final *Span) (*Session, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("close session %s: %w", c.ID, err)
	}
	defer tx.Rollback()

	if final != nil {
		if err := insertSpanTx(tx, final); err != nil {
			return nil, err
		}
	}
	if err := closeSessionTx(tx, c); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("close session %s: %w", c.ID, err)
	}
	return s.GetSession(c.ID)
}

func closeSessionTx(tx *sql.Tx, c SessionClose) error {
	var active int64
	if err := tx.QueryRow(
		`SELECT COALESCE(SUM(duration_seconds), 0) FROM activity_spans WHERE session_id = ?`, c.ID,
	).Scan(&active); err != nil {
		return fmt.Errorf("sum session %s: %w", c.ID, err)
	}

	categories, err := distinctTx(tx, `SELECT DISTINCT category FROM activity_spans WHERE session_id = ? ORDER BY category`, c.ID)
	if err != nil {
		return err
	}
	workItems, err := distinctTx(tx, `SELECT DISTINCT w.external_id FROM activity_spans a
		JOIN work_items w ON w.id = a.work_item_id
		WHERE a.session_id = ? ORDER BY w.external_id`, c.ID)
	if err != nil {
		return err
	}
	var started string
	if err := tx.QueryRow(`SELECT started_at FROM sessions WHERE id = ?`, c.ID).Scan(&started); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("close session %s: %w", c.ID, ErrNotFound)
		}
		return fmt.Errorf("close session %s: %w", c.ID, err)
	}
	wall := int64(c.EndedAt.Sub(parseTime(started)) / time.Second)
	idle := min(c.IdleSeconds, max(wall-active, 0))

	catJSON, _ := json.Marshal(categories)
	wiJSON, _ := json.Marshal(workItems)

	res, err := tx.Exec(
		`UPDATE sessions SET ended_at = ?, active_seconds = ?, idle_seconds = ?, interruptions = ?,
		        categories = ?, work_items = ?
		 WHERE id = ? AND ended_at IS NULL`,
		formatTime(c.EndedAt), active, idle, c.Interruptions, string(catJSON), string(wiJSON), c.ID,
	)
	if err != nil {
		return fmt.Errorf("close session %s: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("close session %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

func distinctTx(tx *sql.Tx, query, id string) ([]string, error) {
	rows, err := tx.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("aggregate session %s: %w", id, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) GetSession(id string) (*Session, error) {
	sess, err := scanSession(s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// GetOpenSession returns the open session, or nil when none is open.
func (s *Store) GetOpenSession() (*Session, error) {
	sess, err := scanSession(s.db.QueryRow(`SELECT ` + sessionColumns + ` FROM sessions WHERE ended_at IS NULL`))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open session: %w", err)
	}
	return sess, nil
}

// CloseDanglingSession closes a session left open by a crashed engine. It
// ends at its last span's end, or at its start when it has no spans.
func (s *Store) CloseDanglingSession() (*Session, error) {
	open, err := s.GetOpenSession()
	if err != nil || open == nil {
		return nil, err
	}
	end := open.StartedAt
	var last sql.NullString
	if err := s.db.QueryRow(
		`SELECT MAX(end_time) FROM activity_spans WHERE session_id = ?`, open.ID,
	).Scan(&last); err != nil {
		return nil, fmt.Errorf("last span of %s: %w", open.ID, err)
	}
	if t := parseNullTime(last); t != nil {
		end = *t
	}
	return s.CloseSession(SessionClose{ID: open.ID, EndedAt: end}, nil)
}

func (s *Store) ListSessions(limit int) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func scanSession(row rowScanner) (*Session, error) {
	sess := &Session{}
	var started, categories, workItems string
	var ended sql.NullString
	if err := row.Scan(&sess.ID, &started, &ended, &sess.ActiveSeconds, &sess.IdleSeconds,
		&sess.Interruptions, &categories, &workItems); err != nil {
		return nil, err
	}
	sess.StartedAt = parseTime(started)
	sess.EndedAt = parseNullTime(ended)
	_ = json.Unmarshal([]byte(categories), &sess.Categories)
	_ = json.Unmarshal([]byte(workItems), &sess.WorkItems)
	return sess, nil
}
