package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

const projectColumns = `id, name, path, description, created_at, last_active, pm_system, pm_project_id, pm_workspace, embedding`

// GetOrCreateProject returns the project rooted at path, creating it when absent.
func (s *Store) GetOrCreateProject(name, path string) (*Project, error) {
	now := formatTime(time.Now())
	_, err := s.db.Exec(
		`INSERT INTO projects (id, name, path, created_at, last_active) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO NOTHING`,
		uuid.NewString(), name, path, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project %s: %w", path, err)
	}
	p, err := scanProject(s.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE path = ?`, path))
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", path, err)
	}
	return p, nil
}

func (s *Store) GetProject(id string) (*Project, error) {
	p, err := scanProject(s.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

func (s *Store) ListProjects() ([]Project, error) {
	rows, err := s.db.Query(`SELECT ` + projectColumns + ` FROM projects ORDER BY last_active DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (s *Store) SetProjectDescription(id, description string) error {
	_, err := s.db.Exec(`UPDATE projects SET description = ? WHERE id = ?`, description, id)
	return err
}

// LinkProject attaches a project-management link; a nil link clears it.
func (s *Store) LinkProject(id string, link *PMLink) error {
	var system, external, workspace sql.NullString
	if link != nil {
		system, external, workspace = nullString(link.System), nullString(link.ExternalProjectID), nullString(link.Workspace)
	}
	_, err := s.db.Exec(
		`UPDATE projects SET pm_system = ?, pm_project_id = ?, pm_workspace = ? WHERE id = ?`,
		system, external, workspace, id,
	)
	if err != nil {
		return fmt.Errorf("link project %s: %w", id, err)
	}
	return nil
}

func (s *Store) SetProjectEmbedding(id string, vec []float32) error {
	_, err := s.db.Exec(`UPDATE projects SET embedding = ? WHERE id = ?`, EncodeVector(vec), id)
	if err != nil {
		return fmt.Errorf("set embedding %s: %w", id, err)
	}
	return nil
}

// UpsertProjectTime adds delta seconds to the project's total for date (YYYY-MM-DD).
func (s *Store) UpsertProjectTime(projectID, date string, delta int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("upsert project time: %w", err)
	}
	defer tx.Rollback()
	if err := upsertProjectTimeTx(tx, projectID, date, delta); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertProjectTimeTx(tx *sql.Tx, projectID, date string, delta int64) error {
	_, err := tx.Exec(
		`INSERT INTO project_time (project_id, date, duration_seconds, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(project_id, date) DO UPDATE SET
		   duration_seconds = duration_seconds + excluded.duration_seconds,
		   updated_at = excluded.updated_at`,
		projectID, date, delta, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upsert project time %s/%s: %w", projectID, date, err)
	}
	return nil
}

// GetProjectTime returns the accumulated seconds for one project and day.
func (s *Store) GetProjectTime(projectID, date string) (int64, error) {
	var total int64
	err := s.db.QueryRow(
		`SELECT duration_seconds FROM project_time WHERE project_id = ? AND date = ?`, projectID, date,
	).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get project time: %w", err)
	}
	return total, nil
}

func scanProject(row rowScanner) (*Project, error) {
	p := &Project{}
	var createdAt, lastActive string
	var system, external, workspace sql.NullString
	var embedding []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Path, &p.Description, &createdAt, &lastActive,
		&system, &external, &workspace, &embedding); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.LastActive = parseTime(lastActive)
	if system.Valid {
		p.PM = &PMLink{System: system.String, ExternalProjectID: external.String, Workspace: workspace.String}
	}
	p.Embedding = DecodeVector(embedding)
	return p, nil
}

// EncodeVector packs a vector as little-endian float32 values.
func EncodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func DecodeVector(buf []byte) []float32 {
	if len(buf) < 4 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}
