package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const workItemColumns = `id, external_id, external_system, title, description, status, project_id, created_at, updated_at`

// UpsertWorkItem returns the work item keyed by (externalID, system),
// creating it when absent. A non-empty projectID is recorded on first sight.
func (s *Store) UpsertWorkItem(externalID, system, projectID string) (*WorkItem, error) {
	now := formatTime(time.Now())
	_, err := s.db.Exec(
		`INSERT INTO work_items (id, external_id, external_system, project_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(external_id, external_system) DO UPDATE SET
		   project_id = COALESCE(work_items.project_id, excluded.project_id)`,
		uuid.NewString(), externalID, system, nullString(projectID), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert work item %s: %w", externalID, err)
	}
	w, err := scanWorkItem(s.db.QueryRow(
		`SELECT `+workItemColumns+` FROM work_items WHERE external_id = ? AND external_system = ?`,
		externalID, system,
	))
	if err != nil {
		return nil, fmt.Errorf("get work item %s: %w", externalID, err)
	}
	return w, nil
}

func (s *Store) GetWorkItem(id string) (*WorkItem, error) {
	w, err := scanWorkItem(s.db.QueryRow(`SELECT `+workItemColumns+` FROM work_items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get work item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get work item %s: %w", id, err)
	}
	return w, nil
}

// UpdateWorkItemDetails stores details fetched from the external tracker.
func (s *Store) UpdateWorkItemDetails(id, title, description, status string) error {
	_, err := s.db.Exec(
		`UPDATE work_items SET title = ?, description = ?, status = ?, updated_at = ? WHERE id = ?`,
		title, description, status, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update work item %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListWorkItems() ([]WorkItem, error) {
	rows, err := s.db.Query(`SELECT ` + workItemColumns + ` FROM work_items ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()

	var items []WorkItem
	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *w)
	}
	return items, rows.Err()
}

func scanWorkItem(row rowScanner) (*WorkItem, error) {
	w := &WorkItem{}
	var projectID sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&w.ID, &w.ExternalID, &w.ExternalSystem, &w.Title, &w.Description, &w.Status,
		&projectID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	w.ProjectID = projectID.String
	w.CreatedAt = parseTime(createdAt)
	w.UpdatedAt = parseTime(updatedAt)
	return w, nil
}
