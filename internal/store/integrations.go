package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const integrationColumns = `id, system_type, api_url, api_key, workspace_slug, project_id, created_at, updated_at`

// SaveIntegration inserts or replaces the configuration for cfg.SystemType.
func (s *Store) SaveIntegration(cfg *Integration) error {
	now := time.Now().UTC()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	_, err := s.db.Exec(
		`INSERT INTO integration_configs (`+integrationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(system_type) DO UPDATE SET
		   api_url = excluded.api_url, api_key = excluded.api_key,
		   workspace_slug = excluded.workspace_slug, project_id = excluded.project_id,
		   updated_at = excluded.updated_at`,
		cfg.ID, cfg.SystemType, cfg.APIURL, cfg.APIKey, cfg.WorkspaceSlug, cfg.ProjectID,
		formatTime(cfg.CreatedAt), formatTime(cfg.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save integration %s: %w", cfg.SystemType, err)
	}
	return nil
}

func (s *Store) GetIntegration(system string) (*Integration, error) {
	cfg := &Integration{}
	var createdAt, updatedAt string
	err := s.db.QueryRow(
		`SELECT `+integrationColumns+` FROM integration_configs WHERE system_type = ?`, system,
	).Scan(&cfg.ID, &cfg.SystemType, &cfg.APIURL, &cfg.APIKey, &cfg.WorkspaceSlug, &cfg.ProjectID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get integration %s: %w", system, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get integration %s: %w", system, err)
	}
	cfg.CreatedAt = parseTime(createdAt)
	cfg.UpdatedAt = parseTime(updatedAt)
	return cfg, nil
}

func (s *Store) DeleteIntegration(system string) error {
	_, err := s.db.Exec(`DELETE FROM integration_configs WHERE system_type = ?`, system)
	return err
}
