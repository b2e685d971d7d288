package store

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// DefaultSettings mirrors the rows seeded by the first migration.
func DefaultSettings() Settings {
	return Settings{
		IdleThresholdSeconds: 300,
		ShortBreakSeconds:    120,
		LongBreakSeconds:     300,
		AwaySeconds:          1800,
		WorkStartHour:        9,
		WorkEndHour:          18,
		ExcludedApps:         []string{},
		CaptureWindowTitle:   true,
	}
}

func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

func (s *Store) GetAllSettings() ([]Setting, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// LoadSettings reads the typed settings. Missing or malformed rows keep
// their defaults.
func (s *Store) LoadSettings() (Settings, error) {
	all, err := s.GetAllSettings()
	if err != nil {
		return Settings{}, err
	}
	st := DefaultSettings()
	for _, kv := range all {
		applySetting(&st, kv.Key, kv.Value)
	}
	return st, nil
}

func (s *Store) SaveSettings(st Settings) error {
	if err := ValidateSettings(st); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	defer tx.Rollback()

	for _, kv := range settingRows(st) {
		if _, err := tx.Exec(
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			kv.Key, kv.Value,
		); err != nil {
			return fmt.Errorf("save setting %q: %w", kv.Key, err)
		}
	}
	return tx.Commit()
}

// UpdateSetting parses value for a known key and saves the result.
func (s *Store) UpdateSetting(key, value string) error {
	st, err := s.LoadSettings()
	if err != nil {
		return err
	}
	if !applySetting(&st, key, value) {
		return fmt.Errorf("unknown setting or bad value %q=%q", key, value)
	}
	return s.SaveSettings(st)
}

// ValidateSettings checks threshold ordering and the work-hour window.
func ValidateSettings(st Settings) error {
	if !(st.ShortBreakSeconds > 0 && st.ShortBreakSeconds < st.LongBreakSeconds && st.LongBreakSeconds < st.AwaySeconds) {
		return fmt.Errorf("break thresholds must satisfy 0 < short (%d) < long (%d) < away (%d)",
			st.ShortBreakSeconds, st.LongBreakSeconds, st.AwaySeconds)
	}
	if st.WorkStartHour < 0 || st.WorkEndHour > 24 || st.WorkStartHour >= st.WorkEndHour {
		return fmt.Errorf("work hours must satisfy 0 <= start (%d) < end (%d) <= 24", st.WorkStartHour, st.WorkEndHour)
	}
	return nil
}

func settingRows(st Settings) []Setting {
	excluded, _ := json.Marshal(st.ExcludedApps)
	return []Setting{
		{"idle_threshold_seconds", strconv.Itoa(st.IdleThresholdSeconds)},
		{"short_break_seconds", strconv.Itoa(st.ShortBreakSeconds)},
		{"long_break_seconds", strconv.Itoa(st.LongBreakSeconds)},
		{"away_seconds", strconv.Itoa(st.AwaySeconds)},
		{"work_start_hour", strconv.Itoa(st.WorkStartHour)},
		{"work_end_hour", strconv.Itoa(st.WorkEndHour)},
		{"excluded_apps", string(excluded)},
		{"pause_tracking", strconv.FormatBool(st.PauseTracking)},
		{"capture_window_title", strconv.FormatBool(st.CaptureWindowTitle)},
	}
}

func applySetting(st *Settings, key, value string) bool {
	intField := map[string]*int{
		"idle_threshold_seconds": &st.IdleThresholdSeconds,
		"short_break_seconds":    &st.ShortBreakSeconds,
		"long_break_seconds":     &st.LongBreakSeconds,
		"away_seconds":           &st.AwaySeconds,
		"work_start_hour":        &st.WorkStartHour,
		"work_end_hour":          &st.WorkEndHour,
	}
	boolField := map[string]*bool{
		"pause_tracking":       &st.PauseTracking,
		"capture_window_title": &st.CaptureWindowTitle,
	}

	if p, ok := intField[key]; ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			return false
		}
		*p = n
		return true
	}
	if p, ok := boolField[key]; ok {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false
		}
		*p = b
		return true
	}
	if key == "excluded_apps" {
		var apps []string
		if err := json.Unmarshal([]byte(value), &apps); err != nil {
			return false
		}
		st.ExcludedApps = apps
		return true
	}
	return false
}
