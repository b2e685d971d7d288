package store

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	_ "github.com/ncruces/go-sqlite3/vfs/adiantum"
	_ "modernc.org/sqlite"
)

const currentVersion = 1

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000Z"

var (
	ErrNotFound    = errors.New("not found")
	ErrKeyMismatch = errors.New("database key mismatch or file is not a database")
)

type Store struct {
	db        *sql.DB
	encrypted bool
}

// New opens (or creates) the plaintext SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	return Open(dbPath, "")
}

// Open opens the database at dbPath. A non-empty key selects the encrypting
// VFS; the key must match the one used at creation. Opening an encrypted file
// without a key, or with a different key, fails with ErrKeyMismatch.
func Open(dbPath, key string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	driver, dsn := "sqlite", dbPath
	if key != "" {
		driver = "sqlite3"
		dsn = "file:" + filepath.ToSlash(dbPath) + "?vfs=adiantum&textkey=" + url.QueryEscape(key)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	// The first read decrypts page 1; a wrong key surfaces here.
	var n int
	if err := db.QueryRow(`SELECT count(*) FROM sqlite_master`).Scan(&n); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	if key == "" {
		pragmas = append([]string{"PRAGMA journal_mode=WAL"}, pragmas...)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, encrypted: key != ""}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Encrypted() bool {
	return s.encrypted
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS sessions (
		id              TEXT PRIMARY KEY,
		started_at      TEXT NOT NULL,
		ended_at        TEXT,
		active_seconds  INTEGER NOT NULL DEFAULT 0,
		idle_seconds    INTEGER NOT NULL DEFAULT 0,
		interruptions   INTEGER NOT NULL DEFAULT 0,
		categories      TEXT NOT NULL DEFAULT '[]',
		work_items      TEXT NOT NULL DEFAULT '[]'
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_open ON sessions((ended_at IS NULL)) WHERE ended_at IS NULL;

	CREATE TABLE IF NOT EXISTS projects (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		path           TEXT NOT NULL UNIQUE,
		description    TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL,
		last_active    TEXT NOT NULL,
		pm_system      TEXT,
		pm_project_id  TEXT,
		pm_workspace   TEXT,
		embedding      BLOB
	);

	CREATE TABLE IF NOT EXISTS work_items (
		id               TEXT PRIMARY KEY,
		external_id      TEXT NOT NULL,
		external_system  TEXT NOT NULL,
		title            TEXT NOT NULL DEFAULT '',
		description      TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT '',
		project_id       TEXT REFERENCES projects(id),
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL,
		UNIQUE(external_id, external_system)
	);

	CREATE TABLE IF NOT EXISTS activity_spans (
		id                TEXT PRIMARY KEY,
		app_bundle_id     TEXT NOT NULL,
		category          TEXT NOT NULL,
		window_title      TEXT NOT NULL DEFAULT '',
		start_time        TEXT NOT NULL,
		end_time          TEXT,
		duration_seconds  INTEGER NOT NULL DEFAULT 0,
		project_id        TEXT REFERENCES projects(id),
		work_item_id      TEXT REFERENCES work_items(id),
		session_id        TEXT REFERENCES sessions(id),
		synced            INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_spans_start   ON activity_spans(start_time);
	CREATE INDEX IF NOT EXISTS idx_spans_session ON activity_spans(session_id);

	CREATE TABLE IF NOT EXISTS project_time (
		project_id        TEXT NOT NULL REFERENCES projects(id),
		date              TEXT NOT NULL,
		duration_seconds  INTEGER NOT NULL DEFAULT 0,
		updated_at        TEXT NOT NULL,
		PRIMARY KEY (project_id, date)
	);

	CREATE TABLE IF NOT EXISTS classification_rules (
		id              TEXT PRIMARY KEY,
		pattern         TEXT NOT NULL,
		pattern_target  TEXT NOT NULL,
		category        TEXT NOT NULL,
		priority_class  TEXT NOT NULL,
		hit_count       INTEGER NOT NULL DEFAULT 0,
		last_hit        TEXT,
		created_at      TEXT NOT NULL,
		UNIQUE(pattern, pattern_target, priority_class)
	);

	CREATE TABLE IF NOT EXISTS integration_configs (
		id              TEXT PRIMARY KEY,
		system_type     TEXT NOT NULL UNIQUE,
		api_url         TEXT NOT NULL DEFAULT '',
		api_key         TEXT NOT NULL DEFAULT '',
		workspace_slug  TEXT NOT NULL DEFAULT '',
		project_id      TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO settings (key, value) VALUES
		('idle_threshold_seconds', '300'),
		('short_break_seconds',    '120'),
		('long_break_seconds',     '300'),
		('away_seconds',           '1800'),
		('work_start_hour',        '9'),
		('work_end_hour',          '18'),
		('excluded_apps',          '[]'),
		('pause_tracking',         'false'),
		('capture_window_title',   'true');
	`

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(ddl); err != nil {
		return err
	}

	now := formatTime(time.Now())
	for _, seed := range builtinSeed {
		for _, target := range []PatternTarget{TargetWindowTitle, TargetAppID} {
			_, err := tx.Exec(
				`INSERT OR IGNORE INTO classification_rules (id, pattern, pattern_target, category, priority_class, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), seed.pattern, target, seed.category, ClassBuiltIn, now,
			)
			if err != nil {
				return fmt.Errorf("seed rule %s: %w", seed.category, err)
			}
		}
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// dayOf returns the UTC calendar day used by the per-project accumulator.
func dayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
