package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore implements storage using SQLite (for local/development)
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore creates a new SQLite storage. path ":memory:" keeps the
// database in memory.
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}
	// One connection serializes writes and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{&sqlStore{db: db, logger: logger, now: time.Now}}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		github_owner TEXT NOT NULL,
		github_repo TEXT NOT NULL,
		docs_paths TEXT NOT NULL DEFAULT 'docs/',
		source_paths TEXT NOT NULL DEFAULT 'src/',
		default_branch TEXT NOT NULL DEFAULT 'main',
		github_token TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		total_gaps_found INTEGER NOT NULL DEFAULT 0,
		total_prs_opened INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activity (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL REFERENCES projects(id),
		event_type TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		details TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS gaps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL REFERENCES projects(id),
		source_file TEXT NOT NULL,
		gap_type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'detected',
		pr_number INTEGER,
		pr_url TEXT,
		doc_file TEXT,
		created_at TIMESTAMP NOT NULL,
		resolved_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_projects_repo ON projects(github_owner, github_repo);
	CREATE INDEX IF NOT EXISTS idx_activity_project ON activity(project_id);
	CREATE INDEX IF NOT EXISTS idx_gaps_project ON gaps(project_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}
