package storage

import (
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PostgresStore implements storage using PostgreSQL
type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{&sqlStore{db: db, logger: logger, now: time.Now}}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) initSchema() error {
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
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activity (
		id BIGSERIAL PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		event_type TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		details JSONB,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS gaps (
		id BIGSERIAL PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		source_file TEXT NOT NULL,
		gap_type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'detected',
		pr_number BIGINT,
		pr_url TEXT,
		doc_file TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		resolved_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_projects_repo ON projects(github_owner, github_repo);
	CREATE INDEX IF NOT EXISTS idx_activity_project ON activity(project_id);
	CREATE INDEX IF NOT EXISTS idx_gaps_project ON gaps(project_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}
