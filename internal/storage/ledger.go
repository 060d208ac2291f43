package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/tomehq/tome/internal/models"
)

// sqlStore holds the queries shared by the SQLite and Postgres stores.
// Queries are written with ? placeholders and rebound for the driver.
type sqlStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
	now    func() time.Time
}

func (s *sqlStore) q(query string) string {
	return s.db.Rebind(query)
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// Project operations

func (s *sqlStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()[:8]
	}
	if p.Status == "" {
		p.Status = "active"
	}
	if p.DefaultBranch == "" {
		p.DefaultBranch = "main"
	}
	now := s.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	query := `
		INSERT INTO projects
		(id, name, github_owner, github_repo, docs_paths, source_paths, default_branch,
		 github_token, status, total_gaps_found, total_prs_opened, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, s.q(query),
		p.ID, p.Name, p.Owner, p.Repo, p.DocsPaths, p.SourcePaths, p.DefaultBranch,
		p.GitHubToken, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("project %s: %w", p.ID, ErrConflict)
		}
		return fmt.Errorf("create project: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"project": p.ID, "repo": p.FullName()}).Debug("project created")
	return nil
}

func (s *sqlStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	err := s.db.GetContext(ctx, &p, s.q(`SELECT * FROM projects WHERE id = ?`), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (s *sqlStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	var projects []*models.Project
	query := `SELECT * FROM projects WHERE status = 'active' ORDER BY created_at DESC, id`
	if err := s.db.SelectContext(ctx, &projects, s.q(query)); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *sqlStore) FindProjectByRepo(ctx context.Context, owner, repo string) (*models.Project, error) {
	var p models.Project
	query := `
		SELECT * FROM projects
		WHERE LOWER(github_owner) = LOWER(?) AND LOWER(github_repo) = LOWER(?) AND status = 'active'
		ORDER BY created_at
		LIMIT 1
	`
	err := s.db.GetContext(ctx, &p, s.q(query), owner, repo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find project: %w", err)
	}
	return &p, nil
}

// Gap operations

// CreateGap records a detected gap and bumps the project's gap counter.
func (s *sqlStore) CreateGap(ctx context.Context, projectID, sourceFile, gapType, description string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	var id int64
	query := `
		INSERT INTO gaps (project_id, source_file, gap_type, description, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err = tx.QueryRowxContext(ctx, s.q(query),
		projectID, sourceFile, gapType, description, models.GapDetected, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create gap: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		s.q(`UPDATE projects SET total_gaps_found = total_gaps_found + 1, updated_at = ? WHERE id = ?`),
		now, projectID)
	if err != nil {
		return 0, fmt.Errorf("count gap: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit gap: %w", err)
	}
	return id, nil
}

// UpdateGap moves a gap to a new status. PR fields and the target file are
// only overwritten when given. resolved_at is set on the transition to
// resolved, and a recorded PR URL counts toward the project's PR total.
func (s *sqlStore) UpdateGap(ctx context.Context, id int64, u models.GapUpdate) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	var resolvedAt *time.Time
	if u.Status == models.GapResolved {
		resolvedAt = &now
	}

	query := `
		UPDATE gaps SET
			status = ?,
			pr_number = COALESCE(?, pr_number),
			pr_url = COALESCE(?, pr_url),
			doc_file = COALESCE(?, doc_file),
			resolved_at = ?
		WHERE id = ?
	`
	res, err := tx.ExecContext(ctx, s.q(query),
		u.Status, nullInt(u.PRNumber), nullString(u.PRURL), nullString(u.TargetFile), resolvedAt, id)
	if err != nil {
		return fmt.Errorf("update gap: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("gap %d: %w", id, ErrNotFound)
	}

	if u.PRURL != "" {
		query := `
			UPDATE projects SET total_prs_opened = total_prs_opened + 1, updated_at = ?
			WHERE id = (SELECT project_id FROM gaps WHERE id = ?)
		`
		if _, err := tx.ExecContext(ctx, s.q(query), now, id); err != nil {
			return fmt.Errorf("count pr: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit gap update: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"gap": id, "status": u.Status}).Debug("gap updated")
	return nil
}

// ListGaps returns a project's gaps, newest first. An empty status lists all.
func (s *sqlStore) ListGaps(ctx context.Context, projectID string, status models.GapStatus) ([]*models.GapRecord, error) {
	var gaps []*models.GapRecord
	query := `SELECT * FROM gaps WHERE project_id = ?`
	args := []any{projectID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	if err := s.db.SelectContext(ctx, &gaps, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("list gaps: %w", err)
	}
	return gaps, nil
}

// Activity operations

// LogActivity appends an activity entry. details is stored as JSON.
func (s *sqlStore) LogActivity(ctx context.Context, projectID string, event models.EventType, summary string, details map[string]any) error {
	var encoded *string
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode activity details: %w", err)
		}
		text := string(raw)
		encoded = &text
	}

	query := `
		INSERT INTO activity (project_id, event_type, summary, details, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, s.q(query), projectID, event, summary, encoded, s.now().UTC()); err != nil {
		return fmt.Errorf("log activity: %w", err)
	}
	return nil
}

func (s *sqlStore) ListActivity(ctx context.Context, projectID string, limit int) ([]*models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []*models.Activity
	query := `SELECT * FROM activity WHERE project_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	if err := s.db.SelectContext(ctx, &entries, s.q(query), projectID, limit); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}

// Stats counts active projects and all gaps, PRs and resolutions.
func (s *sqlStore) Stats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	query := `
		SELECT
			(SELECT COUNT(*) FROM projects WHERE status = 'active') AS total_projects,
			(SELECT COUNT(*) FROM gaps) AS total_gaps,
			(SELECT COUNT(*) FROM gaps WHERE pr_url IS NOT NULL) AS total_prs,
			(SELECT COUNT(*) FROM gaps WHERE status = 'resolved') AS total_resolved
	`
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &stats, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(n int) *int64 {
	if n == 0 {
		return nil
	}
	v := int64(n)
	return &v
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
