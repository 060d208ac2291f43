package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tomehq/tome/internal/config"
	"github.com/tomehq/tome/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Store is the run ledger together with the project records runs are
// configured from.
type Store interface {
	// Project operations
	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	FindProjectByRepo(ctx context.Context, owner, repo string) (*models.Project, error)

	// Gap operations
	CreateGap(ctx context.Context, projectID, sourceFile, gapType, description string) (int64, error)
	UpdateGap(ctx context.Context, id int64, update models.GapUpdate) error
	ListGaps(ctx context.Context, projectID string, status models.GapStatus) ([]*models.GapRecord, error)

	// Activity operations
	LogActivity(ctx context.Context, projectID string, event models.EventType, summary string, details map[string]any) error
	ListActivity(ctx context.Context, projectID string, limit int) ([]*models.Activity, error)

	Stats(ctx context.Context) (*models.Stats, error)

	// Close connection
	Close() error
}

// Open returns the store selected by cfg.Type.
func Open(cfg config.StorageConfig, logger *logrus.Logger) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Type {
	case "", "sqlite":
		var s *SQLiteStore
		if s, err = NewSQLiteStore(cfg.LocalPath, logger); err == nil {
			store = s
		}
	case "postgres":
		var s *PostgresStore
		if s, err = NewPostgresStore(cfg.PostgresDSN, logger); err == nil {
			store = s
		}
	default:
		err = fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
