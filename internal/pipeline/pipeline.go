// Package pipeline runs the push and scan pipelines for one project at a
// time. Every run outcome is written to the ledger as an activity entry.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tomehq/tome/internal/config"
	"github.com/tomehq/tome/internal/corpus"
	"github.com/tomehq/tome/internal/errors"
	"github.com/tomehq/tome/internal/llm"
	"github.com/tomehq/tome/internal/models"
	"github.com/tomehq/tome/internal/vcs"
)

// Ledger records gaps and activity. Pipelines treat every call as a side
// effect: a failing ledger is logged and never changes the run's course.
type Ledger interface {
	CreateGap(ctx context.Context, projectID, sourceFile, gapType, description string) (int64, error)
	UpdateGap(ctx context.Context, id int64, update models.GapUpdate) error
	LogActivity(ctx context.Context, projectID string, event models.EventType, summary string, details map[string]any) error
}

// ProjectStore resolves the project a run is for.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
}

// ProviderFactory returns a provider authenticated with token.
type ProviderFactory func(token string) (vcs.Provider, error)

// Pipeline holds the collaborators shared by all runs. It keeps no per-run
// state, so runs for different projects may execute concurrently.
type Pipeline struct {
	cfg       *config.Config
	gen       llm.TextGenerator
	projects  ProjectStore
	ledger    Ledger
	providers ProviderFactory
	now       func() time.Time
	logger    *slog.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for branch names.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline.
func New(cfg *config.Config, gen llm.TextGenerator, projects ProjectStore, ledger Ledger, providers ProviderFactory, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		gen:       gen,
		projects:  projects,
		ledger:    ledger,
		providers: providers,
		now:       time.Now,
		logger:    slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run is the per-invocation context resolved before any remote call.
type run struct {
	project  *models.Project
	repo     vcs.Repo
	provider vcs.Provider
	loader   *corpus.Loader
	logger   *slog.Logger
}

// prepare validates the trigger fields and resolves the project and its
// provider. It makes no remote call.
func (p *Pipeline) prepare(ctx context.Context, projectID string, required map[string]string) (*run, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.ValidationError("project id is required")
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return nil, errors.ValidationErrorf("%s is required", name)
		}
	}

	project, err := p.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.SeverityHigh, "project "+projectID+" not found")
	}
	if err := project.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.SeverityHigh, "invalid project")
	}

	token := project.GitHubToken
	if token == "" {
		token = p.cfg.GitHub.Token
	}
	provider, err := p.providers(token)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityHigh, "create version-control provider")
	}

	return &run{
		project:  project,
		repo:     vcs.Repo{Owner: project.Owner, Name: project.Repo},
		provider: provider,
		loader: corpus.NewLoader(provider,
			p.cfg.Pipeline.DocExtensions,
			p.cfg.Pipeline.SourceExtensions,
			p.cfg.Pipeline.CorpusReadWorkers),
		logger: p.logger.With("project", project.ID, "repo", project.FullName()),
	}, nil
}

func (p *Pipeline) record(ctx context.Context, projectID string, event models.EventType, summary string, details map[string]any) {
	if err := p.ledger.LogActivity(ctx, projectID, event, summary, details); err != nil {
		p.logger.Error("failed to record activity", "project", projectID, "event", event, "error", err)
	}
}

// createGap persists a gap and returns its ledger id, or 0 when the ledger
// write failed.
func (p *Pipeline) createGap(ctx context.Context, projectID, sourceFile, gapType, description string) int64 {
	id, err := p.ledger.CreateGap(ctx, projectID, sourceFile, gapType, description)
	if err != nil {
		p.logger.Error("failed to record gap", "project", projectID, "source_file", sourceFile, "error", err)
		return 0
	}
	return id
}

func short(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
