package models

import (
	"fmt"
	"strings"
	"time"
)

// Project is the per-repository record a pipeline run is configured from.
// DocsPaths and SourcePaths are comma-separated path prefixes.
type Project struct {
	ID             string    `json:"id" db:"id" yaml:"id"`
	Name           string    `json:"name" db:"name" yaml:"name"`
	Owner          string    `json:"github_owner" db:"github_owner" yaml:"owner"`
	Repo           string    `json:"github_repo" db:"github_repo" yaml:"repo"`
	DocsPaths      string    `json:"docs_paths" db:"docs_paths" yaml:"docs_paths"`
	SourcePaths    string    `json:"source_paths" db:"source_paths" yaml:"source_paths"`
	DefaultBranch  string    `json:"default_branch" db:"default_branch" yaml:"default_branch"`
	GitHubToken    string    `json:"-" db:"github_token" yaml:"github_token"`
	Status         string    `json:"status" db:"status" yaml:"-"`
	TotalGapsFound int       `json:"total_gaps_found" db:"total_gaps_found" yaml:"-"`
	TotalPRsOpened int       `json:"total_prs_opened" db:"total_prs_opened" yaml:"-"`
	CreatedAt      time.Time `json:"created_at" db:"created_at" yaml:"-"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at" yaml:"-"`
}

// FullName returns owner/repo.
func (p *Project) FullName() string {
	return p.Owner + "/" + p.Repo
}

// DocPrefixes returns the documentation path prefixes, trimmed and non-empty.
func (p *Project) DocPrefixes() []string {
	return splitPrefixes(p.DocsPaths)
}

// SourcePrefixes returns the source path prefixes, trimmed and non-empty.
func (p *Project) SourcePrefixes() []string {
	return splitPrefixes(p.SourcePaths)
}

// DocsDir is the directory new documentation files are created in: the first
// configured docs prefix, or "docs".
func (p *Project) DocsDir() string {
	prefixes := p.DocPrefixes()
	if len(prefixes) == 0 {
		return "docs"
	}
	dir := strings.Trim(prefixes[0], "/")
	if dir == "" {
		return "docs"
	}
	return dir
}

// Validate checks the fields a pipeline run cannot do without.
func (p *Project) Validate() error {
	var missing []string
	if p.ID == "" {
		missing = append(missing, "id")
	}
	if p.Owner == "" {
		missing = append(missing, "github_owner")
	}
	if p.Repo == "" {
		missing = append(missing, "github_repo")
	}
	if p.DefaultBranch == "" {
		missing = append(missing, "default_branch")
	}
	if len(missing) > 0 {
		return fmt.Errorf("project %q is missing required fields: %s", p.ID, strings.Join(missing, ", "))
	}
	return nil
}

func splitPrefixes(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GapStatus is the ledger lifecycle state of a gap.
type GapStatus string

const (
	GapDetected GapStatus = "detected"
	GapPROpened GapStatus = "pr_opened"
	GapResolved GapStatus = "resolved"
	GapPRFailed GapStatus = "pr_failed"
)

// GapRecord is a gap as persisted in the ledger.
type GapRecord struct {
	ID          int64      `json:"id" db:"id"`
	ProjectID   string     `json:"project_id" db:"project_id"`
	SourceFile  string     `json:"source_file" db:"source_file"`
	GapType     string     `json:"gap_type" db:"gap_type"`
	Description string     `json:"description" db:"description"`
	Status      GapStatus  `json:"status" db:"status"`
	PRNumber    *int64     `json:"pr_number,omitempty" db:"pr_number"`
	PRURL       *string    `json:"pr_url,omitempty" db:"pr_url"`
	DocFile     *string    `json:"doc_file,omitempty" db:"doc_file"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// GapUpdate carries the optional fields of a gap status transition.
type GapUpdate struct {
	Status     GapStatus
	PRNumber   int
	PRURL      string
	TargetFile string
}

// Activity is one audit entry written by a pipeline run.
type Activity struct {
	ID        int64     `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	EventType EventType `json:"event_type" db:"event_type"`
	Summary   string    `json:"summary" db:"summary"`
	Details   *string   `json:"details,omitempty" db:"details"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Stats aggregates ledger counters across all active projects.
type Stats struct {
	TotalProjects int `json:"total_projects" db:"total_projects"`
	TotalGaps     int `json:"total_gaps" db:"total_gaps"`
	TotalPRs      int `json:"total_prs" db:"total_prs"`
	TotalResolved int `json:"total_resolved" db:"total_resolved"`
}
