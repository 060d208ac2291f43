// Package publish turns a run's documentation updates into one pull request.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tomehq/tome/internal/errors"
	"github.com/tomehq/tome/internal/models"
	"github.com/tomehq/tome/internal/vcs"
)

// Publication steps, in the order they run.
const (
	StepResolveTip   = "resolve_tip"
	StepCreateBranch = "create_branch"
	StepCommitFile   = "commit_file"
	StepOpenPR       = "open_pull_request"
)

// Error reports the step a publication stopped at. Branch is set once the
// branch exists; it is left behind on the remote.
type Error struct {
	Step   string
	Branch string
	Path   string
	Cause  error
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "publication failed at %s", e.Step)
	if e.Path != "" {
		fmt.Fprintf(&sb, " for %s", e.Path)
	}
	if e.Branch != "" {
		fmt.Fprintf(&sb, " (branch %s)", e.Branch)
	}
	fmt.Fprintf(&sb, ": %v", e.Cause)
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Options configures branch naming and attribution.
type Options struct {
	BranchPrefix string
	Attribution  string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Publisher runs the tip -> branch -> commits -> pull request sequence.
type Publisher struct {
	provider vcs.Provider
	opts     Options
	logger   *slog.Logger
}

// New creates a Publisher.
func New(provider vcs.Provider, opts Options) *Publisher {
	if opts.Attribution == "" {
		opts.Attribution = "Generated by Tome"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Publisher{
		provider: provider,
		opts:     opts,
		logger:   slog.Default().With("component", "publish"),
	}
}

// Publish commits every update to a fresh branch off base and opens a pull
// request against base. Updates are coalesced by path first, so each path is
// committed once. Any failed step aborts the whole publication; nothing that
// was already created is rolled back.
func (p *Publisher) Publish(ctx context.Context, repo vcs.Repo, base string, updates []models.DocUpdate) (models.PublicationResult, error) {
	updates = Coalesce(updates)
	if len(updates) == 0 {
		return models.PublicationResult{}, errors.ValidationError("nothing to publish: no non-empty documentation updates")
	}

	tip, err := p.provider.GetBranchTip(ctx, repo, base)
	if err != nil {
		return models.PublicationResult{}, &Error{Step: StepResolveTip, Cause: err}
	}

	branch := BranchName(p.opts.BranchPrefix, p.opts.Now())
	if err := p.provider.CreateBranch(ctx, repo, branch, tip); err != nil {
		return models.PublicationResult{}, &Error{Step: StepCreateBranch, Cause: err}
	}
	p.logger.Info("branch created", "repo", repo.String(), "branch", branch, "from", tip)

	created := make(map[string]bool, len(updates))
	for _, u := range updates {
		// The SHA is looked up on the new branch, not on base.
		sha, err := p.provider.FileSHA(ctx, repo, u.TargetPath, branch)
		if err != nil && !vcs.IsNotFound(err) {
			return models.PublicationResult{}, &Error{Step: StepCommitFile, Branch: branch, Path: u.TargetPath, Cause: err}
		}
		action := "update"
		if sha == "" {
			action = "add"
			created[u.TargetPath] = true
		}

		_, err = p.provider.PutFile(ctx, repo, vcs.FileCommit{
			Path:     u.TargetPath,
			Content:  u.Content,
			Message:  CommitMessage(action, u, p.opts.Attribution),
			Branch:   branch,
			PriorSHA: sha,
		})
		if err != nil {
			return models.PublicationResult{}, &Error{Step: StepCommitFile, Branch: branch, Path: u.TargetPath, Cause: err}
		}
		p.logger.Debug("file committed", "branch", branch, "path", u.TargetPath, "action", action)
	}

	title := Title(len(updates))
	pr, err := p.provider.OpenPullRequest(ctx, repo, vcs.PullRequestSpec{
		Title: title,
		Body:  Body(updates, created, p.opts.Attribution),
		Head:  branch,
		Base:  base,
	})
	if err != nil {
		return models.PublicationResult{}, &Error{Step: StepOpenPR, Branch: branch, Cause: err}
	}
	p.logger.Info("pull request opened", "repo", repo.String(), "number", pr.Number, "files", len(updates))

	return models.PublicationResult{
		PRNumber:   pr.Number,
		PRURL:      pr.URL,
		BranchName: branch,
		Title:      title,
	}, nil
}

// BranchName is <prefix>docs-update-YYYYMMDD-HHMMSS in UTC.
func BranchName(prefix string, t time.Time) string {
	return prefix + "docs-update-" + t.UTC().Format("20060102-150405")
}

// Coalesce drops empty updates and merges updates that share a target path.
// A later update's content supersedes the earlier one and the gaps of both
// are kept; the path keeps its first position and IsNew flag.
func Coalesce(updates []models.DocUpdate) []models.DocUpdate {
	index := map[string]int{}
	var out []models.DocUpdate
	for _, u := range updates {
		if strings.TrimSpace(u.Content) == "" {
			continue
		}
		if i, ok := index[u.TargetPath]; ok {
			out[i].Content = u.Content
			out[i].Gaps = append(out[i].Gaps, u.Gaps...)
			continue
		}
		u.Gaps = append([]models.Gap(nil), u.Gaps...)
		index[u.TargetPath] = len(out)
		out = append(out, u)
	}
	return out
}

// CommitMessage is "docs: <action> <path>", the summaries of the gaps behind
// the update and the attribution footer.
func CommitMessage(action string, u models.DocUpdate, attribution string) string {
	var summary string
	switch len(u.Gaps) {
	case 0:
		summary = "Documentation update"
	case 1:
		summary = u.Gaps[0].Change.Summary
	default:
		lines := make([]string, len(u.Gaps))
		for i, g := range u.Gaps {
			lines[i] = "- " + g.Change.Summary
		}
		summary = strings.Join(lines, "\n")
	}
	return fmt.Sprintf("docs: %s %s\n\n%s\n\n%s", action, u.TargetPath, summary, attribution)
}

// Title states how many files the pull request touches.
func Title(n int) string {
	noun := "files"
	if n == 1 {
		noun = "file"
	}
	return fmt.Sprintf("docs: update documentation (%d %s)", n, noun)
}

// Body lists every detected change and every file touched. created holds the
// paths that did not exist on the branch before their commit.
func Body(updates []models.DocUpdate, created map[string]bool, attribution string) string {
	var sb strings.Builder
	sb.WriteString("## Documentation Updates\n\n")
	sb.WriteString("Tome detected code changes that need documentation coverage.\n\n")

	sb.WriteString("### Changes Detected\n")
	for _, u := range updates {
		for _, g := range u.Gaps {
			fmt.Fprintf(&sb, "- **%s** in `%s`: %s\n", g.Change.Kind, g.Change.SourceFile, g.Change.Summary)
		}
	}

	sb.WriteString("\n### Files Modified\n")
	for _, u := range updates {
		verb := "Updated"
		if created[u.TargetPath] {
			verb = "Created"
		}
		fmt.Fprintf(&sb, "- %s: `%s`\n", verb, u.TargetPath)
	}

	fmt.Fprintf(&sb, "\n---\n*%s*\n", attribution)
	return sb.String()
}
