// Package trigger turns GitHub webhook deliveries into pipeline triggers.
package trigger

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/go-github/v57/github"

	"github.com/tomehq/tome/internal/errors"
	"github.com/tomehq/tome/internal/models"
	"github.com/tomehq/tome/internal/storage"
)

const zeroSHA = "0000000000000000000000000000000000000000"

// ProjectFinder resolves a repository to its active project.
type ProjectFinder interface {
	FindProjectByRepo(ctx context.Context, owner, repo string) (*models.Project, error)
}

// Trigger asks for a push pipeline run over before..after.
type Trigger struct {
	ProjectID string
	Before    string
	After     string
	// Source is "push" or "pull_request".
	Source string
	// PRNumber is set for merged pull requests.
	PRNumber int
}

// Decision is the result of converting one delivery: a trigger, or the
// reason it was ignored.
type Decision struct {
	Trigger *Trigger
	Reason  string
}

// Accepted reports whether the delivery produced a trigger.
func (d Decision) Accepted() bool {
	return d.Trigger != nil
}

func ignore(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Converter maps deliveries to decisions.
type Converter struct {
	projects     ProjectFinder
	branchPrefix string
	secret       []byte
	logger       *slog.Logger
}

// NewConverter creates a Converter. Pull requests whose head branch starts
// with branchPrefix are Tome's own and are ignored. A non-empty secret
// enables signature verification.
func NewConverter(projects ProjectFinder, branchPrefix, secret string) *Converter {
	return &Converter{
		projects:     projects,
		branchPrefix: branchPrefix,
		secret:       []byte(secret),
		logger:       slog.Default().With("component", "trigger"),
	}
}

// Verify checks an X-Hub-Signature-256 header against the payload. It is a
// no-op when no secret is configured.
func (c *Converter) Verify(signature string, payload []byte) error {
	if len(c.secret) == 0 {
		return nil
	}
	if signature == "" {
		return errors.ValidationError("missing webhook signature")
	}
	if err := github.ValidateSignature(signature, payload, c.secret); err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, errors.SeverityHigh, "invalid webhook signature")
	}
	return nil
}

// Convert parses a delivery of the given X-GitHub-Event type.
func (c *Converter) Convert(ctx context.Context, event string, payload []byte) (Decision, error) {
	switch event {
	case "ping":
		return ignore("ping"), nil
	case "push", "pull_request":
	default:
		return ignore("unsupported event %q", event), nil
	}

	parsed, err := github.ParseWebHook(event, payload)
	if err != nil {
		return Decision{}, errors.Wrap(err, errors.ErrorTypeValidation, errors.SeverityMedium, "malformed webhook payload")
	}

	switch e := parsed.(type) {
	case *github.PushEvent:
		return c.fromPush(ctx, e)
	case *github.PullRequestEvent:
		return c.fromPullRequest(ctx, e)
	default:
		return ignore("unsupported event %q", event), nil
	}
}

func (c *Converter) fromPush(ctx context.Context, e *github.PushEvent) (Decision, error) {
	fullName := e.GetRepo().GetFullName()
	before, after := e.GetBefore(), e.GetAfter()
	if fullName == "" || before == "" || after == "" {
		return ignore("missing fields"), nil
	}

	project, decision, err := c.lookup(ctx, fullName)
	if project == nil {
		return decision, err
	}

	expected := "refs/heads/" + project.DefaultBranch
	if ref := e.GetRef(); ref != expected {
		return ignore("push to %s, not %s", ref, expected), nil
	}
	if before == zeroSHA {
		return ignore("branch creation, no diff"), nil
	}
	if after == zeroSHA || e.GetDeleted() {
		return ignore("branch deletion"), nil
	}

	c.logger.Info("push accepted", "repo", fullName, "before", short(before), "after", short(after))
	return Decision{Trigger: &Trigger{
		ProjectID: project.ID,
		Before:    before,
		After:     after,
		Source:    "push",
	}}, nil
}

func (c *Converter) fromPullRequest(ctx context.Context, e *github.PullRequestEvent) (Decision, error) {
	pr := e.GetPullRequest()
	if e.GetAction() != "closed" || !pr.GetMerged() {
		return ignore("pull request %s without merge", e.GetAction()), nil
	}
	if c.branchPrefix != "" && strings.HasPrefix(pr.GetHead().GetRef(), c.branchPrefix) {
		return ignore("tome's own PR"), nil
	}

	fullName := e.GetRepo().GetFullName()
	baseSHA, mergeSHA := pr.GetBase().GetSHA(), pr.GetMergeCommitSHA()
	if fullName == "" {
		return ignore("missing fields"), nil
	}
	if baseSHA == "" || mergeSHA == "" {
		return ignore("missing SHAs"), nil
	}

	project, decision, err := c.lookup(ctx, fullName)
	if project == nil {
		return decision, err
	}

	c.logger.Info("merged pull request accepted", "repo", fullName, "number", pr.GetNumber())
	return Decision{Trigger: &Trigger{
		ProjectID: project.ID,
		Before:    baseSHA,
		After:     mergeSHA,
		Source:    "pull_request",
		PRNumber:  pr.GetNumber(),
	}}, nil
}

// lookup returns the project for fullName, or a decision/error explaining
// why there is none.
func (c *Converter) lookup(ctx context.Context, fullName string) (*models.Project, Decision, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" {
		return nil, ignore("malformed repository name %q", fullName), nil
	}
	project, err := c.projects.FindProjectByRepo(ctx, owner, repo)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, ignore("no matching project"), nil
	}
	if err != nil {
		return nil, Decision{}, errors.DatabaseErrorf(err, "find project for %s", fullName)
	}
	return project, Decision{}, nil
}

func short(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
