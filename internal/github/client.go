package github

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	"github.com/tomehq/tome/internal/errors"
	"github.com/tomehq/tome/internal/vcs"
)

// Client implements vcs.Provider on the GitHub REST API with rate limiting
// and a bounded wait per call.
type Client struct {
	client      *github.Client
	rateLimiter *rate.Limiter
	timeout     time.Duration
	logger      *slog.Logger
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	Token     string
	BaseURL   string // GitHub Enterprise API root, empty for github.com
	RateLimit int    // requests per second
	Timeout   time.Duration
}

// NewClient creates a new GitHub client with rate limiting
func NewClient(opts Options) (*Client, error) {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	client := github.NewClient(nil)
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}
	if opts.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, errors.ConfigErrorf("invalid github base url %q: %v", opts.BaseURL, err)
		}
	}

	return &Client{
		client:      client,
		rateLimiter: rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		timeout:     opts.Timeout,
		logger:      slog.Default().With("component", "github"),
	}, nil
}

// begin waits for the rate limiter and bounds the call that follows.
func (c *Client) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, nil, errors.NetworkError(err, "rate limiter")
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	return callCtx, cancel, nil
}

func isNotFound(err error) bool {
	var errResp *github.ErrorResponse
	if stderrors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode == http.StatusNotFound
	}
	return false
}

func wrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if isNotFound(err) {
		return fmt.Errorf("%s: %w", msg, vcs.ErrNotFound)
	}
	var errResp *github.ErrorResponse
	if stderrors.As(err, &errResp) {
		return errors.ExternalError(err, msg)
	}
	return errors.NetworkError(err, msg)
}

// GetDiff returns the unified diff between two revisions.
func (c *Client) GetDiff(ctx context.Context, repo vcs.Repo, base, head string) (string, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	diff, _, err := c.client.Repositories.CompareCommitsRaw(ctx, repo.Owner, repo.Name, base, head,
		github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", wrap(err, "compare %s...%s in %s", base, head, repo)
	}
	c.logger.Debug("diff fetched", "repo", repo.String(), "base", base, "head", head, "bytes", len(diff))
	return diff, nil
}

// ListTree lists every path reachable from ref.
func (c *Client) ListTree(ctx context.Context, repo vcs.Repo, ref string) ([]vcs.TreeEntry, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	tree, _, err := c.client.Git.GetTree(ctx, repo.Owner, repo.Name, ref, true)
	if err != nil {
		return nil, wrap(err, "fetch tree %s@%s", repo, ref)
	}
	if tree.GetTruncated() {
		c.logger.Warn("tree listing truncated by github", "repo", repo.String(), "ref", ref)
	}

	entries := make([]vcs.TreeEntry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		kind := vcs.EntryKind(entry.GetType())
		if kind != vcs.EntryBlob && kind != vcs.EntryTree {
			continue // submodule commits
		}
		entries = append(entries, vcs.TreeEntry{Path: entry.GetPath(), Kind: kind})
	}
	return entries, nil
}

func (c *Client) getFile(ctx context.Context, repo vcs.Repo, path, ref string) (*github.RepositoryContent, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	file, _, _, err := c.client.Repositories.GetContents(ctx, repo.Owner, repo.Name, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, wrap(err, "get %s@%s", path, ref)
	}
	if file == nil {
		return nil, fmt.Errorf("%s@%s is a directory: %w", path, ref, vcs.ErrNotFound)
	}
	return file, nil
}

// ReadFile returns the decoded content of a file at ref.
func (c *Client) ReadFile(ctx context.Context, repo vcs.Repo, path, ref string) (string, error) {
	file, err := c.getFile(ctx, repo, path, ref)
	if err != nil {
		return "", err
	}
	content, err := file.GetContent()
	if err != nil {
		return "", errors.ExternalErrorf(err, "decode %s@%s", path, ref)
	}
	return content, nil
}

// FileSHA returns the blob SHA of a file at ref.
func (c *Client) FileSHA(ctx context.Context, repo vcs.Repo, path, ref string) (string, error) {
	file, err := c.getFile(ctx, repo, path, ref)
	if err != nil {
		return "", err
	}
	return file.GetSHA(), nil
}

// GetBranchTip resolves the commit a branch points at.
func (c *Client) GetBranchTip(ctx context.Context, repo vcs.Repo, branch string) (string, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	ref, _, err := c.client.Git.GetRef(ctx, repo.Owner, repo.Name, "heads/"+branch)
	if err != nil {
		return "", wrap(err, "get branch %s", branch)
	}
	return ref.GetObject().GetSHA(), nil
}

// CreateBranch creates refs/heads/<name> at fromCommit.
func (c *Client) CreateBranch(ctx context.Context, repo vcs.Repo, name, fromCommit string) error {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	_, _, err = c.client.Git.CreateRef(ctx, repo.Owner, repo.Name, &github.Reference{
		Ref:    github.String("refs/heads/" + name),
		Object: &github.GitObject{SHA: github.String(fromCommit)},
	})
	if err != nil {
		return wrap(err, "create branch %s", name)
	}
	c.logger.Info("branch created", "repo", repo.String(), "branch", name, "from", fromCommit)
	return nil
}

// PutFile creates or updates one file on a branch and returns the commit SHA.
func (c *Client) PutFile(ctx context.Context, repo vcs.Repo, commit vcs.FileCommit) (string, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(commit.Message),
		Content: []byte(commit.Content),
		Branch:  github.String(commit.Branch),
	}

	var resp *github.RepositoryContentResponse
	if commit.PriorSHA != "" {
		opts.SHA = github.String(commit.PriorSHA)
		resp, _, err = c.client.Repositories.UpdateFile(ctx, repo.Owner, repo.Name, commit.Path, opts)
	} else {
		resp, _, err = c.client.Repositories.CreateFile(ctx, repo.Owner, repo.Name, commit.Path, opts)
	}
	if err != nil {
		return "", wrap(err, "commit %s to %s", commit.Path, commit.Branch)
	}
	return resp.Commit.GetSHA(), nil
}

// OpenPullRequest opens a pull request from pr.Head into pr.Base.
func (c *Client) OpenPullRequest(ctx context.Context, repo vcs.Repo, pr vcs.PullRequestSpec) (vcs.PullRequest, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return vcs.PullRequest{}, err
	}
	defer cancel()

	created, _, err := c.client.PullRequests.Create(ctx, repo.Owner, repo.Name, &github.NewPullRequest{
		Title: github.String(pr.Title),
		Head:  github.String(pr.Head),
		Base:  github.String(pr.Base),
		Body:  github.String(pr.Body),
	})
	if err != nil {
		return vcs.PullRequest{}, wrap(err, "open pull request %s -> %s", pr.Head, pr.Base)
	}
	c.logger.Info("pull request opened", "repo", repo.String(), "number", created.GetNumber())
	return vcs.PullRequest{Number: created.GetNumber(), URL: created.GetHTMLURL()}, nil
}

// SplitFullName splits "owner/name".
func SplitFullName(fullName string) (vcs.Repo, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return vcs.Repo{}, errors.ValidationErrorf("invalid repository name %q, want owner/name", fullName)
	}
	return vcs.Repo{Owner: owner, Name: name}, nil
}

var _ vcs.Provider = (*Client)(nil)
