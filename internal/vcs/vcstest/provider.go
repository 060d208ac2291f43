// Package vcstest provides an in-memory vcs.Provider for tests.
package vcstest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tomehq/tome/internal/vcs"
)

type file struct {
	content string
	sha     string
}

// Commit records one PutFile call.
type Commit struct {
	Branch  string
	Path    string
	Content string
	Message string
	Created bool
	SHA     string
}

// Provider keeps branches as snapshots of path -> file. Every mutating call
// produces a new commit snapshot, so branches created from an older tip do
// not observe later writes.
type Provider struct {
	mu        sync.Mutex
	seq       int
	snapshots map[string]map[string]file // commit -> files
	branches  map[string]string          // branch -> commit
	diffs     map[string]string
	failures  map[string]error

	Commits      []Commit
	PullRequests []vcs.PullRequestSpec
	Calls        []string
}

// New returns a provider with an empty default branch.
func New(defaultBranch string) *Provider {
	p := &Provider{
		snapshots: map[string]map[string]file{},
		branches:  map[string]string{},
		diffs:     map[string]string{},
		failures:  map[string]error{},
	}
	root := p.newID()
	p.snapshots[root] = map[string]file{}
	p.branches[defaultBranch] = root
	return p
}

func (p *Provider) newID() string {
	p.seq++
	return fmt.Sprintf("%040x", p.seq)
}

// AddFile writes a file directly onto a branch, creating a new commit.
func (p *Provider) AddFile(branch, path, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tip, ok := p.branches[branch]
	if !ok {
		panic(fmt.Sprintf("vcstest: unknown branch %q", branch))
	}
	next := p.copySnapshot(tip)
	next[path] = file{content: content, sha: p.newID()}
	commit := p.newID()
	p.snapshots[commit] = next
	p.branches[branch] = commit
}

// SetDiff registers the diff text returned for a base..head pair.
func (p *Provider) SetDiff(base, head, diff string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.diffs[base+".."+head] = diff
}

// FailOn makes the named operation (e.g. "PutFile") return err.
func (p *Provider) FailOn(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = err
}

// BranchFile returns the content of a file on a branch.
func (p *Provider) BranchFile(branch, path string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tip, ok := p.branches[branch]
	if !ok {
		return "", false
	}
	f, ok := p.snapshots[tip][path]
	return f.content, ok
}

// Branches returns all branch names, sorted.
func (p *Provider) Branches() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.branches))
	for name := range p.branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallCount returns how often an operation was invoked.
func (p *Provider) CallCount(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Calls {
		if c == op {
			n++
		}
	}
	return n
}

func (p *Provider) enter(op string) error {
	p.Calls = append(p.Calls, op)
	return p.failures[op]
}

func (p *Provider) copySnapshot(commit string) map[string]file {
	next := make(map[string]file, len(p.snapshots[commit]))
	for k, v := range p.snapshots[commit] {
		next[k] = v
	}
	return next
}

func (p *Provider) resolve(ref string) (map[string]file, error) {
	if commit, ok := p.branches[ref]; ok {
		return p.snapshots[commit], nil
	}
	if files, ok := p.snapshots[ref]; ok {
		return files, nil
	}
	return nil, fmt.Errorf("ref %q: %w", ref, vcs.ErrNotFound)
}

func (p *Provider) GetDiff(ctx context.Context, repo vcs.Repo, base, head string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("GetDiff"); err != nil {
		return "", err
	}
	diff, ok := p.diffs[base+".."+head]
	if !ok {
		return "", fmt.Errorf("compare %s...%s: %w", base, head, vcs.ErrNotFound)
	}
	return diff, nil
}

func (p *Provider) ListTree(ctx context.Context, repo vcs.Repo, ref string) ([]vcs.TreeEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ListTree"); err != nil {
		return nil, err
	}
	files, err := p.resolve(ref)
	if err != nil {
		return nil, err
	}

	dirs := map[string]bool{}
	var entries []vcs.TreeEntry
	for path := range files {
		entries = append(entries, vcs.TreeEntry{Path: path, Kind: vcs.EntryBlob})
		parts := strings.Split(path, "/")
		for i := 1; i < len(parts); i++ {
			dirs[strings.Join(parts[:i], "/")] = true
		}
	}
	for dir := range dirs {
		entries = append(entries, vcs.TreeEntry{Path: dir, Kind: vcs.EntryTree})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (p *Provider) ReadFile(ctx context.Context, repo vcs.Repo, path, ref string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ReadFile"); err != nil {
		return "", err
	}
	files, err := p.resolve(ref)
	if err != nil {
		return "", err
	}
	f, ok := files[path]
	if !ok {
		return "", fmt.Errorf("%s@%s: %w", path, ref, vcs.ErrNotFound)
	}
	return f.content, nil
}

func (p *Provider) FileSHA(ctx context.Context, repo vcs.Repo, path, ref string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("FileSHA"); err != nil {
		return "", err
	}
	files, err := p.resolve(ref)
	if err != nil {
		return "", err
	}
	f, ok := files[path]
	if !ok {
		return "", fmt.Errorf("%s@%s: %w", path, ref, vcs.ErrNotFound)
	}
	return f.sha, nil
}

func (p *Provider) GetBranchTip(ctx context.Context, repo vcs.Repo, branch string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("GetBranchTip"); err != nil {
		return "", err
	}
	tip, ok := p.branches[branch]
	if !ok {
		return "", fmt.Errorf("branch %q: %w", branch, vcs.ErrNotFound)
	}
	return tip, nil
}

func (p *Provider) CreateBranch(ctx context.Context, repo vcs.Repo, name, fromCommit string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateBranch"); err != nil {
		return err
	}
	if _, exists := p.branches[name]; exists {
		return fmt.Errorf("reference refs/heads/%s already exists", name)
	}
	if _, ok := p.snapshots[fromCommit]; !ok {
		return fmt.Errorf("commit %s: %w", fromCommit, vcs.ErrNotFound)
	}
	p.branches[name] = fromCommit
	return nil
}

func (p *Provider) PutFile(ctx context.Context, repo vcs.Repo, c vcs.FileCommit) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("PutFile"); err != nil {
		return "", err
	}
	tip, ok := p.branches[c.Branch]
	if !ok {
		return "", fmt.Errorf("branch %q: %w", c.Branch, vcs.ErrNotFound)
	}
	existing, exists := p.snapshots[tip][c.Path]
	switch {
	case exists && c.PriorSHA != existing.sha:
		return "", fmt.Errorf("%s: sha mismatch (have %q, got %q)", c.Path, existing.sha, c.PriorSHA)
	case !exists && c.PriorSHA != "":
		return "", fmt.Errorf("%s: prior sha given for a new file", c.Path)
	}

	next := p.copySnapshot(tip)
	next[c.Path] = file{content: c.Content, sha: p.newID()}
	commit := p.newID()
	p.snapshots[commit] = next
	p.branches[c.Branch] = commit
	p.Commits = append(p.Commits, Commit{
		Branch:  c.Branch,
		Path:    c.Path,
		Content: c.Content,
		Message: c.Message,
		Created: !exists,
		SHA:     commit,
	})
	return commit, nil
}

func (p *Provider) OpenPullRequest(ctx context.Context, repo vcs.Repo, pr vcs.PullRequestSpec) (vcs.PullRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("OpenPullRequest"); err != nil {
		return vcs.PullRequest{}, err
	}
	if _, ok := p.branches[pr.Head]; !ok {
		return vcs.PullRequest{}, fmt.Errorf("head branch %q: %w", pr.Head, vcs.ErrNotFound)
	}
	p.PullRequests = append(p.PullRequests, pr)
	number := len(p.PullRequests)
	return vcs.PullRequest{
		Number: number,
		URL:    fmt.Sprintf("https://github.com/%s/pull/%d", repo, number),
	}, nil
}
