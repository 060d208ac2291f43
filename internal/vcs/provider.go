// Package vcs defines the version-control operations the pipeline needs.
// The GitHub implementation lives in internal/github; vcstest holds an
// in-memory fake.
package vcs

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a file, ref or commit does not exist.
var ErrNotFound = errors.New("not found")

// Repo identifies a hosted repository.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// EntryKind distinguishes files from directories in a tree listing.
type EntryKind string

const (
	EntryBlob EntryKind = "blob"
	EntryTree EntryKind = "tree"
)

// TreeEntry is one path in a recursive tree listing.
type TreeEntry struct {
	Path string
	Kind EntryKind
}

// FileCommit describes a create-or-update of a single file on a branch.
// PriorSHA is the blob SHA of the existing file, empty when creating.
type FileCommit struct {
	Path     string
	Content  string
	Message  string
	Branch   string
	PriorSHA string
}

// PullRequestSpec is what is needed to open a pull request.
type PullRequestSpec struct {
	Title string
	Body  string
	Head  string
	Base  string
}

// PullRequest identifies an opened pull request.
type PullRequest struct {
	Number int
	URL    string
}

// Provider is the version-control collaborator consumed by the pipeline.
// ReadFile and FileSHA return ErrNotFound (possibly wrapped) for absent paths.
type Provider interface {
	GetDiff(ctx context.Context, repo Repo, base, head string) (string, error)
	ListTree(ctx context.Context, repo Repo, ref string) ([]TreeEntry, error)
	ReadFile(ctx context.Context, repo Repo, path, ref string) (string, error)
	FileSHA(ctx context.Context, repo Repo, path, ref string) (string, error)
	GetBranchTip(ctx context.Context, repo Repo, branch string) (string, error)
	CreateBranch(ctx context.Context, repo Repo, name, fromCommit string) error
	PutFile(ctx context.Context, repo Repo, commit FileCommit) (string, error)
	OpenPullRequest(ctx context.Context, repo Repo, pr PullRequestSpec) (PullRequest, error)
}

// IsNotFound reports whether err marks an absent remote object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
