package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tomehq/tome/internal/vcs"
)

// Loader reads documentation and source listings through a vcs.Provider.
type Loader struct {
	provider         vcs.Provider
	docExtensions    []string
	sourceExtensions []string
	workers          int
	logger           *slog.Logger
}

// NewLoader creates a loader. workers bounds concurrent file reads.
func NewLoader(provider vcs.Provider, docExtensions, sourceExtensions []string, workers int) *Loader {
	if workers <= 0 {
		workers = 8
	}
	return &Loader{
		provider:         provider,
		docExtensions:    docExtensions,
		sourceExtensions: sourceExtensions,
		workers:          workers,
		logger:           slog.Default().With("component", "corpus"),
	}
}

// Tree lists the repository at ref.
func (l *Loader) Tree(ctx context.Context, repo vcs.Repo, ref string) ([]vcs.TreeEntry, error) {
	entries, err := l.provider.ListTree(ctx, repo, ref)
	if err != nil {
		return nil, fmt.Errorf("list tree: %w", err)
	}
	return entries, nil
}

// DocPaths selects documentation files under the given prefixes.
func (l *Loader) DocPaths(entries []vcs.TreeEntry, prefixes []string) []string {
	return filterBlobs(entries, prefixes, l.docExtensions)
}

// SourcePaths selects source files under the given prefixes.
func (l *Loader) SourcePaths(entries []vcs.TreeEntry, prefixes []string) []string {
	return filterBlobs(entries, prefixes, l.sourceExtensions)
}

// LoadDocs lists the tree at ref and reads every documentation file under
// prefixes.
func (l *Loader) LoadDocs(ctx context.Context, repo vcs.Repo, ref string, prefixes []string) (*Corpus, error) {
	entries, err := l.Tree(ctx, repo, ref)
	if err != nil {
		return nil, err
	}
	return l.Read(ctx, repo, ref, l.DocPaths(entries, prefixes))
}

// Read fetches paths with bounded concurrency. The corpus keeps the order of
// paths; empty and vanished files are left out.
func (l *Loader) Read(ctx context.Context, repo vcs.Repo, ref string, paths []string) (*Corpus, error) {
	slots := make([]string, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, p := range paths {
		g.Go(func() error {
			content, err := l.provider.ReadFile(gctx, repo, p, ref)
			if vcs.IsNotFound(err) {
				l.logger.Debug("doc vanished between listing and read", "path", p)
				return nil
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", p, err)
			}
			slots[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs := make([]Doc, 0, len(paths))
	for i, p := range paths {
		if strings.TrimSpace(slots[i]) == "" {
			continue
		}
		docs = append(docs, Doc{Path: p, Content: slots[i]})
	}
	l.logger.Debug("corpus loaded", "repo", repo.String(), "ref", ref, "listed", len(paths), "docs", len(docs))
	return New(docs...), nil
}

func filterBlobs(entries []vcs.TreeEntry, prefixes, extensions []string) []string {
	var out []string
	for _, e := range entries {
		if e.Kind != vcs.EntryBlob {
			continue
		}
		if !underAnyPrefix(e.Path, prefixes) || !hasExtension(e.Path, extensions) {
			continue
		}
		out = append(out, e.Path)
	}
	return out
}

// underAnyPrefix matches raw path prefixes. No prefixes, or a root prefix,
// selects the whole tree.
func underAnyPrefix(p string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, prefix := range prefixes {
		prefix = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(prefix), "./"), "/")
		if prefix == "" || prefix == "." || strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func hasExtension(p string, extensions []string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, want := range extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}
