// Package synth drafts documentation for coverage gaps.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tomehq/tome/internal/corpus"
	"github.com/tomehq/tome/internal/coverage"
	"github.com/tomehq/tome/internal/llm"
	"github.com/tomehq/tome/internal/models"
)

// Options bounds the context placed in synthesis prompts.
type Options struct {
	DocsDir           string
	MaxDocContext     int
	UpdateDiffExcerpt int
	CreateDiffExcerpt int
	StyleSampleBytes  int
}

// DefaultOptions returns the stock prompt limits.
func DefaultOptions() Options {
	return Options{
		DocsDir:           "docs",
		MaxDocContext:     4000,
		UpdateDiffExcerpt: 2000,
		CreateDiffExcerpt: 3000,
		StyleSampleBytes:  800,
	}
}

// LossyUpdateError rejects an update-mode draft that dropped terms present
// in the document it was asked to extend.
type LossyUpdateError struct {
	Path    string
	Missing []string
}

func (e *LossyUpdateError) Error() string {
	shown := e.Missing
	if len(shown) > 5 {
		shown = shown[:5]
	}
	return fmt.Sprintf("update of %s dropped %d existing terms (%s)", e.Path, len(e.Missing), strings.Join(shown, ", "))
}

// Synthesizer produces documentation for one gap at a time.
type Synthesizer struct {
	gen    llm.TextGenerator
	opts   Options
	logger *slog.Logger
}

// New creates a Synthesizer.
func New(gen llm.TextGenerator, opts Options) *Synthesizer {
	def := DefaultOptions()
	if opts.DocsDir == "" {
		opts.DocsDir = def.DocsDir
	}
	if opts.MaxDocContext <= 0 {
		opts.MaxDocContext = def.MaxDocContext
	}
	if opts.UpdateDiffExcerpt <= 0 {
		opts.UpdateDiffExcerpt = def.UpdateDiffExcerpt
	}
	if opts.CreateDiffExcerpt <= 0 {
		opts.CreateDiffExcerpt = def.CreateDiffExcerpt
	}
	if opts.StyleSampleBytes <= 0 {
		opts.StyleSampleBytes = def.StyleSampleBytes
	}
	return &Synthesizer{
		gen:    gen,
		opts:   opts,
		logger: slog.Default().With("component", "synth"),
	}
}

// Draft is the generator's output for one gap against one target.
type Draft struct {
	Target  Target
	Content string
}

// Update drafts the complete replacement for an existing document. A
// document longer than MaxDocContext is shown in part; the unseen tail is
// appended to the draft unchanged.
func (s *Synthesizer) Update(ctx context.Context, target string, existing string, gap models.Gap, diff string) (Draft, error) {
	excerpt, tail := splitContext(existing, s.opts.MaxDocContext)
	prompt := updatePrompt(target, excerpt, gap, clip(diff, s.opts.UpdateDiffExcerpt))

	text, err := s.gen.Generate(ctx, prompt, false)
	if err != nil {
		return Draft{}, err
	}
	content := strings.TrimSpace(text)
	draft := Draft{Target: Target{Path: target, Mode: ModeUpdate}}
	if content == "" {
		return draft, nil
	}

	if missing := MissingTerms(excerpt, content); len(missing) > 0 {
		return Draft{}, &LossyUpdateError{Path: target, Missing: missing}
	}
	if tail != "" {
		content = content + "\n\n" + strings.TrimSpace(tail)
	}
	draft.Content = content
	return draft, nil
}

// Create drafts a new document, using the first corpus document (if any)
// as a style sample.
func (s *Synthesizer) Create(ctx context.Context, target string, docs *corpus.Corpus, gap models.Gap, diff string) (Draft, error) {
	var sample string
	if first, ok := docs.First(); ok {
		sample = clip(first.Content, s.opts.StyleSampleBytes)
	}
	prompt := createPrompt(sample, gap, clip(diff, s.opts.CreateDiffExcerpt))

	text, err := s.gen.Generate(ctx, prompt, false)
	if err != nil {
		return Draft{}, err
	}
	return Draft{
		Target:  Target{Path: target, Mode: ModeCreate},
		Content: strings.TrimSpace(text),
	}, nil
}

// Synthesize resolves the gap's target in docs and drafts its content. An
// empty Content means the generator produced nothing usable.
func (s *Synthesizer) Synthesize(ctx context.Context, gap models.Gap, docs *corpus.Corpus, diff string) (Draft, error) {
	target := FindTarget(gap.Change.SourceFile, docs.Paths(), s.opts.DocsDir)
	if target.Mode == ModeUpdate {
		existing, _ := docs.Get(target.Path)
		return s.Update(ctx, target.Path, existing, gap, diff)
	}
	return s.Create(ctx, target.Path, docs, gap, diff)
}

// MissingTerms lists the terms of original that do not occur in updated.
func MissingTerms(original, updated string) []string {
	haystack := strings.ToLower(updated)
	seen := map[string]bool{}
	var missing []string
	for _, term := range coverage.ExtractTerms(original) {
		if seen[term] {
			continue
		}
		seen[term] = true
		if !strings.Contains(haystack, term) {
			missing = append(missing, term)
		}
	}
	return missing
}
