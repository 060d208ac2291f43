package synth

import (
	"context"

	"github.com/tomehq/tome/internal/corpus"
	"github.com/tomehq/tome/internal/models"
)

// Session synthesizes the gaps of one run. Drafts are kept in an overlay
// keyed by target path: a later gap that resolves to a path already drafted
// is written in update mode against the accumulated draft, so each path
// yields exactly one DocUpdate carrying every gap behind it.
type Session struct {
	synth   *Synthesizer
	docs    *corpus.Corpus
	diff    string
	drafts  map[string]*models.DocUpdate
	order   []string
	created []string
}

// NewSession starts a per-run session over a corpus snapshot and the diff
// the gaps came from.
func (s *Synthesizer) NewSession(docs *corpus.Corpus, diff string) *Session {
	return &Session{
		synth:  s,
		docs:   docs,
		diff:   diff,
		drafts: map[string]*models.DocUpdate{},
	}
}

// Add synthesizes one gap. It reports whether the gap contributed content;
// an empty draft leaves the session unchanged.
func (ss *Session) Add(ctx context.Context, gap models.Gap) (bool, error) {
	paths := append(ss.docs.Paths(), ss.created...)
	target := FindTarget(gap.Change.SourceFile, paths, ss.synth.opts.DocsDir)

	var (
		draft Draft
		err   error
	)
	prev, merging := ss.drafts[target.Path]
	switch {
	case merging:
		draft, err = ss.synth.Update(ctx, target.Path, prev.Content, gap, ss.diff)
	case target.Mode == ModeUpdate:
		existing, _ := ss.docs.Get(target.Path)
		draft, err = ss.synth.Update(ctx, target.Path, existing, gap, ss.diff)
	default:
		draft, err = ss.synth.Create(ctx, target.Path, ss.docs, gap, ss.diff)
	}
	if err != nil {
		return false, err
	}
	if draft.Content == "" {
		ss.synth.logger.Info("generator produced no content", "source_file", gap.Change.SourceFile, "target", target.Path)
		return false, nil
	}

	if merging {
		prev.Content = draft.Content
		prev.Gaps = append(prev.Gaps, gap)
		ss.synth.logger.Debug("merged gap into pending update", "target", target.Path, "gaps", len(prev.Gaps))
		return true, nil
	}

	ss.drafts[target.Path] = &models.DocUpdate{
		TargetPath: target.Path,
		Content:    draft.Content,
		IsNew:      target.Mode == ModeCreate,
		Gaps:       []models.Gap{gap},
	}
	ss.order = append(ss.order, target.Path)
	if target.Mode == ModeCreate {
		ss.created = append(ss.created, target.Path)
	}
	return true, nil
}

// Updates returns one DocUpdate per target path, in first-drafted order.
func (ss *Session) Updates() []models.DocUpdate {
	out := make([]models.DocUpdate, 0, len(ss.order))
	for _, p := range ss.order {
		d := *ss.drafts[p]
		d.Gaps = append([]models.Gap(nil), d.Gaps...)
		out = append(out, d)
	}
	return out
}
