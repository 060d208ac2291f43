package pipeline

import (
	"context"
	"fmt"

	"github.com/tomehq/tome/internal/coverage"
	"github.com/tomehq/tome/internal/models"
)

// RunScan checks every source file on the default branch for discoverable
// documentation and records a missing_doc gap per uncovered file. It drafts
// and publishes nothing.
func (p *Pipeline) RunScan(ctx context.Context, projectID string) (*models.ScanSummary, error) {
	r, err := p.prepare(ctx, projectID, nil)
	if err != nil {
		return nil, err
	}
	pid := r.project.ID
	ref := r.project.DefaultBranch

	p.record(ctx, pid, models.EventScanStarted, "Full repository scan initiated", nil)

	entries, err := r.loader.Tree(ctx, r.repo, ref)
	if err != nil {
		p.record(ctx, pid, models.EventScanFailed, fmt.Sprintf("Scan failed: %v", err), nil)
		return nil, err
	}
	docPaths := r.loader.DocPaths(entries, r.project.DocPrefixes())
	docs, err := r.loader.Read(ctx, r.repo, ref, docPaths)
	if err != nil {
		p.record(ctx, pid, models.EventScanFailed, fmt.Sprintf("Scan failed: %v", err), nil)
		return nil, fmt.Errorf("load docs: %w", err)
	}
	sources := r.loader.SourcePaths(entries, r.project.SourcePrefixes())

	tree := coverage.ScanTree(sources, docs)
	uncovered := tree.Uncovered
	if uncovered == nil {
		uncovered = []string{}
	}
	summary := &models.ScanSummary{
		CoveragePct:       tree.CoveragePct,
		TotalSourceFiles:  tree.TotalSourceFiles,
		TotalDocFiles:     docs.Len(),
		UndocumentedFiles: uncovered,
	}

	p.record(ctx, pid, models.EventScanComplete,
		fmt.Sprintf("Scan complete: %.1f%% coverage (%d source files, %d undocumented)",
			summary.CoveragePct, summary.TotalSourceFiles, len(uncovered)),
		map[string]any{
			"uncovered":    uncovered,
			"total_source": summary.TotalSourceFiles,
			"total_docs":   summary.TotalDocFiles,
			"coverage_pct": summary.CoveragePct,
		})

	for _, path := range uncovered {
		id := p.createGap(ctx, pid, path, string(models.KindMissingDoc),
			fmt.Sprintf("Source file %s has no corresponding documentation", path))
		if id != 0 {
			summary.GapsCreated++
		}
	}
	r.logger.Info("scan complete", "coverage_pct", summary.CoveragePct, "sources", summary.TotalSourceFiles, "gaps", summary.GapsCreated)
	return summary, nil
}
