package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/tomehq/tome/internal/coverage"
	"github.com/tomehq/tome/internal/errors"
	"github.com/tomehq/tome/internal/extractor"
	"github.com/tomehq/tome/internal/models"
	"github.com/tomehq/tome/internal/publish"
	"github.com/tomehq/tome/internal/synth"
)

// PushResult describes how a push run ended. Outcome is the event type of
// the run's final activity entry.
type PushResult struct {
	Outcome     models.EventType
	Truncated   bool
	Changes     []models.ChangeRecord
	Gaps        []models.Gap
	Updates     []models.DocUpdate
	Publication *models.PublicationResult
}

// RunPush analyzes the diff between before and after and, when it finds
// undocumented changes, publishes one pull request with the drafted docs.
//
// A non-nil error means the run failed: a precondition was not met (nothing
// remote was called), or the diff, generation, corpus or publication step
// failed. Early exits without work to do return a result and no error.
func (p *Pipeline) RunPush(ctx context.Context, projectID, before, after string) (*PushResult, error) {
	r, err := p.prepare(ctx, projectID, map[string]string{"before": before, "after": after})
	if err != nil {
		return nil, err
	}
	pid := r.project.ID
	result := &PushResult{}

	p.record(ctx, pid, models.EventPushReceived, fmt.Sprintf("Push received: %s..%s", short(before), short(after)), nil)

	diff, err := r.provider.GetDiff(ctx, r.repo, before, after)
	if err != nil {
		p.record(ctx, pid, models.EventDiffFailed, fmt.Sprintf("Failed to get diff: %v", err), nil)
		return nil, fmt.Errorf("get diff: %w", err)
	}
	if strings.TrimSpace(diff) == "" {
		result.Outcome = models.EventNoChanges
		p.record(ctx, pid, models.EventNoChanges, "Push had no meaningful diff", nil)
		return result, nil
	}

	extracted, err := extractor.New(p.gen, p.cfg.Pipeline.MaxDiffBytes).Extract(ctx, diff)
	if err != nil {
		p.record(ctx, pid, models.EventGenerationFailed, fmt.Sprintf("Change extraction failed: %v", err), nil)
		return nil, errors.GenerationError(err, "extract changes")
	}
	if extracted.Truncated {
		result.Truncated = true
		p.record(ctx, pid, models.EventDiffTruncated,
			fmt.Sprintf("Diff truncated: analyzed %d of %d bytes", extracted.OffsetBytes, extracted.TotalBytes),
			map[string]any{"offset_bytes": extracted.OffsetBytes, "total_bytes": extracted.TotalBytes})
	}
	result.Changes = extracted.Changes
	if len(extracted.Changes) == 0 {
		result.Outcome = models.EventNoDocChanges
		p.record(ctx, pid, models.EventNoDocChanges, "No documentation-relevant changes detected",
			map[string]any{"degraded": extracted.Degraded})
		return result, nil
	}
	p.record(ctx, pid, models.EventChangesDetected,
		fmt.Sprintf("Found %d doc-relevant changes", len(extracted.Changes)),
		map[string]any{"changes": extracted.Changes})

	docs, err := r.loader.LoadDocs(ctx, r.repo, r.project.DefaultBranch, r.project.DocPrefixes())
	if err != nil {
		p.record(ctx, pid, models.EventCorpusFailed, fmt.Sprintf("Failed to load documentation: %v", err), nil)
		return nil, fmt.Errorf("load docs: %w", err)
	}

	analysis := coverage.NewAnalyzer(p.cfg.Pipeline.GapThreshold).FindGaps(extracted.Changes, docs)
	if len(analysis.Gaps) == 0 {
		result.Outcome = models.EventNoGaps
		p.record(ctx, pid, models.EventNoGaps,
			fmt.Sprintf("All %d changes are already documented", len(extracted.Changes)),
			map[string]any{"covered": len(analysis.Covered), "skipped": len(analysis.Skipped)})
		return result, nil
	}
	p.record(ctx, pid, models.EventGapsFound,
		fmt.Sprintf("Found %d documentation gaps", len(analysis.Gaps)),
		map[string]any{"gaps": analysis.Gaps})

	session := synth.New(p.gen, p.synthOptions(r.project)).NewSession(docs, diff)
	for _, gap := range analysis.Gaps {
		// Persisted before synthesis so the gap survives any later failure.
		gap.LedgerID = p.createGap(ctx, pid, gap.Change.SourceFile, string(gap.Change.Kind), gap.Change.Summary)
		result.Gaps = append(result.Gaps, gap)

		if _, err := session.Add(ctx, gap); err != nil {
			r.logger.Warn("synthesis failed for gap", "source_file", gap.Change.SourceFile, "error", err)
			p.record(ctx, pid, models.EventSynthesisFailed,
				fmt.Sprintf("Doc synthesis failed for %s: %v", gap.Change.SourceFile, err),
				map[string]any{"source_file": gap.Change.SourceFile, "gap_id": gap.LedgerID})
		}
	}

	result.Updates = session.Updates()
	if len(result.Updates) == 0 {
		result.Outcome = models.EventGenerationFailed
		p.record(ctx, pid, models.EventGenerationFailed, "Doc generation produced no content", nil)
		return result, nil
	}

	publisher := publish.New(r.provider, publish.Options{
		BranchPrefix: p.cfg.GitHub.BranchPrefix,
		Attribution:  p.cfg.GitHub.Attribution,
		Now:          p.now,
	})
	pub, err := publisher.Publish(ctx, r.repo, r.project.DefaultBranch, result.Updates)
	if err != nil {
		r.logger.Error("publication failed", "error", err)
		details := map[string]any{"files": len(result.Updates)}
		var perr *publish.Error
		if stderrors.As(err, &perr) {
			details["step"] = perr.Step
			if perr.Branch != "" {
				details["orphaned_branch"] = perr.Branch
			}
		}
		p.record(ctx, pid, models.EventPRFailed, fmt.Sprintf("Failed to create PR: %v", err), details)
		return nil, errors.PublicationErrorf(err, "publish to %s", r.project.FullName())
	}
	result.Publication = &pub
	result.Outcome = models.EventPROpened

	files := make([]string, 0, len(result.Updates))
	for _, u := range result.Updates {
		files = append(files, u.TargetPath)
		for _, gap := range u.Gaps {
			if gap.LedgerID == 0 {
				continue
			}
			err := p.ledger.UpdateGap(ctx, gap.LedgerID, models.GapUpdate{
				Status:     models.GapPROpened,
				PRNumber:   pub.PRNumber,
				PRURL:      pub.PRURL,
				TargetFile: u.TargetPath,
			})
			if err != nil {
				r.logger.Error("failed to mark gap pr_opened", "gap_id", gap.LedgerID, "error", err)
			}
		}
	}
	p.record(ctx, pid, models.EventPROpened, fmt.Sprintf("PR #%d: %s", pub.PRNumber, pub.Title),
		map[string]any{"pr_url": pub.PRURL, "branch": pub.BranchName, "files": files})
	r.logger.Info("push run complete", "pr", pub.PRURL, "gaps", len(result.Gaps), "files", len(files))
	return result, nil
}

func (p *Pipeline) synthOptions(project *models.Project) synth.Options {
	return synth.Options{
		DocsDir:           project.DocsDir(),
		MaxDocContext:     p.cfg.Pipeline.MaxDocContext,
		UpdateDiffExcerpt: p.cfg.Pipeline.UpdateDiffExcerpt,
		CreateDiffExcerpt: p.cfg.Pipeline.CreateDiffExcerpt,
		StyleSampleBytes:  p.cfg.Pipeline.StyleSampleBytes,
	}
}
