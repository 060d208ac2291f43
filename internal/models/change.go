package models

import (
	"fmt"
	"strings"
)

// ChangeKind classifies a documentation-relevant change.
type ChangeKind string

const (
	KindNewFunction    ChangeKind = "new_function"
	KindChangedAPI     ChangeKind = "changed_api"
	KindNewEndpoint    ChangeKind = "new_endpoint"
	KindNewFeature     ChangeKind = "new_feature"
	KindBreakingChange ChangeKind = "breaking_change"
	KindConfigChange   ChangeKind = "config_change"
	KindNewModule      ChangeKind = "new_module"
	KindOther          ChangeKind = "other"

	// KindMissingDoc is only produced by the repository scan.
	KindMissingDoc ChangeKind = "missing_doc"
)

var extractableKinds = map[ChangeKind]bool{
	KindNewFunction:    true,
	KindChangedAPI:     true,
	KindNewEndpoint:    true,
	KindNewFeature:     true,
	KindBreakingChange: true,
	KindConfigChange:   true,
	KindNewModule:      true,
	KindOther:          true,
}

// ParseChangeKind maps free text from a generator onto the closed kind set.
// Anything unrecognized becomes KindOther.
func ParseChangeKind(raw string) ChangeKind {
	k := ChangeKind(strings.ToLower(strings.TrimSpace(raw)))
	if extractableKinds[k] {
		return k
	}
	return KindOther
}

// UnknownSourceFile stands in for a change whose source file was not reported.
const UnknownSourceFile = "unknown"

// ChangeRecord is one documentation-relevant change extracted from a diff.
// Records are values; later stages wrap them instead of editing them.
type ChangeRecord struct {
	SourceFile string     `json:"source_file"`
	Kind       ChangeKind `json:"change_kind"`
	Summary    string     `json:"summary"`
	Details    string     `json:"details"`
}

// NewChangeRecord validates and normalizes raw extractor fields.
// A record with neither summary nor details carries nothing to document.
func NewChangeRecord(sourceFile, kind, summary, details string) (ChangeRecord, error) {
	summary = strings.TrimSpace(summary)
	details = strings.TrimSpace(details)
	if summary == "" && details == "" {
		return ChangeRecord{}, fmt.Errorf("change record for %q has no summary or details", sourceFile)
	}
	sourceFile = strings.TrimSpace(sourceFile)
	if sourceFile == "" {
		sourceFile = UnknownSourceFile
	}
	return ChangeRecord{
		SourceFile: sourceFile,
		Kind:       ParseChangeKind(kind),
		Summary:    summary,
		Details:    details,
	}, nil
}

// SearchText is the text coverage scoring runs over.
func (c ChangeRecord) SearchText() string {
	return c.Summary + " " + c.Details
}

// Gap is a change judged not adequately covered by the current docs.
type Gap struct {
	Change   ChangeRecord `json:"change"`
	Coverage float64      `json:"doc_coverage"`
	// LedgerID is zero until the gap has been persisted.
	LedgerID int64 `json:"ledger_id,omitempty"`
}

// DocUpdate is synthesized documentation for one target path. Several gaps
// can share a target; their content is merged into a single update.
type DocUpdate struct {
	TargetPath string `json:"target_path"`
	Content    string `json:"content"`
	IsNew      bool   `json:"is_new"`
	Gaps       []Gap  `json:"gaps"`
}

// PublicationResult identifies the pull request a run produced.
type PublicationResult struct {
	PRNumber   int    `json:"pr_number"`
	PRURL      string `json:"pr_url"`
	BranchName string `json:"branch_name"`
	Title      string `json:"title"`
}

// ScanSummary is the outcome of a full repository scan.
type ScanSummary struct {
	CoveragePct       float64  `json:"coverage_pct"`
	TotalSourceFiles  int      `json:"total_source_files"`
	TotalDocFiles     int      `json:"total_doc_files"`
	UndocumentedFiles []string `json:"undocumented_files"`
	GapsCreated       int      `json:"gaps_created"`
}

// EventType is the machine-checkable kind of an activity entry.
type EventType string

const (
	EventPushReceived     EventType = "push_received"
	EventDiffFailed       EventType = "diff_failed"
	EventNoChanges        EventType = "no_changes"
	EventDiffTruncated    EventType = "diff_truncated"
	EventNoDocChanges     EventType = "no_doc_changes"
	EventChangesDetected  EventType = "changes_detected"
	EventCorpusFailed     EventType = "corpus_failed"
	EventNoGaps           EventType = "no_gaps"
	EventGapsFound        EventType = "gaps_found"
	EventSynthesisFailed  EventType = "synthesis_failed"
	EventGenerationFailed EventType = "generation_failed"
	EventPROpened         EventType = "pr_opened"
	EventPRFailed         EventType = "pr_failed"
	EventScanStarted      EventType = "scan_started"
	EventScanFailed       EventType = "scan_failed"
	EventScanComplete     EventType = "scan_complete"
	EventRunSkipped       EventType = "run_skipped"
)
