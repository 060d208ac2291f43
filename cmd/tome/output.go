package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/tomehq/tome/internal/dispatch"
	"github.com/tomehq/tome/internal/models"
)

var (
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

func printPushOutcome(out dispatch.Outcome) {
	fmt.Printf("\n%s Push run %s\n", cyan("📘"), gray(out.RunID))
	switch {
	case out.Err != nil:
		fmt.Printf("  Status: %s %v\n", red("failed"), out.Err)
		return
	case out.Skipped:
		fmt.Printf("  Status: %s (this revision pair was already processed)\n", yellow("skipped"))
		return
	}

	res := out.Push
	fmt.Printf("  Outcome: %s\n", outcomeColor(res.Outcome))
	if res.Truncated {
		fmt.Printf("  %s diff was truncated before extraction\n", yellow("!"))
	}
	fmt.Printf("  Changes: %d  Gaps: %d  Files: %d\n", len(res.Changes), len(res.Gaps), len(res.Updates))
	for _, g := range res.Gaps {
		fmt.Printf("    - %s %s: %s\n", g.Change.Kind, g.Change.SourceFile, g.Change.Summary)
	}
	if res.Publication != nil {
		fmt.Printf("  Pull request: %s\n", green(res.Publication.PRURL))
		fmt.Printf("  Branch: %s\n", res.Publication.BranchName)
	}
	fmt.Printf("  Took %s\n", out.Duration.Round(time.Millisecond))
}

func printScanOutcome(out dispatch.Outcome) {
	fmt.Printf("\n%s Scan run %s\n", cyan("📘"), gray(out.RunID))
	if out.Err != nil {
		fmt.Printf("  Status: %s %v\n", red("failed"), out.Err)
		return
	}
	s := out.Scan
	fmt.Printf("  Coverage: %s\n", coverageColor(s.CoveragePct))
	fmt.Printf("  Source files: %d  Doc files: %d\n", s.TotalSourceFiles, s.TotalDocFiles)
	fmt.Printf("  Undocumented: %d  Gaps recorded: %d\n", len(s.UndocumentedFiles), s.GapsCreated)
	for _, f := range s.UndocumentedFiles {
		fmt.Printf("    - %s\n", f)
	}
}

func outcomeColor(outcome models.EventType) string {
	s := string(outcome)
	switch outcome {
	case models.EventPROpened:
		return green(s)
	case models.EventNoChanges, models.EventNoDocChanges, models.EventNoGaps:
		return gray(s)
	default:
		return yellow(s)
	}
}

func coverageColor(pct float64) string {
	s := fmt.Sprintf("%.1f%%", pct)
	switch {
	case pct >= 80:
		return green(s)
	case pct >= 50:
		return yellow(s)
	default:
		return red(s)
	}
}

func gapStatusColor(status models.GapStatus) string {
	switch status {
	case models.GapResolved:
		return green(string(status))
	case models.GapPROpened:
		return cyan(string(status))
	case models.GapPRFailed:
		return red(string(status))
	default:
		return yellow(string(status))
	}
}

func eventColor(event models.EventType) string {
	s := string(event)
	switch {
	case strings.HasSuffix(s, "_failed"):
		return red(s)
	case event == models.EventPROpened, event == models.EventScanComplete:
		return green(s)
	default:
		return cyan(s)
	}
}
