package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/dispatch"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Analyze a revision range and open a documentation PR for its gaps",
	Long: `Compare two revisions of a project's repository, detect changes the
documentation does not cover, draft the missing documentation and open one
pull request with it.

Examples:
  tome push --project a1b2c3d4 --before 9f1c2e0 --after 4d5e6f7
  tome push --project a1b2c3d4 --before 9f1c2e0 --after 4d5e6f7 --open

A range that was already processed is skipped; --force runs it again.`,
	RunE: runPush,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Measure documentation coverage of a project's source files",
	Long: `Walk the repository's default branch, match source files against the
documentation by file name and record a gap for every undocumented file.`,
	RunE: runScan,
}

func init() {
	pushCmd.Flags().String("project", "", "project ID (required)")
	pushCmd.Flags().String("before", "", "base revision (required)")
	pushCmd.Flags().String("after", "", "head revision (required)")
	pushCmd.Flags().Bool("open", false, "open the pull request in a browser")
	pushCmd.Flags().Bool("force", false, "run even if this range was already processed")
	_ = pushCmd.MarkFlagRequired("project")
	_ = pushCmd.MarkFlagRequired("before")
	_ = pushCmd.MarkFlagRequired("after")

	scanCmd.Flags().String("project", "", "project ID (required)")
	_ = scanCmd.MarkFlagRequired("project")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runPush(cmd *cobra.Command, args []string) error {
	projectID, _ := cmd.Flags().GetString("project")
	before, _ := cmd.Flags().GetString("before")
	after, _ := cmd.Flags().GetString("after")
	openPR, _ := cmd.Flags().GetBool("open")
	force, _ := cmd.Flags().GetBool("force")

	ctx, cancel := signalContext()
	defer cancel()

	var outcome dispatch.Outcome
	eng, err := newEngine(ctx, func(o dispatch.Outcome) { outcome = o })
	if err != nil {
		return err
	}

	var opts []dispatch.PushOption
	if force {
		opts = append(opts, dispatch.Force())
	}
	runID := eng.dispatcher.SubmitPush(projectID, before, after, opts...)
	logger.WithField("run_id", runID).Debug("Push run submitted")
	eng.Close()

	printPushOutcome(outcome)
	if outcome.Err != nil {
		return fmt.Errorf("push run %s failed", runID)
	}
	if openPR && outcome.Push != nil && outcome.Push.Publication != nil {
		if err := browser.OpenURL(outcome.Push.Publication.PRURL); err != nil {
			logger.WithError(err).Warn("Failed to open browser")
		}
	}
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	projectID, _ := cmd.Flags().GetString("project")

	ctx, cancel := signalContext()
	defer cancel()

	var outcome dispatch.Outcome
	eng, err := newEngine(ctx, func(o dispatch.Outcome) { outcome = o })
	if err != nil {
		return err
	}

	runID := eng.dispatcher.SubmitScan(projectID)
	logger.WithField("run_id", runID).Debug("Scan run submitted")
	eng.Close()

	printScanOutcome(outcome)
	if outcome.Err != nil {
		return fmt.Errorf("scan run %s failed", runID)
	}
	return nil
}
