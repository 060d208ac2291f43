package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/models"
)

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Show documentation gaps recorded for a project",
	Long: `List the gaps the ledger holds for a project, newest first.

Examples:
  tome gaps --project a1b2c3d4
  tome gaps --project a1b2c3d4 --status pr_opened`,
	RunE: runGaps,
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show the activity log of a project",
	RunE:  runActivity,
}

func init() {
	gapsCmd.Flags().String("project", "", "project ID (required)")
	gapsCmd.Flags().String("status", "", "filter by status (detected, pr_opened, resolved, pr_failed)")
	_ = gapsCmd.MarkFlagRequired("project")

	activityCmd.Flags().String("project", "", "project ID (required)")
	activityCmd.Flags().IntP("limit", "n", 20, "number of entries to show")
	_ = activityCmd.MarkFlagRequired("project")
}

func parseGapStatus(s string) (models.GapStatus, error) {
	switch status := models.GapStatus(s); status {
	case "", models.GapDetected, models.GapPROpened, models.GapResolved, models.GapPRFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown gap status %q", s)
	}
}

func runGaps(cmd *cobra.Command, args []string) error {
	projectID, _ := cmd.Flags().GetString("project")
	statusFlag, _ := cmd.Flags().GetString("status")
	status, err := parseGapStatus(statusFlag)
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	gaps, err := store.ListGaps(context.Background(), projectID, status)
	if err != nil {
		return err
	}
	if len(gaps) == 0 {
		fmt.Printf("\n%s No gaps found\n\n", yellow("✨"))
		return nil
	}

	fmt.Printf("\n%s Gaps for %s (%d):\n\n", cyan("📋"), projectID, len(gaps))
	for _, g := range gaps {
		fmt.Printf("  #%-5d %-10s %-22s %s\n", g.ID, gapStatusColor(g.Status), g.GapType, g.SourceFile)
		fmt.Printf("         %s\n", gray(g.Description))
		if g.PRURL != nil {
			fmt.Printf("         PR: %s\n", *g.PRURL)
		}
	}
	fmt.Println()
	return nil
}

func runActivity(cmd *cobra.Command, args []string) error {
	projectID, _ := cmd.Flags().GetString("project")
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.ListActivity(context.Background(), projectID, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("\n%s No activity yet\n\n", yellow("✨"))
		return nil
	}

	fmt.Printf("\n%s Recent activity for %s (%d entries):\n\n", cyan("📋"), projectID, len(entries))
	// Newest last, so the log reads top to bottom.
	for i := len(entries) - 1; i >= 0; i-- {
		a := entries[i]
		fmt.Printf("  %s  %-18s %s\n", gray(a.CreatedAt.Local().Format("2006-01-02 15:04:05")), eventColor(a.EventType), a.Summary)
		if verbose && a.Details != nil {
			fmt.Printf("  %s\n", gray(*a.Details))
		}
	}
	fmt.Println()
	return nil
}
