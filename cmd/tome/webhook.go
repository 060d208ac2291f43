package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/dispatch"
	"github.com/tomehq/tome/internal/trigger"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Work with GitHub webhook deliveries",
}

var webhookReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Process a saved webhook delivery",
	Long: `Feed a saved GitHub webhook delivery through the same path a live one
takes: signature check, event filtering, project lookup, redelivery tracking
and the push pipeline.

Examples:
  tome webhook replay --event push --payload delivery.json
  tome webhook replay --event pull_request --payload pr.json --signature sha256=...`,
	RunE: runWebhookReplay,
}

func init() {
	webhookReplayCmd.Flags().String("event", "", "X-GitHub-Event value: push or pull_request (required)")
	webhookReplayCmd.Flags().String("payload", "", "file holding the delivery body (required)")
	webhookReplayCmd.Flags().String("signature", "", "X-Hub-Signature-256 value, checked when a webhook secret is configured")
	_ = webhookReplayCmd.MarkFlagRequired("event")
	_ = webhookReplayCmd.MarkFlagRequired("payload")

	webhookCmd.AddCommand(webhookReplayCmd)
}

func runWebhookReplay(cmd *cobra.Command, args []string) error {
	event, _ := cmd.Flags().GetString("event")
	payloadPath, _ := cmd.Flags().GetString("payload")
	signature, _ := cmd.Flags().GetString("signature")

	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	var outcome dispatch.Outcome
	eng, err := newEngine(ctx, func(o dispatch.Outcome) { outcome = o })
	if err != nil {
		return err
	}
	defer eng.Close()

	converter := trigger.NewConverter(eng.store, cfg.GitHub.BranchPrefix, cfg.GitHub.WebhookSecret)
	if err := converter.Verify(signature, payload); err != nil {
		return err
	}
	decision, err := converter.Convert(ctx, event, payload)
	if err != nil {
		return err
	}
	if !decision.Accepted() {
		fmt.Printf("%s ignored: %s\n", yellow("-"), decision.Reason)
		return nil
	}

	t := decision.Trigger
	runID := eng.dispatcher.SubmitPush(t.ProjectID, t.Before, t.After)
	fmt.Printf("%s processing %s for project %s (run %s)\n", green("✓"), t.Source, cyan(t.ProjectID), gray(runID))
	eng.dispatcher.Wait()

	printPushOutcome(outcome)
	if outcome.Err != nil {
		return fmt.Errorf("push run %s failed", runID)
	}
	return nil
}
