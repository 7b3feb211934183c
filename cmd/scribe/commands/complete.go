package commands

import (
	"context"

	"github.com/quillhq/scribe/internal/printer"
	"github.com/quillhq/scribe/internal/resolver"
	"github.com/spf13/cobra"
)

var completeCmd = &cobra.Command{
	Use:   "complete DRAFT_ID",
	Short: "Mark a draft completed",
	Long: `Mark a draft completed, removing it from resume and listing queries.

Normally the owning form signals completion when its real submission
succeeds; this command covers the out-of-band case where a record was
finalized through another channel. Completed drafts are retained for
audit but never resumed. Idempotent: repeating the command, or running
it on a missing draft, succeeds without changing anything.

Supports short IDs as long as the prefix is unambiguous.`,
	Args: cobra.ExactArgs(1),
	RunE: runComplete,
}

func init() {
	rootCmd.AddCommand(completeCmd)
}

func runComplete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, err := openStore()
	if err != nil {
		return printer.Error("Cannot open draft store", err.Error(), nil)
	}
	defer client.Close()

	draftID, err := resolver.ResolveDraftID(ctx, client, args[0])
	if err != nil {
		return printer.Error("Cannot resolve draft ID", err.Error(),
			[]string{"Use 'scribe list --owner <owner>' to find draft IDs"})
	}

	if err := client.Complete(ctx, draftID); err != nil {
		return printer.Error("Failed to complete draft", err.Error(), nil)
	}

	printer.Success("Completed draft %s\n", draftID)
	return nil
}
