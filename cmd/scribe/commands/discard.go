package commands

import (
	"context"

	"github.com/quillhq/scribe/internal/printer"
	"github.com/quillhq/scribe/internal/resolver"
	"github.com/spf13/cobra"
)

var discardCmd = &cobra.Command{
	Use:   "discard DRAFT_ID",
	Short: "Discard a draft",
	Long: `Mark a draft discarded, removing it from resume and listing queries.

Discarding is idempotent: a draft that is already discarded, completed or
gone is left as-is and the command succeeds. The next edit on the same
form key starts a fresh draft at version 1.

Supports short IDs as long as the prefix is unambiguous.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiscard,
}

func init() {
	rootCmd.AddCommand(discardCmd)
}

func runDiscard(cmd *cobra.Command, args []string) error {
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

	if err := client.Discard(ctx, draftID); err != nil {
		return printer.Error("Failed to discard draft", err.Error(), nil)
	}

	printer.Success("Discarded draft %s\n", draftID)
	return nil
}
