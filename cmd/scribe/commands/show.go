package commands

import (
	"context"
	"os"

	"github.com/quillhq/scribe/internal/listing"
	"github.com/quillhq/scribe/internal/printer"
	"github.com/quillhq/scribe/internal/resolver"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show DRAFT_ID",
	Short: "Show complete details of a single draft",
	Long: `Show a draft as pretty-printed JSON, including its opaque form data.

Supports short IDs (e.g., "abc123" instead of the full UUID) as long as
the prefix is unambiguous. Terminal drafts (completed, discarded) can be
shown too; they are retained for audit even though they never resume.

Examples:
  scribe show 3f2a91bc
  scribe show 3f2a91bc-7c44-4f6e-9b2a-0c5d8f1e6a77`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
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

	d, err := client.GetDraft(ctx, draftID)
	if err != nil {
		return printer.Error("Failed to fetch draft", err.Error(), nil)
	}

	if err := listing.FormatSingleJSON(os.Stdout, d); err != nil {
		return printer.Error("Failed to format draft", err.Error(), nil)
	}

	return nil
}
