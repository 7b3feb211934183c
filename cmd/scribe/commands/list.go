package commands

import (
	"context"
	"os"

	"github.com/quillhq/scribe/internal/listing"
	"github.com/quillhq/scribe/internal/printer"
	"github.com/quillhq/scribe/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	listOwner  string
	listModule string
	listRoute  string
	listSince  string
	listOutput string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List an owner's active drafts",
	Long: `List the active (resumable) drafts of an owner, most recently saved first.

Completed and discarded drafts are never shown; once finished, a record
leaves resume and listing queries for good.

Output Formats:
  default - Human-readable table with ID, version, module, route and title
  jsonl   - Line-delimited JSON, one draft per line

Examples:
  # All active drafts for an owner
  scribe list --owner alice

  # Only the "leads" form family
  scribe list --owner alice --module leads

  # Drafts touched in the last two hours, as JSONL for jq
  scribe list --owner alice --since 2h --output jsonl`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listOwner, "owner", "", "Owner whose drafts to list (required)")
	listCmd.Flags().StringVar(&listModule, "module", "", "Filter by module (exact match)")
	listCmd.Flags().StringVar(&listRoute, "route", "", "Filter by route (glob pattern)")
	listCmd.Flags().StringVar(&listSince, "since", "", "Show drafts saved after time (duration or RFC3339)")
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "default", "Output format: default or jsonl")
	listCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, err := openStore()
	if err != nil {
		return printer.Error("Cannot open draft store", err.Error(), nil)
	}
	defer client.Close()

	filters := &listing.FilterCriteria{
		Module:    listModule,
		RouteGlob: listRoute,
	}
	if listSince != "" {
		sinceMs, err := timespec.ParseToMs(listSince)
		if err != nil {
			return printer.Error("Invalid --since value", err.Error(),
				[]string{"Use a duration like '2h' or an RFC3339 timestamp"})
		}
		filters.SinceMs = sinceMs
	}

	format := listing.OutputFormat(listOutput)
	if err := listing.ListDrafts(ctx, client, listOwner, format, filters, os.Stdout); err != nil {
		return printer.Error("Failed to list drafts", err.Error(), nil)
	}

	return nil
}
