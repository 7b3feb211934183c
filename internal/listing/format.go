package listing

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/quillhq/scribe/pkg/draft"
)

// FormatTable writes drafts as a formatted table to the provided writer.
// The table includes columns: ID, VERSION, MODULE, ROUTE, AGE, and TITLE.
// Returns the number of drafts formatted.
func FormatTable(w io.Writer, drafts []*draft.Draft, owner string) int {
	if len(drafts) == 0 {
		fmt.Fprintf(w, "No active drafts for '%s'\n", owner)
		return 0
	}

	fmt.Fprintf(w, "Active drafts for '%s':\n\n", owner)

	fmt.Fprintf(w, "%-10s %-5s %-14s %-24s %-8s %s\n",
		"ID", "VER", "MODULE", "ROUTE", "AGE", "TITLE")
	fmt.Fprintf(w, "%-10s %-5s %-14s %-24s %-8s %s\n",
		"----------", "-----", "--------------", "------------------------", "--------", "----------------------------------------")

	for _, d := range drafts {
		fmt.Fprintf(w, "%-10s %-5s %-14s %-24s %-8s %s\n",
			formatID(d.ID),
			fmt.Sprintf("v%d", d.Version),
			formatColumn(d.Module, 14),
			formatColumn(d.Route, 24),
			formatTimestamp(d.LastSavedAtMs),
			formatTitle(d.Title),
		)
	}

	countMsg := "draft"
	if len(drafts) != 1 {
		countMsg = "drafts"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(drafts), countMsg)

	return len(drafts)
}

// FormatJSONL writes drafts as line-delimited JSON (JSONL) to the provided
// writer. Each draft is written as a single JSON object on its own line.
// This format is ideal for streaming and processing with tools like jq.
func FormatJSONL(w io.Writer, drafts []*draft.Draft) error {
	for _, d := range drafts {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to marshal draft to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", string(data)); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes a single draft as pretty-printed JSON to the
// provided writer. Used by the show command to display complete details.
func FormatSingleJSON(w io.Writer, d *draft.Draft) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal draft to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	// Trailing newline for clean output
	fmt.Fprintln(w)

	return nil
}

// formatID truncates a draft ID to first 8 characters for compact display.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatColumn truncates a value to the column width. Empty values return "-".
func formatColumn(value string, width int) string {
	if value == "" {
		return "-"
	}
	if len(value) > width {
		return value[:width-3] + "..."
	}
	return value
}

// formatTitle truncates the title to first line with max 40 characters for
// table display. Empty titles return "-".
func formatTitle(title string) string {
	if title == "" {
		return "-"
	}

	firstLine := title
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		firstLine = strings.TrimSpace(title[:idx])
	}
	if firstLine == "" {
		return "-"
	}

	if len(firstLine) > 40 {
		return firstLine[:37] + "..."
	}
	return firstLine
}

// formatTimestamp formats a unix-millisecond timestamp as relative age,
// like "2m ago" or "1h ago".
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	t := time.Unix(timestampMs/1000, (timestampMs%1000)*1000000)
	diff := time.Since(t)

	if diff < time.Minute {
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
}
