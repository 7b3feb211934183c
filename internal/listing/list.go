// Package listing renders active drafts for browsing surfaces: the scribe
// CLI and any UI that wants a plain, pre-filtered view of an owner's
// resumable work.
package listing

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/quillhq/scribe/pkg/draft"
)

// OutputFormat specifies how to format the draft list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated titles
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete drafts as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// FilterCriteria defines filtering options for draft listing.
// All filters are ANDed together.
type FilterCriteria struct {
	Module     string // Exact match for module, empty = no filter
	RouteGlob  string // Glob pattern for route, empty = no filter
	SinceMs    int64  // Unix ms lower bound on last save, 0 = no filter
	UntilMs    int64  // Unix ms upper bound on last save, 0 = no filter
}

// matchesFilter returns true if the draft matches all filter criteria.
func (fc *FilterCriteria) matchesFilter(d *draft.Draft) bool {
	if fc.Module != "" && d.Module != fc.Module {
		return false
	}

	if fc.RouteGlob != "" {
		matched, err := filepath.Match(fc.RouteGlob, d.Route)
		if err != nil || !matched {
			return false
		}
	}

	if fc.SinceMs > 0 && d.LastSavedAtMs < fc.SinceMs {
		return false
	}
	if fc.UntilMs > 0 && d.LastSavedAtMs > fc.UntilMs {
		return false
	}

	return true
}

// ListDrafts retrieves an owner's active drafts and writes them to the
// provided writer. The repository already orders them most recently saved
// first; filters are applied on top if provided.
func ListDrafts(ctx context.Context, repo draft.Repository, owner string, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	module := ""
	if filters != nil {
		module = filters.Module
	}

	drafts, err := repo.ListActive(ctx, owner, module)
	if err != nil {
		return fmt.Errorf("failed to list drafts: %w", err)
	}

	if filters != nil {
		filtered := drafts[:0]
		for _, d := range drafts {
			if filters.matchesFilter(d) {
				filtered = append(filtered, d)
			}
		}
		drafts = filtered
	}

	switch format {
	case OutputFormatDefault:
		FormatTable(w, drafts, owner)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, drafts); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}
