package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/quillhq/scribe/pkg/draft"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
// Set to 6 characters to balance usability with collision avoidance.
const MinShortIDLength = 6

// ResolveDraftID resolves a short ID prefix to a full draft UUID.
// Returns the full UUID if exactly one match found.
// Returns error if zero or multiple matches found.
//
// The function handles three cases:
// 1. Input is already a full UUID (36 chars, 4 hyphens) - validates existence
// 2. Input is too short (< 6 chars) - returns validation error
// 3. Input is a short prefix - scans for matches and returns unique result
func ResolveDraftID(ctx context.Context, client *draft.Client, shortID string) (string, error) {
	// If input is already a full UUID, verify it exists and return as-is
	if len(shortID) == 36 && strings.Count(shortID, "-") == 4 {
		_, err := client.GetDraft(ctx, shortID)
		if err != nil {
			if draft.IsNotFound(err) {
				return "", fmt.Errorf("draft not found: %s", shortID)
			}
			return "", fmt.Errorf("failed to verify draft existence: %w", err)
		}
		return shortID, nil
	}

	// Validate minimum length
	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	// Scan for matching UUIDs
	matches, err := client.ScanDrafts(ctx, shortID)
	if err != nil {
		return "", fmt.Errorf("failed to search for draft: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no drafts matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no draft found matching %q", e.ShortID)
}

// AmbiguousError indicates multiple drafts matched the short ID prefix.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("short ID %q is ambiguous: %d drafts match", e.ShortID, len(e.Matches))
}
