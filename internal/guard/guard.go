// Package guard interprets the store's answer to a save attempt as an
// optimistic-concurrency verdict. The version check itself happens
// atomically inside the repository at write time; the guard only classifies
// the result for the session state machine and never attempts
// reconciliation.
package guard

import (
	"fmt"

	"github.com/quillhq/scribe/pkg/draft"
)

// Kind enumerates the possible verdicts of a save attempt.
type Kind string

const (
	// KindAccepted indicates the version check passed and the write landed
	KindAccepted Kind = "accepted"

	// KindConflict indicates another session's save won the race; both
	// version numbers are carried so the caller can present them
	KindConflict Kind = "conflict"

	// KindNotFound indicates no active draft existed for a non-zero
	// expected version (it was completed or discarded underneath us)
	KindNotFound Kind = "not_found"
)

// Verdict is the interpreted result of a save attempt.
type Verdict struct {
	Kind Kind

	// Draft and NewVersion are set when Kind is KindAccepted.
	Draft      *draft.Draft
	NewVersion int64

	// ClientVersion and ServerVersion are set when Kind is KindConflict.
	// Re-issuing the save with ServerVersion as the expected version is the
	// only sanctioned forced overwrite; the alternative resolution is the
	// caller re-fetching and discarding local edits.
	ClientVersion int64
	ServerVersion int64
}

// Apply classifies a repository save outcome against the version the client
// expected. Returns an error only for malformed outcomes, which are fatal to
// the caller; conflict and not-found are verdicts, not errors.
func Apply(outcome *draft.SaveOutcome, expectedVersion int64) (Verdict, error) {
	if outcome == nil {
		return Verdict{}, fmt.Errorf("nil save outcome")
	}

	switch outcome.Code {
	case draft.SaveCodeSaved:
		if outcome.Draft == nil || outcome.NewVersion < 1 {
			return Verdict{}, fmt.Errorf("malformed save outcome: saved without draft or version")
		}
		return Verdict{
			Kind:       KindAccepted,
			Draft:      outcome.Draft,
			NewVersion: outcome.NewVersion,
		}, nil

	case draft.SaveCodeConflict:
		return Verdict{
			Kind:          KindConflict,
			ClientVersion: expectedVersion,
			ServerVersion: outcome.ServerVersion,
		}, nil

	case draft.SaveCodeNotFound:
		return Verdict{Kind: KindNotFound}, nil

	default:
		return Verdict{}, fmt.Errorf("malformed save outcome: %w", outcome.Code.Validate())
	}
}
