package draft

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups when no matching draft exists.
// Use IsNotFound to check for it through wrapping.
var ErrNotFound = errors.New("draft not found")

// IsNotFound returns true if the error indicates a missing draft.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// SaveRequest carries one save attempt against the store.
// ExpectedVersion is the version the writer last observed for the key;
// zero means "no draft exists yet, create one".
type SaveRequest struct {
	Key             Key
	Title           string
	Step            string
	FormData        string
	Metadata        map[string]string
	ExpectedVersion int64
}

// SaveCode classifies the store's answer to a save attempt.
// Conflict and not-found are expected outcomes of optimistic concurrency,
// not errors: the store reports them as data so callers can surface them.
type SaveCode string

const (
	// SaveCodeSaved indicates the version check passed and the write was applied
	SaveCodeSaved SaveCode = "saved"

	// SaveCodeConflict indicates another writer advanced the version first;
	// nothing was written
	SaveCodeConflict SaveCode = "conflict"

	// SaveCodeNotFound indicates ExpectedVersion > 0 but no active draft
	// exists at the key (it was completed or discarded underneath the writer)
	SaveCodeNotFound SaveCode = "not_found"
)

// SaveOutcome is the store's answer to a save attempt.
type SaveOutcome struct {
	Code SaveCode

	// Draft and NewVersion are populated when Code is SaveCodeSaved.
	Draft      *Draft
	NewVersion int64

	// ServerVersion is populated when Code is SaveCodeConflict. It is the
	// version currently held by the store; re-issuing the save with it as
	// ExpectedVersion is the sanctioned forced overwrite.
	ServerVersion int64
}

// Validate checks if the SaveCode is a valid enum value.
func (c SaveCode) Validate() error {
	switch c {
	case SaveCodeSaved, SaveCodeConflict, SaveCodeNotFound:
		return nil
	default:
		return fmt.Errorf("unknown save code: %q", c)
	}
}

// Repository is the keyed, versioned record contract the autosave core is
// built against. The Redis Client in this package implements it; tests may
// substitute any store honoring the same semantics:
//
//   - at most one active draft per key, enforced by find-or-create on save
//   - Save applies the write only if the stored version equals
//     ExpectedVersion at the moment of the write, atomically
//   - accepted saves increment the version by exactly one
//   - Complete and Discard are idempotent; a missing draft is a no-op
//   - terminal drafts are invisible to FindActive/ListActive/LatestActive
type Repository interface {
	// FindActive returns the active draft at key, or ErrNotFound.
	FindActive(ctx context.Context, key Key) (*Draft, error)

	// ListActive returns the owner's active drafts, most recently saved
	// first. An empty module matches all modules.
	ListActive(ctx context.Context, owner, module string) ([]*Draft, error)

	// LatestActive returns the owner's most recently saved active draft
	// across all modules, or ErrNotFound.
	LatestActive(ctx context.Context, owner string) (*Draft, error)

	// Save upserts the draft at req.Key under an atomic version check.
	// Conflict and not-found are reported in the outcome, not as errors.
	Save(ctx context.Context, req SaveRequest) (*SaveOutcome, error)

	// Complete marks the draft completed. No-op if missing or terminal.
	Complete(ctx context.Context, draftID string) error

	// Discard marks the draft discarded. No-op if missing or terminal.
	Discard(ctx context.Context, draftID string) error
}
