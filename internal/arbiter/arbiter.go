// Package arbiter decides when a previously saved draft should be offered
// for resumption. It queries the store at view mount and at login and hands
// back candidates without loading them into any session - the resume,
// discard or cancel decision always belongs to the caller.
package arbiter

import (
	"context"
	"fmt"
	"sync"

	"github.com/quillhq/scribe/internal/session"
	"github.com/quillhq/scribe/pkg/draft"
)

// Arbitrator finds resumable drafts and tracks the process-session state
// that suppresses repeated offers: one check per view mount, and at most
// one login prompt per process session once dismissed. Thread-safe.
type Arbitrator struct {
	repo draft.Repository

	mu             sync.Mutex
	mounted        map[draft.Key]bool
	loginDismissed bool
}

// New creates an arbitrator over the given repository.
func New(repo draft.Repository) *Arbitrator {
	return &Arbitrator{
		repo:    repo,
		mounted: make(map[draft.Key]bool),
	}
}

// CheckForDraft queries the store for an active draft at the key. Returns
// (nil, nil) when there is nothing to offer. Guarded against duplicate calls
// within the same mount: until ReleaseMount, repeated checks for the key
// return nothing, so a re-rendering view cannot stack prompts.
func (a *Arbitrator) CheckForDraft(ctx context.Context, key draft.Key) (*draft.Draft, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}

	a.mu.Lock()
	if a.mounted[key] {
		a.mu.Unlock()
		return nil, nil
	}
	a.mounted[key] = true
	a.mu.Unlock()

	d, err := a.repo.FindActive(ctx, key)
	if err != nil {
		if draft.IsNotFound(err) {
			return nil, nil
		}
		// A transport failure must not consume the mount's one check, or
		// the offer is lost until the view remounts.
		a.mu.Lock()
		delete(a.mounted, key)
		a.mu.Unlock()
		return nil, fmt.Errorf("failed to check for draft: %w", err)
	}
	return d, nil
}

// ReleaseMount clears the mount guard for a key when its view is torn down,
// so the next mount checks again.
func (a *Arbitrator) ReleaseMount(key draft.Key) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.mounted, key)
}

// CheckLatestOnLogin queries the store for the owner's most recently saved
// active draft across all modules, intended to drive a one-time post-login
// prompt. Returns (nil, nil) when there is nothing to offer or the prompt
// was dismissed earlier in this process session.
func (a *Arbitrator) CheckLatestOnLogin(ctx context.Context, owner string) (*draft.Draft, error) {
	a.mu.Lock()
	dismissed := a.loginDismissed
	a.mu.Unlock()
	if dismissed {
		return nil, nil
	}

	d, err := a.repo.LatestActive(ctx, owner)
	if err != nil {
		if draft.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check latest draft: %w", err)
	}
	return d, nil
}

// DismissLoginPrompt suppresses the login prompt for the remainder of the
// process session. The draft itself is untouched and will be offered again
// in a future session unless it is completed or discarded.
func (a *Arbitrator) DismissLoginPrompt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loginDismissed = true
}

// Reset clears the dismissal and all mount guards. Called on a new login.
func (a *Arbitrator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loginDismissed = false
	a.mounted = make(map[draft.Key]bool)
}

// Resume binds the caller's session to the offered draft and returns its
// form data, so subsequent edits autosave against the same record.
func (a *Arbitrator) Resume(d *draft.Draft, sess *session.Session) (string, error) {
	formData, err := sess.BindResumed(d)
	if err != nil {
		return "", fmt.Errorf("failed to resume draft %s: %w", d.ID, err)
	}
	return formData, nil
}

// Discard deletes the offered draft through the repository without binding
// any session to it.
func (a *Arbitrator) Discard(ctx context.Context, d *draft.Draft) error {
	if err := a.repo.Discard(ctx, d.ID); err != nil {
		return fmt.Errorf("failed to discard draft %s: %w", d.ID, err)
	}
	return nil
}

// Cancel closes an offer leaving the draft untouched. It exists so callers
// have one place for all three prompt resolutions; dismissal bookkeeping for
// the login prompt is DismissLoginPrompt.
func (a *Arbitrator) Cancel() {}
