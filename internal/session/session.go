// Package session implements the per-form-instance autosave façade. A
// Session owns the identity and last-known version of the draft a form is
// editing, drives the scheduler on edits and flushes, interprets save
// results through the guard, and exposes a single state value for the
// presentation layer to read. The state always reflects the outcome of the
// last operation.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/quillhq/scribe/internal/guard"
	"github.com/quillhq/scribe/internal/scheduler"
	"github.com/quillhq/scribe/pkg/draft"
)

// State is the session's position in the autosave lifecycle.
type State string

const (
	// StateIdle - no key bound yet; the initial state
	StateIdle State = "idle"

	// StateClean - bound, no unsaved edits
	StateClean State = "clean"

	// StateDirty - edits pending, debounce running
	StateDirty State = "dirty"

	// StateSaving - a save is in flight
	StateSaving State = "saving"

	// StateError - the last save failed (transport or backend); the unsent
	// payload is retained and the next edit or flush is the only retry path
	StateError State = "error"

	// StateConflict - another session's save won the version race; both
	// version numbers are exposed for the caller to resolve
	StateConflict State = "conflict"

	// StateCompleted - the owning form's real submission succeeded; terminal
	StateCompleted State = "completed"

	// StateDiscarded - the actor abandoned the draft; terminal
	StateDiscarded State = "discarded"
)

// Validate checks if the State is a valid enum value.
func (s State) Validate() error {
	switch s {
	case StateIdle, StateClean, StateDirty, StateSaving,
		StateError, StateConflict, StateCompleted, StateDiscarded:
		return nil
	default:
		return fmt.Errorf("unknown session state: %q", s)
	}
}

// Terminal reports whether the state admits no further edits.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateDiscarded
}

// ErrFinished is returned when a completed or discarded session is edited.
// The caller must bind a fresh session to start a new draft.
var ErrFinished = errors.New("session is finished")

// ErrNotBound is returned when an unbound session is edited or flushed.
var ErrNotBound = errors.New("session is not bound to a key")

// ErrAlreadyBound is returned when Bind is called on a bound session.
var ErrAlreadyBound = errors.New("session is already bound")

// ErrNoConflict is returned by ForceFlush outside the conflict state.
var ErrNoConflict = errors.New("session has no conflict to resolve")

// Payload is the edited form content handed to Edit. FormData and Metadata
// are opaque here; only the store and the owning form interpret them.
type Payload struct {
	Title    string
	Step     string
	FormData string
	Metadata map[string]string
}

// Session is the autosave façade for one form instance. Thread-safe.
type Session struct {
	mu    sync.Mutex
	sched *scheduler.Scheduler
	repo  draft.Repository

	key     draft.Key
	draftID string
	version int64
	state   State
	last    Payload // most recent edit, retained across failures

	saveErr       error
	clientVersion int64
	serverVersion int64
}

// New creates an unbound session using the given scheduler and repository.
func New(repo draft.Repository, sched *scheduler.Scheduler) *Session {
	return &Session{repo: repo, sched: sched, state: StateIdle}
}

// Bind attaches the session to a key with no existing draft. Edits after
// Bind create a fresh draft on first save.
func (s *Session) Bind(key draft.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrAlreadyBound
	}
	if err := s.sched.Bind(key, 0, s.handleResult); err != nil {
		return err
	}
	s.key = key
	s.state = StateClean
	return nil
}

// BindResumed attaches the session to an existing draft found by the
// arbitrator, so subsequent edits autosave against the same record rather
// than creating a new one. Returns the draft's form data for the caller to
// load into the form.
func (s *Session) BindResumed(d *draft.Draft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return "", ErrAlreadyBound
	}
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("cannot resume invalid draft: %w", err)
	}
	if err := s.sched.Bind(d.Key(), d.Version, s.handleResult); err != nil {
		return "", err
	}
	s.key = d.Key()
	s.draftID = d.ID
	s.version = d.Version
	s.state = StateClean
	return d.FormData, nil
}

// Edit records the latest form content and schedules a debounced save.
// Also the retry path after an error and the first step of resolving a
// conflict by overwrite.
func (s *Session) Edit(p Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return ErrFinished
	}
	if s.state == StateIdle {
		return ErrNotBound
	}

	s.last = p
	if s.state != StateSaving {
		s.state = StateDirty
	}
	if s.serverVersion != 0 {
		// Unresolved conflict: a debounced save would only lose the same
		// race again. The edit is retained for ForceFlush, or for a plain
		// Flush after the caller re-binds to the reloaded draft.
		return nil
	}
	return s.sched.ScheduleDebounced(s.key, s.request())
}

// Flush saves the pending edits now, bypassing the debounce window. Blur,
// tab switches and navigation exits call this. Returns an error only for
// transport or backend failures; conflict and not-found are reflected in
// the session state, not returned. If ctx expires while the save is queued
// behind an in-flight call the save may still land; its late result then
// arrives through the scheduler's notify callback and the state catches up.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return ErrFinished
	}
	if s.state == StateIdle {
		s.mu.Unlock()
		return ErrNotBound
	}
	if s.state == StateClean {
		s.mu.Unlock()
		return nil
	}
	key, req := s.key, s.request()
	s.state = StateSaving
	s.mu.Unlock()

	// The scheduler is called unlocked: it blocks until the save (and any
	// in-flight save it coalesced behind) completes.
	outcome, err := s.sched.SaveImmediate(ctx, key, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(outcome, err)
	if err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}
	return nil
}

// ForceFlush resolves a conflict by deliberately overwriting the other
// session's save: it re-issues the retained payload with the server's
// version as the expected version. Only valid while a conflict is
// unresolved. The
// alternative resolution - re-fetching and discarding local edits - is done
// by the caller binding a fresh session to the reloaded draft.
func (s *Session) ForceFlush(ctx context.Context) error {
	s.mu.Lock()
	if s.serverVersion == 0 {
		s.mu.Unlock()
		return ErrNoConflict
	}
	if err := s.sched.SetVersion(s.key, s.serverVersion); err != nil {
		s.mu.Unlock()
		return err
	}
	s.version = s.serverVersion
	key, req := s.key, s.request()
	s.state = StateSaving
	s.mu.Unlock()

	outcome, err := s.sched.SaveImmediate(ctx, key, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(outcome, err)
	if err != nil {
		return fmt.Errorf("forced flush failed: %w", err)
	}
	return nil
}

// Complete marks the draft completed after the owning form's real submission
// succeeded. Idempotent; a never-saved session simply closes. Cancels any
// scheduled save first so no write lands after completion.
func (s *Session) Complete(ctx context.Context) error {
	return s.finish(ctx, StateCompleted)
}

// Discard abandons the draft. Idempotent; cancels any scheduled save.
func (s *Session) Discard(ctx context.Context) error {
	return s.finish(ctx, StateDiscarded)
}

func (s *Session) finish(ctx context.Context, terminal State) error {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateIdle {
		s.state = terminal
		s.mu.Unlock()
		return nil
	}
	key, draftID := s.key, s.draftID
	s.state = terminal
	s.mu.Unlock()

	s.sched.Cancel(key)

	if draftID == "" {
		return nil
	}
	var err error
	if terminal == StateCompleted {
		err = s.repo.Complete(ctx, draftID)
	} else {
		err = s.repo.Discard(ctx, draftID)
	}
	if err != nil {
		return fmt.Errorf("failed to finish draft %s: %w", draftID, err)
	}
	return nil
}

// handleResult receives debounced save results from the scheduler.
func (s *Session) handleResult(_ draft.Key, outcome *draft.SaveOutcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.apply(outcome, err)
}

// apply folds one save result into the session state. Caller holds s.mu.
func (s *Session) apply(outcome *draft.SaveOutcome, err error) {
	if err != nil {
		if errors.Is(err, scheduler.ErrCancelled) {
			return
		}
		s.state = StateError
		s.saveErr = err
		return
	}

	// Nothing was sent: the payload was empty or already stored.
	if outcome == nil {
		if s.state == StateSaving {
			s.state = StateClean
		}
		return
	}

	verdict, verr := guard.Apply(outcome, s.version)
	if verr != nil {
		s.state = StateError
		s.saveErr = verr
		return
	}

	switch verdict.Kind {
	case guard.KindAccepted:
		s.draftID = verdict.Draft.ID
		s.version = verdict.NewVersion
		s.saveErr = nil
		s.clientVersion, s.serverVersion = 0, 0
		if s.last.FormData == verdict.Draft.FormData {
			s.state = StateClean
		} else {
			// An edit arrived while this save was in flight; its
			// coalesced follow-up is already on the way.
			s.state = StateDirty
		}

	case guard.KindConflict:
		s.state = StateConflict
		s.clientVersion = verdict.ClientVersion
		s.serverVersion = verdict.ServerVersion

	case guard.KindNotFound:
		// The draft was completed or discarded underneath this session.
		// Local edits are kept; the next save recreates the draft at
		// version 1.
		s.draftID = ""
		s.version = 0
		s.state = StateDirty
	}
}

// request snapshots the retained payload as a scheduler request.
// Caller holds s.mu.
func (s *Session) request() scheduler.Request {
	return scheduler.Request{
		Title:    s.last.Title,
		Step:     s.last.Step,
		FormData: s.last.FormData,
		Metadata: s.last.Metadata,
	}
}

// State returns the session's current lifecycle state. This is the single
// status value the presentation layer consumes.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Key returns the bound key. Zero value while idle.
func (s *Session) Key() draft.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// DraftID returns the bound draft id, empty until the first accepted save.
func (s *Session) DraftID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftID
}

// Version returns the last-known accepted version, 0 before the first save.
func (s *Session) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// ConflictVersions returns the client and server versions surfaced by the
// last conflict. Both are zero outside the conflict state.
func (s *Session) ConflictVersions() (client, server int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientVersion, s.serverVersion
}

// Err returns the failure that put the session into the error state.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveErr
}
