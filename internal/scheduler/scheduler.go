// Package scheduler owns the autosave timing for draft keys: one debounce
// timer and at most one in-flight save per key, with a coalescing slot of
// depth one behind the in-flight call. Saves for a key are therefore
// strictly ordered and the store always ends up holding the most recently
// edited content.
//
// The scheduler also tracks the last-known version per key. Every outgoing
// request is stamped with it at dispatch time, and it advances on each
// accepted save, so a payload queued behind an in-flight call is never sent
// with the version that call just consumed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/quillhq/scribe/pkg/draft"
)

const (
	// DefaultWindow is the debounce window applied when none is configured.
	// Long enough that a typing actor does not thrash the store, short
	// enough that little work is at risk on an abrupt exit.
	DefaultWindow = 3 * time.Second

	// DefaultTimeout bounds a single save call against the store. A save
	// that exceeds it is treated as a failure, never as a silent no-op.
	DefaultTimeout = 10 * time.Second
)

// ErrCancelled is delivered to waiters whose queued save was dropped by
// Cancel or Close before it could be issued.
var ErrCancelled = errors.New("save cancelled")

// ErrNotBound is returned when a key is used before Bind.
var ErrNotBound = errors.New("key not bound to scheduler")

// SaveFunc performs one save against the store. Typically Repository.Save.
type SaveFunc func(ctx context.Context, req draft.SaveRequest) (*draft.SaveOutcome, error)

// NotifyFunc receives the result of a debounced save for a key. Immediate
// saves report their result to the SaveImmediate caller instead.
type NotifyFunc func(key draft.Key, outcome *draft.SaveOutcome, err error)

// Request is the payload of one scheduled save. The scheduler stamps the
// expected version itself; callers only supply content.
type Request struct {
	Title    string
	Step     string
	FormData string
	Metadata map[string]string
}

type saveResult struct {
	outcome *draft.SaveOutcome
	err     error
}

// queuedSave is the single coalescing slot behind an in-flight save. A new
// arrival replaces the payload but keeps earlier waiters: they receive the
// result of the newer save, which is the content the store ends up holding.
type queuedSave struct {
	req     Request
	waiters []chan saveResult
}

type entry struct {
	notify   NotifyFunc
	expected int64 // last-known version for the key
	timer    *time.Timer
	pending  *Request // latest debounced payload, not yet fired
	inflight bool
	queued   *queuedSave
	lastSent Request // payload of the last save the store accepted
	hasSent  bool
	unbound  bool // Cancel was called while a save was in flight
}

// unchanged reports whether the payload is identical to the last one the
// store accepted, across every field a save persists. A title, step or
// metadata change alone is still a real edit.
func unchanged(a, b Request) bool {
	return a.Title == b.Title && a.Step == b.Step &&
		a.FormData == b.FormData && maps.Equal(a.Metadata, b.Metadata)
}

// Scheduler drives debounced and immediate saves for any number of draft
// keys. Thread-safe.
type Scheduler struct {
	mu      sync.Mutex
	entries map[draft.Key]*entry
	save    SaveFunc
	window  time.Duration
	timeout time.Duration
	closed  bool
}

// New creates a scheduler issuing saves through the given SaveFunc.
// A zero window or timeout selects the package default.
func New(save SaveFunc, window, timeout time.Duration) *Scheduler {
	if window <= 0 {
		window = DefaultWindow
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scheduler{
		entries: make(map[draft.Key]*entry),
		save:    save,
		window:  window,
		timeout: timeout,
	}
}

// Bind registers a key with its last-known version and the callback that
// receives debounced save results. Must be called before scheduling saves
// for the key. Version 0 means no draft exists yet.
func (s *Scheduler) Bind(key draft.Key, version int64, notify NotifyFunc) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("scheduler is closed")
	}
	s.entries[key] = &entry{notify: notify, expected: version}
	return nil
}

// SetVersion overrides the last-known version for a key. Used for the
// forced-overwrite resolution of a conflict, where the caller deliberately
// adopts the server's version to win the race.
func (s *Scheduler) SetVersion(key draft.Key, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return ErrNotBound
	}
	e.expected = version
	return nil
}

// ScheduleDebounced (re)starts the key's idle timer with the given payload.
// Only the latest payload is kept; earlier ones scheduled within the window
// are discarded. Empty payloads are never sent.
func (s *Scheduler) ScheduleDebounced(key draft.Key, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || s.closed {
		return ErrNotBound
	}
	if req.FormData == "" {
		return nil
	}

	e.pending = &req
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(s.window, func() { s.fire(key) })
	return nil
}

// fire runs when a key's debounce timer elapses.
func (s *Scheduler) fire(key draft.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return
	}
	e.timer = nil
	if e.pending == nil {
		// Cancelled or superseded by an immediate save between the timer
		// elapsing and this callback taking the lock.
		return
	}
	req := *e.pending
	e.pending = nil
	s.dispatchLocked(key, e, req, nil)
}

// SaveImmediate cancels any pending debounce timer for the key and issues
// the save now, bypassing the window. If a save for the key is already in
// flight the request is coalesced behind it and this call waits for that
// result. A (nil, nil) return means the payload was empty or identical to
// the last stored content and nothing was sent.
func (s *Scheduler) SaveImmediate(ctx context.Context, key draft.Key, req Request) (*draft.SaveOutcome, error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || s.closed {
		s.mu.Unlock()
		return nil, ErrNotBound
	}

	// The explicit payload supersedes whatever the timer was holding.
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.pending = nil

	waiter := make(chan saveResult, 1)
	s.dispatchLocked(key, e, req, waiter)
	s.mu.Unlock()

	select {
	case r := <-waiter:
		return r.outcome, r.err
	case <-ctx.Done():
		// The save may still land after the caller gives up, most likely
		// when it was coalesced behind an in-flight call. Hand the late
		// result to the notify callback so the key's owner is not left
		// believing nothing was saved.
		go s.forwardAbandoned(key, waiter)
		return nil, ctx.Err()
	}
}

// forwardAbandoned drains an abandoned immediate-save waiter and reports the
// result through the key's notify callback, unless the key was cancelled in
// the meantime.
func (s *Scheduler) forwardAbandoned(key draft.Key, waiter chan saveResult) {
	r := <-waiter

	s.mu.Lock()
	var notify NotifyFunc
	if e, ok := s.entries[key]; ok && !e.unbound {
		notify = e.notify
	}
	s.mu.Unlock()

	if notify != nil {
		notify(key, r.outcome, r.err)
	}
}

// dispatchLocked routes a ready-to-send request: skipped if empty or
// unchanged, coalesced if a save is in flight, issued otherwise.
// Caller holds s.mu.
func (s *Scheduler) dispatchLocked(key draft.Key, e *entry, req Request, waiter chan saveResult) {
	if req.FormData == "" || (e.hasSent && unchanged(req, e.lastSent)) {
		if waiter != nil {
			waiter <- saveResult{}
		}
		return
	}

	if e.inflight {
		if e.queued == nil {
			e.queued = &queuedSave{req: req}
		} else {
			e.queued.req = req
		}
		if waiter != nil {
			e.queued.waiters = append(e.queued.waiters, waiter)
		}
		return
	}

	e.inflight = true
	var waiters []chan saveResult
	if waiter != nil {
		waiters = append(waiters, waiter)
	}
	go s.run(key, e, req, waiters)
}

// run performs one save and, on completion, issues the coalesced follow-up
// if one accumulated while it was in flight.
func (s *Scheduler) run(key draft.Key, e *entry, req Request, waiters []chan saveResult) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	saveReq := draft.SaveRequest{
		Key:      key,
		Title:    req.Title,
		Step:     req.Step,
		FormData: req.FormData,
		Metadata: req.Metadata,
	}

	s.mu.Lock()
	saveReq.ExpectedVersion = e.expected
	s.mu.Unlock()

	outcome, err := s.save(ctx, saveReq)
	cancel()

	s.mu.Lock()
	switch {
	case err != nil:
		// The payload was not stored; an identical retry must not be
		// skipped as "unchanged".
		e.hasSent = false
	case outcome != nil && outcome.Code == draft.SaveCodeSaved:
		e.expected = outcome.NewVersion
		e.lastSent = req
		e.hasSent = true
	case outcome != nil && outcome.Code == draft.SaveCodeNotFound:
		// The draft vanished underneath us; the next save recreates it.
		e.expected = 0
		e.hasSent = false
	default:
		// Conflict: nothing was applied. The expected version is left for
		// the caller to resolve explicitly.
		e.hasSent = false
	}

	if e.queued != nil && !e.unbound {
		next := e.queued
		e.queued = nil
		go s.run(key, e, next.req, next.waiters)
	} else {
		e.inflight = false
		if e.unbound && s.entries[key] == e {
			delete(s.entries, key)
		}
	}
	notify := e.notify
	suppressed := e.unbound
	s.mu.Unlock()

	for _, w := range waiters {
		w <- saveResult{outcome: outcome, err: err}
	}
	if len(waiters) == 0 && notify != nil && !suppressed {
		notify(key, outcome, err)
	}
}

// Cancel guarantees that no further save is issued for the key: the pending
// debounce timer never fires and any coalesced request is dropped, its
// waiters released with ErrCancelled. A save already in flight cannot be
// recalled; its result is discarded. Used when a session ends.
func (s *Scheduler) Cancel(key draft.Key) {
	s.mu.Lock()

	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return
	}

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.pending = nil
	e.notify = nil

	var dropped []chan saveResult
	if e.queued != nil {
		dropped = e.queued.waiters
		e.queued = nil
	}

	if e.inflight {
		e.unbound = true
	} else {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	for _, w := range dropped {
		w <- saveResult{err: ErrCancelled}
	}
}

// Close cancels every key and rejects further scheduling.
func (s *Scheduler) Close() {
	s.mu.Lock()
	keys := make([]draft.Key, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	s.closed = true
	s.mu.Unlock()

	for _, key := range keys {
		s.Cancel(key)
	}
}

// Window returns the configured debounce window.
func (s *Scheduler) Window() time.Duration {
	return s.window
}
