package draft

import (
	"fmt"

	"github.com/google/uuid"
)

// Draft represents a persisted, versioned snapshot of in-progress form
// content. The store assigns ID and Version; callers never mint either.
type Draft struct {
	ID            string            `json:"id"`                    // UUID assigned by the store on first save
	Owner         string            `json:"owner"`                 // Actor identity the draft belongs to
	Module        string            `json:"module"`                // Form family tag (e.g. "leads", "pricing_plan")
	Route         string            `json:"route"`                 // View path the draft originated from
	EntityID      string            `json:"entity_id,omitempty"`   // Backing record id; empty means "new record"
	Title         string            `json:"title,omitempty"`       // Display label, may be empty
	Step          string            `json:"step,omitempty"`        // Optional position marker (wizard step, active tab)
	FormData      string            `json:"form_data"`             // Opaque form content, never interpreted here
	Metadata      map[string]string `json:"metadata,omitempty"`    // Opaque caller metadata
	Version       int64             `json:"version"`               // Incrementing version number (starts at 1)
	Status        Status            `json:"status"`                // Lifecycle state
	CreatedAtMs   int64             `json:"created_at_ms"`         // Unix ms of the first save
	LastSavedAtMs int64             `json:"last_saved_at_ms"`      // Unix ms of the most recent accepted save
}

// Key returns the logical identity of the draft.
func (d *Draft) Key() Key {
	return Key{Owner: d.Owner, Module: d.Module, Route: d.Route, EntityID: d.EntityID}
}

// Key identifies which logical draft a session is editing. At most one
// active draft exists per key at any time.
type Key struct {
	Owner    string `json:"owner"`
	Module   string `json:"module"`
	Route    string `json:"route"`
	EntityID string `json:"entity_id,omitempty"` // empty means a new, not-yet-created record
}

// String renders the key for error messages and logs.
func (k Key) String() string {
	if k.EntityID == "" {
		return fmt.Sprintf("%s/%s/%s", k.Owner, k.Module, k.Route)
	}
	return fmt.Sprintf("%s/%s/%s/%s", k.Owner, k.Module, k.Route, k.EntityID)
}

// Validate checks that the key's required components are present.
// EntityID may be empty: a draft for a not-yet-created record has none.
func (k Key) Validate() error {
	if k.Owner == "" {
		return fmt.Errorf("key owner cannot be empty")
	}
	if k.Module == "" {
		return fmt.Errorf("key module cannot be empty")
	}
	if k.Route == "" {
		return fmt.Errorf("key route cannot be empty")
	}
	return nil
}

// Status defines the lifecycle state of a draft.
// Active drafts are resumable; completed and discarded drafts are terminal
// and excluded from every find/list/latest query.
type Status string

const (
	// StatusActive indicates the draft holds unfinalized work and is resumable
	StatusActive Status = "active"

	// StatusCompleted indicates the owning form's real submission succeeded;
	// the draft is retained for audit but never resumed
	StatusCompleted Status = "completed"

	// StatusDiscarded indicates the actor explicitly abandoned the draft
	StatusDiscarded Status = "discarded"
)

// Validate checks if the Status is a valid enum value.
func (s Status) Validate() error {
	switch s {
	case StatusActive, StatusCompleted, StatusDiscarded:
		return nil
	default:
		return fmt.Errorf("unknown draft status: %q", s)
	}
}

// Terminal reports whether the status admits no further saves.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusDiscarded
}

// Validate checks if the Draft has valid field values.
// Returns an error if any validation fails.
func (d *Draft) Validate() error {
	if !isValidUUID(d.ID) {
		return fmt.Errorf("invalid draft ID: not a valid UUID")
	}

	if err := d.Key().Validate(); err != nil {
		return fmt.Errorf("invalid draft key: %w", err)
	}

	if d.Version < 1 {
		return fmt.Errorf("invalid version: must be >= 1, got %d", d.Version)
	}

	if err := d.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
