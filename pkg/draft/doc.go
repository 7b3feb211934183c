// Package draft provides the keyed, versioned draft record store used by the
// Scribe autosave core. A draft is a persisted snapshot of in-progress form
// content, identified by the (owner, module, route, entity) key of the form
// instance that produced it and stamped with a monotonically increasing
// version number.
//
// The package defines the Repository contract consumed by the autosave core
// (scheduler, session, arbitrator) and a production Redis implementation of
// it. Concurrent sessions editing the same logical draft coordinate purely
// through the version stamp: every save carries the version the writer last
// observed, and the store applies it only if that version is still current.
// There are no locks - a stale writer gets a conflict outcome carrying the
// store's version, never a silent overwrite.
//
// Redis layout (all keys namespaced to allow several deployments to share a
// server):
//
//	scribe:{ns}:draft:{id}                           hash - the full record
//	scribe:{ns}:active:{owner}:{module}:{route}:{e}  string - active draft id for a key
//	scribe:{ns}:owner:{owner}:active                 zset - active ids by last save time
//
// The active index enforces the store's central invariant: at most one draft
// with status "active" exists per key. Saves find-or-create through the
// index rather than minting a new id per write, so repeated autosaves of one
// form instance always land on the same record.
//
// Form content (FormData) and Metadata are opaque to this package. Only
// identity, version and status participate in its logic.
package draft
