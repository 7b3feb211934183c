package draft

import "fmt"

// Redis key pattern helpers
//
// All Redis keys are namespaced to enable multiple Scribe deployments to
// safely coexist on a single Redis server.
//
// Key pattern: scribe:{namespace}:{entity}:{identifier}

// RecordKey returns the Redis key for a draft record hash.
// Pattern: scribe:{namespace}:draft:{draft_id}
func RecordKey(namespace, draftID string) string {
	return fmt.Sprintf("scribe:%s:draft:%s", namespace, draftID)
}

// ActiveIndexKey returns the Redis key of the active-draft pointer for a
// logical key. The value is the id of the single active draft, enforcing
// the at-most-one-active-per-key invariant.
// Pattern: scribe:{namespace}:active:{owner}:{module}:{route}:{entity_id}
func ActiveIndexKey(namespace string, key Key) string {
	return fmt.Sprintf("scribe:%s:active:%s:%s:%s:%s", namespace, key.Owner, key.Module, key.Route, key.EntityID)
}

// OwnerActiveKey returns the Redis key of the per-owner ZSET of active draft
// ids, scored by last save time in unix milliseconds. Drives ListActive and
// LatestActive ordering.
// Pattern: scribe:{namespace}:owner:{owner}:active
func OwnerActiveKey(namespace, owner string) string {
	return fmt.Sprintf("scribe:%s:owner:%s:active", namespace, owner)
}

// RecordScanPattern returns the SCAN pattern matching draft record keys with
// the given id prefix. Used for short-id resolution.
func RecordScanPattern(namespace, idPrefix string) string {
	return fmt.Sprintf("scribe:%s:draft:%s*", namespace, idPrefix)
}

// recordKeyPrefix returns the fixed prefix of record keys, used to extract
// draft ids from scanned keys.
func recordKeyPrefix(namespace string) string {
	return fmt.Sprintf("scribe:%s:draft:", namespace)
}
