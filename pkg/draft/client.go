package draft

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// casRetries bounds how many times a save transaction is re-run after being
// aborted by a concurrent write to the watched keys. Aborts only happen when
// another writer touches the same logical key in the same instant, so the
// loop settles almost immediately in practice.
const casRetries = 5

// Client is the Redis implementation of Repository.
// All keys are automatically namespaced. The client is thread-safe and can
// be used concurrently from multiple goroutines.
type Client struct {
	rdb       *redis.Client
	namespace string
}

// Compile-time check that Client satisfies the Repository contract.
var _ Repository = (*Client)(nil)

// NewClient creates a draft store client for the given namespace.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - namespace: deployment identifier used to prefix every key (must not be empty)
//
// Returns an error if namespace is empty.
func NewClient(redisOpts *redis.Options, namespace string) (*Client, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	return &Client{
		rdb:       redis.NewClient(redisOpts),
		namespace: namespace,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Save upserts the draft at req.Key under an atomic version check.
//
// The check runs inside a WATCH/MULTI transaction over the key's active
// index and the record it points at: the stored version is read, compared
// against req.ExpectedVersion, and the write is queued only on a match. Any
// concurrent write to the watched keys between the read and EXEC aborts the
// transaction, which is then retried, so a stale version can never slip
// through. Conflict and not-found are reported in the outcome, not as
// errors.
func (c *Client) Save(ctx context.Context, req SaveRequest) (*SaveOutcome, error) {
	if err := req.Key.Validate(); err != nil {
		return nil, fmt.Errorf("invalid save request: %w", err)
	}
	if req.ExpectedVersion < 0 {
		return nil, fmt.Errorf("invalid save request: expected version must be >= 0, got %d", req.ExpectedVersion)
	}

	idxKey := ActiveIndexKey(c.namespace, req.Key)

	var outcome *SaveOutcome
	txn := func(tx *redis.Tx) error {
		id, err := tx.Get(ctx, idxKey).Result()
		if err == redis.Nil {
			return c.createDraft(ctx, tx, req, idxKey, &outcome)
		}
		if err != nil {
			return fmt.Errorf("failed to read active index: %w", err)
		}
		return c.updateDraft(ctx, tx, req, id, &outcome)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		outcome = nil
		err := c.rdb.Watch(ctx, txn, idxKey)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		return outcome, nil
	}

	return nil, fmt.Errorf("save for key %s did not settle after %d attempts", req.Key, casRetries)
}

// createDraft handles the save path where no active draft exists at the key.
// An expected version of zero creates a fresh record at version 1; anything
// else means the writer's draft vanished underneath it (completed or
// discarded by another session), reported as not-found.
func (c *Client) createDraft(ctx context.Context, tx *redis.Tx, req SaveRequest, idxKey string, out **SaveOutcome) error {
	if req.ExpectedVersion != 0 {
		*out = &SaveOutcome{Code: SaveCodeNotFound}
		return nil
	}

	now := time.Now().UnixMilli()
	d := &Draft{
		ID:            uuid.New().String(),
		Owner:         req.Key.Owner,
		Module:        req.Key.Module,
		Route:         req.Key.Route,
		EntityID:      req.Key.EntityID,
		Title:         req.Title,
		Step:          req.Step,
		FormData:      req.FormData,
		Metadata:      req.Metadata,
		Version:       1,
		Status:        StatusActive,
		CreatedAtMs:   now,
		LastSavedAtMs: now,
	}

	hash, err := DraftToHash(d)
	if err != nil {
		return fmt.Errorf("failed to serialize draft: %w", err)
	}

	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, RecordKey(c.namespace, d.ID), hash)
		pipe.Set(ctx, idxKey, d.ID, 0)
		pipe.ZAdd(ctx, OwnerActiveKey(c.namespace, d.Owner), redis.Z{Score: float64(now), Member: d.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create draft: %w", err)
	}

	*out = &SaveOutcome{Code: SaveCodeSaved, Draft: d, NewVersion: d.Version}
	return nil
}

// updateDraft handles the save path where the active index points at an
// existing record. The record key is added to the WATCH set before the
// version is read, so a concurrent writer advancing it aborts this
// transaction instead of being overwritten.
func (c *Client) updateDraft(ctx context.Context, tx *redis.Tx, req SaveRequest, id string, out **SaveOutcome) error {
	recKey := RecordKey(c.namespace, id)

	if err := tx.Watch(ctx, recKey).Err(); err != nil {
		return fmt.Errorf("failed to watch draft record: %w", err)
	}

	hashData, err := tx.HGetAll(ctx, recKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read draft from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return fmt.Errorf("active index for key %s points at missing draft %s", req.Key, id)
	}

	d, err := HashToDraft(hashData)
	if err != nil {
		return fmt.Errorf("failed to deserialize draft: %w", err)
	}

	if d.Version != req.ExpectedVersion {
		*out = &SaveOutcome{Code: SaveCodeConflict, ServerVersion: d.Version}
		return nil
	}

	now := time.Now().UnixMilli()
	d.Title = req.Title
	d.Step = req.Step
	d.FormData = req.FormData
	d.Metadata = req.Metadata
	d.Version++
	d.LastSavedAtMs = now

	hash, err := DraftToHash(d)
	if err != nil {
		return fmt.Errorf("failed to serialize draft: %w", err)
	}

	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, recKey, hash)
		pipe.ZAdd(ctx, OwnerActiveKey(c.namespace, d.Owner), redis.Z{Score: float64(now), Member: d.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}

	*out = &SaveOutcome{Code: SaveCodeSaved, Draft: d, NewVersion: d.Version}
	return nil
}

// FindActive returns the active draft at key, or ErrNotFound.
func (c *Client) FindActive(ctx context.Context, key Key) (*Draft, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}

	id, err := c.rdb.Get(ctx, ActiveIndexKey(c.namespace, key)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("no active draft at key %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read active index: %w", err)
	}

	d, err := c.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDraft retrieves a draft by id regardless of status.
// Returns ErrNotFound if no record exists.
func (c *Client) GetDraft(ctx context.Context, draftID string) (*Draft, error) {
	hashData, err := c.rdb.HGetAll(ctx, RecordKey(c.namespace, draftID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read draft from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, fmt.Errorf("draft %s: %w", draftID, ErrNotFound)
	}

	d, err := HashToDraft(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize draft: %w", err)
	}

	return d, nil
}

// ListActive returns the owner's active drafts, most recently saved first.
// An empty module matches all modules. Records that vanish between the index
// read and the fetch are skipped.
func (c *Client) ListActive(ctx context.Context, owner, module string) ([]*Draft, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner cannot be empty")
	}

	ids, err := c.rdb.ZRevRange(ctx, OwnerActiveKey(c.namespace, owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read owner index: %w", err)
	}

	drafts := make([]*Draft, 0, len(ids))
	for _, id := range ids {
		d, err := c.GetDraft(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if module != "" && d.Module != module {
			continue
		}
		drafts = append(drafts, d)
	}

	return drafts, nil
}

// LatestActive returns the owner's most recently saved active draft across
// all modules, or ErrNotFound.
func (c *Client) LatestActive(ctx context.Context, owner string) (*Draft, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner cannot be empty")
	}

	ids, err := c.rdb.ZRevRange(ctx, OwnerActiveKey(c.namespace, owner), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read owner index: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no active drafts for owner %s: %w", owner, ErrNotFound)
	}

	return c.GetDraft(ctx, ids[0])
}

// Complete marks the draft completed and removes it from the active indexes.
// Calling it on a missing or already-terminal draft is a no-op.
func (c *Client) Complete(ctx context.Context, draftID string) error {
	return c.finish(ctx, draftID, StatusCompleted)
}

// Discard marks the draft discarded and removes it from the active indexes.
// Calling it on a missing or already-terminal draft is a no-op.
func (c *Client) Discard(ctx context.Context, draftID string) error {
	return c.finish(ctx, draftID, StatusDiscarded)
}

// finish transitions a draft to a terminal status. The record key is watched
// so a concurrent save neither resurrects the draft nor loses its write
// silently: whichever transaction commits second is aborted and re-run.
func (c *Client) finish(ctx context.Context, draftID string, status Status) error {
	recKey := RecordKey(c.namespace, draftID)

	txn := func(tx *redis.Tx) error {
		hashData, err := tx.HGetAll(ctx, recKey).Result()
		if err != nil {
			return fmt.Errorf("failed to read draft from Redis: %w", err)
		}

		// Idempotent: missing drafts and repeated calls are no-ops.
		if len(hashData) == 0 {
			return nil
		}

		d, err := HashToDraft(hashData)
		if err != nil {
			return fmt.Errorf("failed to deserialize draft: %w", err)
		}
		if d.Status.Terminal() {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, recKey, "status", string(status))
			pipe.Del(ctx, ActiveIndexKey(c.namespace, d.Key()))
			pipe.ZRem(ctx, OwnerActiveKey(c.namespace, d.Owner), d.ID)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to finish draft: %w", err)
		}
		return nil
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		err := c.rdb.Watch(ctx, txn, recKey)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}

	return fmt.Errorf("finish for draft %s did not settle after %d attempts", draftID, casRetries)
}

// ScanDrafts returns the ids of all drafts whose id starts with the given
// prefix. Uses Redis SCAN to iterate without blocking the server.
func (c *Client) ScanDrafts(ctx context.Context, idPrefix string) ([]string, error) {
	pattern := RecordScanPattern(c.namespace, idPrefix)
	prefix := recordKeyPrefix(c.namespace)

	var ids []string
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan drafts: %w", err)
	}

	return ids, nil
}
