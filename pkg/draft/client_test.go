package draft

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-ns")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func testKey() Key {
	return Key{Owner: "alice", Module: "leads", Route: "/leads/new"}
}

func saveRequest(key Key, formData string, expected int64) SaveRequest {
	return SaveRequest{
		Key:             key,
		Title:           "Acme Corp",
		FormData:        formData,
		ExpectedVersion: expected,
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-ns", client.namespace)
	})

	t.Run("rejects empty namespace", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "namespace cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestSaveCreate(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("creates draft at version 1", func(t *testing.T) {
		outcome, err := client.Save(ctx, saveRequest(testKey(), `{"company":"Acme Corp"}`, 0))
		require.NoError(t, err)

		assert.Equal(t, SaveCodeSaved, outcome.Code)
		assert.Equal(t, int64(1), outcome.NewVersion)
		require.NotNil(t, outcome.Draft)
		assert.Equal(t, StatusActive, outcome.Draft.Status)
		assert.Equal(t, `{"company":"Acme Corp"}`, outcome.Draft.FormData)
		assert.NoError(t, outcome.Draft.Validate())
		assert.NotZero(t, outcome.Draft.CreatedAtMs)
		assert.Equal(t, outcome.Draft.CreatedAtMs, outcome.Draft.LastSavedAtMs)
	})

	t.Run("created draft is findable by key", func(t *testing.T) {
		found, err := client.FindActive(ctx, testKey())
		require.NoError(t, err)
		assert.Equal(t, int64(1), found.Version)
		assert.Equal(t, `{"company":"Acme Corp"}`, found.FormData)
	})

	t.Run("rejects invalid key", func(t *testing.T) {
		_, err := client.Save(ctx, saveRequest(Key{Owner: "alice"}, "x", 0))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid save request")
	})

	t.Run("rejects negative expected version", func(t *testing.T) {
		_, err := client.Save(ctx, saveRequest(testKey(), "x", -1))
		assert.Error(t, err)
	})
}

func TestSaveUpdate(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	key := testKey()

	first, err := client.Save(ctx, saveRequest(key, "v1 content", 0))
	require.NoError(t, err)
	require.Equal(t, SaveCodeSaved, first.Code)

	t.Run("increments version by exactly one", func(t *testing.T) {
		outcome, err := client.Save(ctx, saveRequest(key, "v2 content", 1))
		require.NoError(t, err)
		assert.Equal(t, SaveCodeSaved, outcome.Code)
		assert.Equal(t, int64(2), outcome.NewVersion)
		assert.Equal(t, first.Draft.ID, outcome.Draft.ID, "save must land on the same record, not mint a new one")
	})

	t.Run("refreshes content and save time", func(t *testing.T) {
		found, err := client.FindActive(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "v2 content", found.FormData)
		assert.GreaterOrEqual(t, found.LastSavedAtMs, found.CreatedAtMs)
	})

	t.Run("stale version yields conflict and no write", func(t *testing.T) {
		outcome, err := client.Save(ctx, saveRequest(key, "stale content", 1))
		require.NoError(t, err)
		assert.Equal(t, SaveCodeConflict, outcome.Code)
		assert.Equal(t, int64(2), outcome.ServerVersion)

		found, err := client.FindActive(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "v2 content", found.FormData, "rejected save must not change stored content")
		assert.Equal(t, int64(2), found.Version, "rejected save must not change stored version")
	})

	t.Run("forced overwrite with server version wins", func(t *testing.T) {
		outcome, err := client.Save(ctx, saveRequest(key, "forced content", 2))
		require.NoError(t, err)
		assert.Equal(t, SaveCodeSaved, outcome.Code)
		assert.Equal(t, int64(3), outcome.NewVersion)
	})
}

func TestSaveNotFound(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	// Non-zero expected version against a key with no active draft: the
	// draft was completed or discarded underneath the writer.
	outcome, err := client.Save(ctx, saveRequest(testKey(), "content", 3))
	require.NoError(t, err)
	assert.Equal(t, SaveCodeNotFound, outcome.Code)

	_, err = client.FindActive(ctx, testKey())
	assert.True(t, IsNotFound(err), "not-found save must not create a draft")
}

func TestAtMostOneActivePerKey(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	key := testKey()

	var id string
	expected := int64(0)
	for i := 0; i < 5; i++ {
		outcome, err := client.Save(ctx, saveRequest(key, "content", expected))
		require.NoError(t, err)
		require.Equal(t, SaveCodeSaved, outcome.Code)
		if id == "" {
			id = outcome.Draft.ID
		} else {
			assert.Equal(t, id, outcome.Draft.ID)
		}
		expected = outcome.NewVersion
	}

	drafts, err := client.ListActive(ctx, "alice", "")
	require.NoError(t, err)
	assert.Len(t, drafts, 1, "repeated saves on one key must keep exactly one active draft")
	assert.Equal(t, int64(5), drafts[0].Version)
}

func TestFindActive(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("returns ErrNotFound for unknown key", func(t *testing.T) {
		_, err := client.FindActive(ctx, testKey())
		assert.True(t, IsNotFound(err))
	})

	t.Run("distinguishes keys by entity id", func(t *testing.T) {
		keyNew := testKey()
		keyEdit := Key{Owner: "alice", Module: "leads", Route: "/leads/42/edit", EntityID: "42"}

		_, err := client.Save(ctx, saveRequest(keyNew, "new record", 0))
		require.NoError(t, err)
		_, err = client.Save(ctx, saveRequest(keyEdit, "edit record", 0))
		require.NoError(t, err)

		found, err := client.FindActive(ctx, keyEdit)
		require.NoError(t, err)
		assert.Equal(t, "edit record", found.FormData)
	})
}

func TestListActive(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	seed := []struct {
		key      Key
		formData string
	}{
		{Key{Owner: "alice", Module: "leads", Route: "/leads/new"}, "lead draft"},
		{Key{Owner: "alice", Module: "pricing_plan", Route: "/plans/new"}, "plan draft"},
		{Key{Owner: "bob", Module: "leads", Route: "/leads/new"}, "bob draft"},
	}
	for _, s := range seed {
		_, err := client.Save(ctx, saveRequest(s.key, s.formData, 0))
		require.NoError(t, err)
		// Distinct save times so recency ordering is deterministic
		time.Sleep(2 * time.Millisecond)
	}

	t.Run("lists only the owner's drafts", func(t *testing.T) {
		drafts, err := client.ListActive(ctx, "alice", "")
		require.NoError(t, err)
		require.Len(t, drafts, 2)
	})

	t.Run("orders most recently saved first", func(t *testing.T) {
		drafts, err := client.ListActive(ctx, "alice", "")
		require.NoError(t, err)
		assert.Equal(t, "plan draft", drafts[0].FormData)
		assert.Equal(t, "lead draft", drafts[1].FormData)
	})

	t.Run("filters by module", func(t *testing.T) {
		drafts, err := client.ListActive(ctx, "alice", "leads")
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, "lead draft", drafts[0].FormData)
	})

	t.Run("empty result for unknown owner", func(t *testing.T) {
		drafts, err := client.ListActive(ctx, "carol", "")
		require.NoError(t, err)
		assert.Empty(t, drafts)
	})

	t.Run("rejects empty owner", func(t *testing.T) {
		_, err := client.ListActive(ctx, "", "")
		assert.Error(t, err)
	})
}

func TestLatestActive(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("returns ErrNotFound with no drafts", func(t *testing.T) {
		_, err := client.LatestActive(ctx, "alice")
		assert.True(t, IsNotFound(err))
	})

	t.Run("returns most recently saved draft", func(t *testing.T) {
		_, err := client.Save(ctx, saveRequest(Key{Owner: "alice", Module: "leads", Route: "/leads/new"}, "older", 0))
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
		_, err = client.Save(ctx, saveRequest(Key{Owner: "alice", Module: "payroll", Route: "/payroll/7", EntityID: "7"}, "newer", 0))
		require.NoError(t, err)

		latest, err := client.LatestActive(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "newer", latest.FormData)
		assert.Equal(t, "payroll", latest.Module)
	})
}

func TestComplete(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	key := testKey()

	outcome, err := client.Save(ctx, saveRequest(key, "content", 0))
	require.NoError(t, err)
	id := outcome.Draft.ID

	t.Run("completed draft leaves resume and listing queries", func(t *testing.T) {
		require.NoError(t, client.Complete(ctx, id))

		_, err := client.FindActive(ctx, key)
		assert.True(t, IsNotFound(err))

		drafts, err := client.ListActive(ctx, "alice", "")
		require.NoError(t, err)
		assert.Empty(t, drafts)

		_, err = client.LatestActive(ctx, "alice")
		assert.True(t, IsNotFound(err))
	})

	t.Run("record is retained for audit", func(t *testing.T) {
		d, err := client.GetDraft(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, d.Status)
		assert.Equal(t, "content", d.FormData)
	})

	t.Run("idempotent on repeat", func(t *testing.T) {
		require.NoError(t, client.Complete(ctx, id))
		d, err := client.GetDraft(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, d.Status)
	})

	t.Run("no-op on missing draft", func(t *testing.T) {
		assert.NoError(t, client.Complete(ctx, "3f2a91bc-7c44-4f6e-9b2a-0c5d8f1e6a77"))
	})
}

func TestDiscard(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	key := testKey()

	outcome, err := client.Save(ctx, saveRequest(key, "abandoned", 0))
	require.NoError(t, err)
	id := outcome.Draft.ID

	t.Run("discarded draft leaves resume queries", func(t *testing.T) {
		require.NoError(t, client.Discard(ctx, id))
		_, err := client.FindActive(ctx, key)
		assert.True(t, IsNotFound(err))
	})

	t.Run("idempotent on repeat", func(t *testing.T) {
		require.NoError(t, client.Discard(ctx, id))
	})

	t.Run("fresh save on same key starts over at version 1", func(t *testing.T) {
		outcome, err := client.Save(ctx, saveRequest(key, "fresh start", 0))
		require.NoError(t, err)
		assert.Equal(t, SaveCodeSaved, outcome.Code)
		assert.Equal(t, int64(1), outcome.NewVersion)
		assert.NotEqual(t, id, outcome.Draft.ID)
	})

	t.Run("discard does not resurrect as complete", func(t *testing.T) {
		require.NoError(t, client.Complete(ctx, id))
		d, err := client.GetDraft(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusDiscarded, d.Status, "terminal status must not change")
	})
}

func TestConflictBetweenTwoSessions(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	key := testKey()

	// Both sessions observe version 1
	outcome, err := client.Save(ctx, saveRequest(key, "base", 0))
	require.NoError(t, err)
	require.Equal(t, int64(1), outcome.NewVersion)

	// Session A wins the race
	a, err := client.Save(ctx, saveRequest(key, "from A", 1))
	require.NoError(t, err)
	assert.Equal(t, SaveCodeSaved, a.Code)
	assert.Equal(t, int64(2), a.NewVersion)

	// Session B arrives with the now-stale version
	b, err := client.Save(ctx, saveRequest(key, "from B", 1))
	require.NoError(t, err)
	assert.Equal(t, SaveCodeConflict, b.Code)
	assert.Equal(t, int64(2), b.ServerVersion)

	found, err := client.FindActive(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "from A", found.FormData, "B's payload must not be applied")
}

func TestGetDraft(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("returns ErrNotFound for unknown id", func(t *testing.T) {
		_, err := client.GetDraft(ctx, "3f2a91bc-7c44-4f6e-9b2a-0c5d8f1e6a77")
		assert.True(t, IsNotFound(err))
	})

	t.Run("retrieves full record", func(t *testing.T) {
		req := saveRequest(testKey(), "content", 0)
		req.Metadata = map[string]string{"source": "import"}
		req.Step = "contact"
		outcome, err := client.Save(ctx, req)
		require.NoError(t, err)

		d, err := client.GetDraft(ctx, outcome.Draft.ID)
		require.NoError(t, err)
		assert.Equal(t, outcome.Draft, d)
	})
}

func TestScanDrafts(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	outcome, err := client.Save(ctx, saveRequest(testKey(), "content", 0))
	require.NoError(t, err)
	id := outcome.Draft.ID

	t.Run("finds by prefix", func(t *testing.T) {
		matches, err := client.ScanDrafts(ctx, id[:8])
		require.NoError(t, err)
		assert.Equal(t, []string{id}, matches)
	})

	t.Run("empty for unknown prefix", func(t *testing.T) {
		matches, err := client.ScanDrafts(ctx, "zzzzzzzz")
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}
