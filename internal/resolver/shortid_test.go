package resolver

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/scribe/pkg/draft"
)

func setupResolver(t *testing.T) (*draft.Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := draft.NewClient(&redis.Options{Addr: mr.Addr()}, "test-ns")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

// seedRecord plants a draft record with a chosen id, bypassing the client
// so prefix-collision cases can be constructed deterministically.
func seedRecord(t *testing.T, mr *miniredis.Miniredis, id string) {
	t.Helper()
	mr.HSet(draft.RecordKey("test-ns", id),
		"id", id,
		"owner", "alice",
		"module", "leads",
		"route", "/leads/new",
		"version", "1",
		"status", "active",
	)
}

func TestResolveFullUUID(t *testing.T) {
	client, mr := setupResolver(t)
	ctx := context.Background()
	id := "3f2a91bc-7c44-4f6e-9b2a-0c5d8f1e6a77"
	seedRecord(t, mr, id)

	t.Run("existing uuid passes through", func(t *testing.T) {
		resolved, err := ResolveDraftID(ctx, client, id)
		require.NoError(t, err)
		assert.Equal(t, id, resolved)
	})

	t.Run("missing uuid is rejected", func(t *testing.T) {
		_, err := ResolveDraftID(ctx, client, "00000000-0000-4000-8000-000000000000")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "draft not found")
	})
}

func TestResolveShortPrefix(t *testing.T) {
	client, mr := setupResolver(t)
	ctx := context.Background()
	id := "3f2a91bc-7c44-4f6e-9b2a-0c5d8f1e6a77"
	seedRecord(t, mr, id)

	resolved, err := ResolveDraftID(ctx, client, "3f2a91")
	require.NoError(t, err)
	assert.Equal(t, id, resolved)
}

func TestResolveTooShort(t *testing.T) {
	client, _ := setupResolver(t)
	_, err := ResolveDraftID(context.Background(), client, "3f2a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 6 characters")
}

func TestResolveNoMatch(t *testing.T) {
	client, _ := setupResolver(t)
	_, err := ResolveDraftID(context.Background(), client, "ffffff")
	require.Error(t, err)

	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestResolveAmbiguous(t *testing.T) {
	client, mr := setupResolver(t)
	seedRecord(t, mr, "3f2a91bc-7c44-4f6e-9b2a-0c5d8f1e6a77")
	seedRecord(t, mr, "3f2a91ee-0000-4000-8000-000000000000")

	_, err := ResolveDraftID(context.Background(), client, "3f2a91")
	require.Error(t, err)

	var ambiguous *AmbiguousError
	require.ErrorAs(t, err, &ambiguous)
	assert.Len(t, ambiguous.Matches, 2)

	// A longer prefix disambiguates
	resolved, err := ResolveDraftID(context.Background(), client, "3f2a91bc")
	require.NoError(t, err)
	assert.Equal(t, "3f2a91bc-7c44-4f6e-9b2a-0c5d8f1e6a77", resolved)
}
