package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/grant-portal/internal/testutil"
)

func TestRedisCacheRepo_SetGetDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	repo := NewRedisCacheRepo(client)
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "profile:c1", []byte(`{"id":"u1"}`), 5*time.Minute))

		got, err := repo.Get(ctx, "profile:c1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"u1"}`, string(got))

		ttl := client.TTL(ctx, DefaultCachePrefix+"profile:c1").Val()
		assert.True(t, ttl > 0 && ttl <= 5*time.Minute)
	})

	t.Run("zero ttl does not expire", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "profile:c2", []byte("x"), 0))
		assert.Equal(t, time.Duration(-1), client.TTL(ctx, DefaultCachePrefix+"profile:c2").Val())
	})

	t.Run("missing key", func(t *testing.T) {
		got, err := repo.Get(ctx, "profile:missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "profile:c3", []byte("x"), time.Minute))

		deleted, err := repo.Delete(ctx, "profile:c3")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, "profile:c3")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("prefix isolates keys", func(t *testing.T) {
		other := NewRedisCacheRepoWithPrefix(client, "other:")
		require.NoError(t, other.Set(ctx, "profile:c1", []byte("other"), time.Minute))

		got, err := repo.Get(ctx, "profile:c1")
		require.NoError(t, err)
		assert.NotEqual(t, "other", string(got))
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, repo.Health(ctx))
	})
}

func TestRedisCacheRepo_EmptyKey(t *testing.T) {
	// Validation runs before any Redis call, so a nil client is fine.
	repo := NewRedisCacheRepo(nil)
	ctx := context.Background()

	err := repo.Set(ctx, "", []byte("v"), time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key cannot be empty")

	_, err = repo.Get(ctx, "")
	assert.Error(t, err)

	_, err = repo.Delete(ctx, "")
	assert.Error(t, err)
}
