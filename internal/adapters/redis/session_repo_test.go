package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/ports"
	"github.com/target/grant-portal/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func testSession(id string, ttl time.Duration) domainauth.Session {
	return domainauth.Session{
		ID:          id,
		AccessToken: "token-" + id,
		ExpiresAt:   time.Now().Add(ttl),
		Identity: domainauth.Identity{
			ID:       "user-123",
			Email:    "user@example.com",
			Metadata: domainauth.IdentityMetadata{FullName: "Test User", Role: "reviewer"},
		},
	}
}

func TestSessionRepository_SaveAndGet(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	repo := NewSessionRepository(client)
	ctx := context.Background()
	sess := testSession("test-session-1", 30*time.Minute)

	require.NoError(t, repo.Save(ctx, sess))

	got, err := repo.Get(ctx, "test-session-1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, sess.AccessToken, got.AccessToken)
	assert.Equal(t, sess.Identity, got.Identity)
	assert.WithinDuration(t, sess.ExpiresAt, got.ExpiresAt, time.Second)
}

func TestSessionRepository_GetMissing(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	repo := NewSessionRepository(client)

	_, err := repo.Get(context.Background(), "non-existent")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, err = repo.Get(context.Background(), "")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSessionRepository_Delete(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	repo := NewSessionRepository(client)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testSession("test-session-delete", 30*time.Minute)))
	require.NoError(t, repo.Delete(ctx, "test-session-delete"))

	_, err := repo.Get(ctx, "test-session-delete")
	assert.ErrorIs(t, err, ports.ErrNotFound)
	assert.NoError(t, repo.Delete(ctx, ""))
}

func TestSessionRepository_TTLExpiration(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	repo := NewSessionRepository(client)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testSession("test-session-ttl", 100*time.Millisecond)))
	time.Sleep(200 * time.Millisecond)

	_, err := repo.Get(ctx, "test-session-ttl")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSessionRepository_CustomPrefix(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	repo := NewSessionRepositoryWithPrefix(client, "test-prefix:")
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testSession("prefix-test", 30*time.Minute)))
	assert.Equal(t, int64(1), client.Exists(ctx, "test-prefix:prefix-test").Val())
}

func TestSessionRepository_SaveRejectsInvalid(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	repo := NewSessionRepository(client)
	ctx := context.Background()

	err := repo.Save(ctx, testSession("", 30*time.Minute))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session ID cannot be empty")

	err = repo.Save(ctx, testSession("expired-session", -time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session is expired")
}

func TestBindingRepository(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	repo := NewBindingRepository(client)
	ctx := context.Background()

	_, err := repo.Lookup(ctx, "client-1")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	require.NoError(t, repo.Bind(ctx, "client-1", "session-a", time.Minute))
	got, err := repo.Lookup(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "session-a", got)

	require.NoError(t, repo.Bind(ctx, "client-1", "session-b", time.Minute))
	got, err = repo.Lookup(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "session-b", got)

	require.NoError(t, repo.Unbind(ctx, "client-1"))
	_, err = repo.Lookup(ctx, "client-1")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	assert.Error(t, repo.Bind(ctx, "", "session-a", time.Minute))
	assert.Error(t, repo.Bind(ctx, "client-1", "session-a", 0))
}
