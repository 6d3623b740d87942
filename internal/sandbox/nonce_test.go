package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestMemoryNonceStore(t *testing.T) {
	store := NewMemoryNonceStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	fresh, err := store.Remember(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.Remember(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh, "second use within ttl must be refused")

	fresh, err = store.Remember(ctx, "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	now = now.Add(2 * time.Minute)
	fresh, err = store.Remember(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh, "expired id may be used again")

	// The sweep dropped b
	assert.Equal(t, 1, store.Len())
}

func TestRedisNonceStore(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisNonceStoreWithClient(client)
	defer store.Close()
	ctx := context.Background()

	fresh, err := store.Remember(ctx, "call-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.Remember(ctx, "call-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)

	assert.True(t, mr.Exists("pokepay:sandbox:nonce:call-1"))

	mr.FastForward(2 * time.Minute)
	fresh, err = store.Remember(ctx, "call-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestRedisNonceStore_Unavailable(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisNonceStoreWithClient(client)
	defer store.Close()

	mr.Close()
	_, err := store.Remember(context.Background(), "call-1", time.Minute)
	assert.Error(t, err)
}

func TestNewRedisNonceStore(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisNonceStore("redis://" + mr.Addr())
	require.NoError(t, err)
	defer store.Close()

	_, err = NewRedisNonceStore("not a url")
	assert.Error(t, err)
}

func TestSandbox_RedisNonces(t *testing.T) {
	_, client := setupTestRedis(t)
	sb := newTestSandbox(t, func(c *Config) {
		c.Nonces = NewRedisNonceStoreWithClient(client)
	})
	sbClient := sb.client(t, testClientID, testSecret)

	resp, err := sbClient.Echo(context.Background(), "via redis")
	require.NoError(t, err)
	assert.Equal(t, "via redis", resp.String("message"))
}
