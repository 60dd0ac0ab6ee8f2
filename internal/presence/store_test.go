package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return NewRedisStore(client, ""), server
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("online then lookup", func(t *testing.T) {
		store, server := newTestStore(t)

		require.NoError(t, store.Online(ctx, "user-a", "node-1", time.Minute))

		nodeId, online, err := store.Lookup(ctx, "user-a")
		require.NoError(t, err)
		assert.True(t, online)
		assert.Equal(t, "node-1", nodeId)
		assert.Equal(t, time.Minute, server.TTL("relay:presence:user-a"))
	})

	t.Run("unknown user is offline", func(t *testing.T) {
		store, _ := newTestStore(t)

		_, online, err := store.Lookup(ctx, "user-a")

		require.NoError(t, err)
		assert.False(t, online)
	})

	t.Run("entries expire", func(t *testing.T) {
		store, server := newTestStore(t)
		require.NoError(t, store.Online(ctx, "user-a", "node-1", time.Minute))

		server.FastForward(2 * time.Minute)

		_, online, err := store.Lookup(ctx, "user-a")
		require.NoError(t, err)
		assert.False(t, online)
	})

	t.Run("offline removes only this node's entry", func(t *testing.T) {
		store, _ := newTestStore(t)
		require.NoError(t, store.Online(ctx, "user-a", "node-2", time.Minute))

		require.NoError(t, store.Offline(ctx, "user-a", "node-1"))

		nodeId, online, err := store.Lookup(ctx, "user-a")
		require.NoError(t, err)
		assert.True(t, online)
		assert.Equal(t, "node-2", nodeId)

		require.NoError(t, store.Offline(ctx, "user-a", "node-2"))

		_, online, err = store.Lookup(ctx, "user-a")
		require.NoError(t, err)
		assert.False(t, online)
	})

	t.Run("refresh extends every entry", func(t *testing.T) {
		store, server := newTestStore(t)
		require.NoError(t, store.Online(ctx, "user-a", "node-1", time.Second))

		require.NoError(t, store.Refresh(ctx, []string{"user-a", "user-b"}, "node-1", time.Hour))

		assert.Equal(t, time.Hour, server.TTL("relay:presence:user-a"))
		assert.Equal(t, time.Hour, server.TTL("relay:presence:user-b"))
		assert.NoError(t, store.Refresh(ctx, nil, "node-1", time.Hour))
	})
}
