package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "tao:"), mr
}

func TestRedisStore_SetGet(t *testing.T) {
	store, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "dividends:18:ACCT_A", []byte(`{"a":1}`), 2*time.Minute))

	data, ok, err := store.Get(ctx, "dividends:18:ACCT_A")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(data))

	// prefix applied and TTL set
	assert.True(t, mr.Exists("tao:dividends:18:ACCT_A"))
	assert.Equal(t, 2*time.Minute, mr.TTL("tao:dividends:18:ACCT_A"))
}

func TestRedisStore_Expiry(t *testing.T) {
	store, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	existed, err := store.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestRedisStore_UnavailableServer(t *testing.T) {
	store, mr := setupRedis(t)
	mr.Close()

	_, _, err := store.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, store.Ping(context.Background()))
}

func TestNewRedisClient(t *testing.T) {
	client, err := NewRedisClient("redis://localhost:6379/2")
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, 2, client.Options().DB)

	_, err = NewRedisClient("::not a url")
	assert.Error(t, err)
}
