package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestKV(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisKV(client)
}

func TestRedisKV_SetGetDel(t *testing.T) {
	mr, kv := setupTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "meds_bob", `[{"time":"08:00","desc":"Aspirin"}]`))
	assert.True(t, mr.Exists("meds_bob"))
	// 无过期时间
	assert.Equal(t, int64(0), int64(mr.TTL("meds_bob")))

	val, err := kv.Get(ctx, "meds_bob")
	require.NoError(t, err)
	assert.Equal(t, `[{"time":"08:00","desc":"Aspirin"}]`, val)

	require.NoError(t, kv.Del(ctx, "meds_bob"))
	_, err = kv.Get(ctx, "meds_bob")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_GetMiss(t *testing.T) {
	_, kv := setupTestKV(t)

	_, err := kv.Get(context.Background(), "events_nobody")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_DelMissingKeyIsNotAnError(t *testing.T) {
	_, kv := setupTestKV(t)
	assert.NoError(t, kv.Del(context.Background(), "events_nobody"))
}

func TestRedisKV_ConnectionError(t *testing.T) {
	mr, kv := setupTestKV(t)
	mr.Close()

	_, err := kv.Get(context.Background(), "hub_users")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}
