package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSONToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	require.NoError(t, Ping(ctx, client))

	id, err := PublishJSONToStream(ctx, client, "test:stream", map[string]any{"user_name": "bob", "kind": "fall"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, "test:stream", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"user_name":"bob","kind":"fall"}`, msgs[0].Values["data"].(string))
	assert.NotEmpty(t, msgs[0].Values["timestamp"])
}

func TestToStreamValue(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{"x", "x"},
		{[]byte("y"), "y"},
		{42, "42"},
		{int64(7), "7"},
		{1.5, "1.5"},
		{true, "true"},
		{map[string]int{"a": 1}, `{"a":1}`},
	}
	for _, c := range cases {
		got, err := toStreamValue(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}
