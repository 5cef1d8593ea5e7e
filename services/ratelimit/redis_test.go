package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_key(t *testing.T) {
	store := NewRedisStore(nil, 10, 15*time.Minute)
	base := time.Unix(900*100, 0)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{name: "window start", at: base, want: "paperdesk:ratelimit:1.2.3.4:100"},
		{name: "same window", at: base.Add(14 * time.Minute), want: "paperdesk:ratelimit:1.2.3.4:100"},
		{name: "next window", at: base.Add(15 * time.Minute), want: "paperdesk:ratelimit:1.2.3.4:101"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.now = func() time.Time { return tt.at }
			assert.Equal(t, tt.want, store.key("1.2.3.4"))
		})
	}
}

// TestRedisStore_Allow needs a Redis server; set TEST_REDIS_ADDR to run it.
func TestRedisStore_Allow(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()).Err())

	store := NewRedisStore(client, 2, time.Minute)
	id := uuid.New().String()
	for i, want := range []bool{true, true, false} {
		allowed, err := store.Allow(id)
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "request #%d", i+1)
	}
}
