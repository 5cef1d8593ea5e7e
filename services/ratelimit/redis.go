// Package ratelimit counts requests per client in fixed windows shared through Redis.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements echo's RateLimiterStore so that every API instance shares the same counters.
type RedisStore struct {
	client  redis.Cmdable
	limit   int
	window  time.Duration
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

var _ middleware.RateLimiterStore = (*RedisStore)(nil)

func NewRedisStore(client redis.Cmdable, limit int, window time.Duration) *RedisStore {
	if window < time.Second {
		window = time.Second
	}
	return &RedisStore{
		client:  client,
		limit:   limit,
		window:  window,
		prefix:  "paperdesk:ratelimit",
		timeout: 500 * time.Millisecond,
		now:     time.Now,
	}
}

// key identifies the current window of identifier.
func (s *RedisStore) key(identifier string) string {
	slot := s.now().Unix() / int64(s.window/time.Second)
	return s.prefix + ":" + identifier + ":" + strconv.FormatInt(slot, 10)
}

func (s *RedisStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	key := s.key(identifier)
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, errors.Wrap(err, "incrementing rate limit counter")
	}
	return incr.Val() <= int64(s.limit), nil
}
