package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore implements Store on Redis. SETNX with a TTL gives the
// first-caller-wins semantics directly; no scripting needed.
type redisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Store backed by the Redis instance at addr.
func NewRedisStore(addr string) Store {
	return &redisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (s *redisStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
}

func (s *redisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
