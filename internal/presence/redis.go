package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "presence:online:"

// RedisStore keeps presence in Redis so every instance sees the same
// online set. TTL expiry is native to the key.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client with the given TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &RedisStore{client: client, ttl: ttl}
}

func key(userID string) string {
	return keyPrefix + userID
}

// SetOnline marks the user online until the TTL elapses.
func (s *RedisStore) SetOnline(ctx context.Context, userID string) error {
	return s.client.Set(ctx, key(userID), "1", s.ttl).Err()
}

// Refresh touches the TTL without changing semantics.
func (s *RedisStore) Refresh(ctx context.Context, userID string) error {
	return s.SetOnline(ctx, userID)
}

// SetOffline removes the key immediately.
func (s *RedisStore) SetOffline(ctx context.Context, userID string) error {
	return s.client.Del(ctx, key(userID)).Err()
}

// IsOnline reports whether the key still exists.
func (s *RedisStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
