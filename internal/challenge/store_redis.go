package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shardauth/pkg/platform/sentinel"
)

// consumeScript deletes KEYS[1] only while it still holds ARGV[1].
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore is the Redis-backed TokenStore. Expiry is delegated to Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a RedisStore. The client lifecycle is managed by
// the caller.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Set stores the token with SET key value EX ttl.
func (s *RedisStore) Set(ctx context.Context, hashedID, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, Key(hashedID), token, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w: %v", Key(hashedID), sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, hashedID string) (string, error) {
	key := Key(hashedID)
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%s: %w", key, sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w: %v", key, sentinel.ErrUnavailable, err)
	}
	return val, nil
}

// Consume runs the compare-and-delete atomically on the server.
func (s *RedisStore) Consume(ctx context.Context, hashedID, expected string) (bool, error) {
	key := Key(hashedID)
	n, err := consumeScript.Run(ctx, s.client, []string{key}, expected).Int()
	if err != nil {
		return false, fmt.Errorf("consume %s: %w: %v", key, sentinel.ErrUnavailable, err)
	}
	return n == 1, nil
}

func (s *RedisStore) Delete(ctx context.Context, hashedID string) error {
	if err := s.client.Del(ctx, Key(hashedID)).Err(); err != nil {
		return fmt.Errorf("del %s: %w: %v", Key(hashedID), sentinel.ErrUnavailable, err)
	}
	return nil
}
