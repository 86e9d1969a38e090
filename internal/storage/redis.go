package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key prefix for saved values
const redisKeyPrefix = "taleforge:"

// RedisStore keeps values in Redis, optionally with an expiry
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a redis-backed store. ttl <= 0 keeps keys forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// Get implements Store. Reads refresh the expiry.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	k := redisKeyPrefix + key
	val, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	if s.ttl > 0 {
		_ = s.client.Expire(ctx, k, s.ttl).Err()
	}
	return val, nil
}

// Set implements Store
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, redisKeyPrefix+key, value, s.ttl).Err()
}

// Delete implements Store
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}
