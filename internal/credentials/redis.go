package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding one field per source.
const DefaultRedisKey = "guardian:credentials"

// RedisStore keeps secrets in a single Redis hash.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to the Redis server at url. An empty key uses
// DefaultRedisKey.
func NewRedisStore(url, password, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: redis.NewClient(opts), key: key}, nil
}

// Ping verifies the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, source string) (string, error) {
	secret, err := r.client.HGet(ctx, r.key, source).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w for %q", ErrNotFound, source)
	}
	if err != nil {
		return "", fmt.Errorf("read credential %q: %w", source, err)
	}
	return secret, nil
}

func (r *RedisStore) Put(ctx context.Context, source, secret string) error {
	if err := r.client.HSet(ctx, r.key, source, secret).Err(); err != nil {
		return fmt.Errorf("store credential %q: %w", source, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, source string) error {
	if err := r.client.HDel(ctx, r.key, source).Err(); err != nil {
		return fmt.Errorf("delete credential %q: %w", source, err)
	}
	return nil
}

func (r *RedisStore) DeleteAll(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
