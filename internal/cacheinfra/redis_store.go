package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-record-catalog/cache"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the shared Redis store.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns settings for a local Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "127.0.0.1:6379",
		MaxRetries:   2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

// Options converts the config to go-redis client options.
func (c RedisConfig) Options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// RedisStore is a cache.Store shared between processes through Redis.
// Every failure other than a missing key wraps cache.ErrUnavailable.
type RedisStore struct {
	client redis.UniversalClient
}

var _ cache.Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// OpenRedisStore creates a client from cfg. The server is not contacted;
// use Ping to check reachability.
func OpenRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, &cache.ConfigError{Field: "Addr", Message: "must not be empty"}
	}
	return NewRedisStore(redis.NewClient(cfg.Options())), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: redis get: %v", cache.ErrUnavailable, err)
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", cache.ErrUnavailable, err)
	}
	return nil
}

// Ping reports whether the server answers.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %v", cache.ErrUnavailable, err)
	}
	return nil
}

// Close releases the underlying connections.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
