package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists state records in Redis, one hash per table.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string // e.g. "localhost:6379"
	Password string // Leave empty if no password
	DB       int    // Default is 0
	// KeyPrefix namespaces the hash keys, so several extractors can
	// share one Redis instance.
	KeyPrefix string
}

// NewRedisStore creates and initializes a RedisStore. It pings the
// server to ensure connectivity.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("statestore: failed to connect to redis at %s: %w", opts.Addr, err)
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "cortex-state"
	}
	return &RedisStore{client: client, keyPrefix: prefix}, nil
}

func (s *RedisStore) hashKey(table string) string {
	return s.keyPrefix + ":" + table
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, table, key string, value any) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.hashKey(table), key, data).Err()
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, table, key string, dst any) error {
	data, err := s.client.HGet(ctx, s.hashKey(table), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return err
	}
	return decode(data, dst)
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, table, key string) error {
	return s.client.HDel(ctx, s.hashKey(table), key).Err()
}

// Keys implements Store.
func (s *RedisStore) Keys(ctx context.Context, table string) ([]string, error) {
	return s.client.HKeys(ctx, s.hashKey(table)).Result()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
