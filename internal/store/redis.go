package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint passed to SCAN when listing a namespace.
const scanBatch = 100

// Redis stores entries as plain strings under "namespace:key".
type Redis struct {
	client *redis.Client
}

// NewRedis connects to redisURL and verifies the connection.
func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Connection pool settings
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Redis{client: client}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Store returns the namespace ns.
func (r *Redis) Store(ns string) Store {
	return namespace{kv: r, name: ns}
}

// Ping checks Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func redisKey(ns, key string) string {
	return ns + ":" + key
}

func (r *Redis) get(ctx context.Context, ns, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, redisKey(ns, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s/%s: %w", ns, key, err)
	}
	return value, nil
}

func (r *Redis) set(ctx context.Context, ns, key string, value []byte) error {
	if err := r.client.Set(ctx, redisKey(ns, key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s/%s: %w", ns, key, err)
	}
	return nil
}

func (r *Redis) list(ctx context.Context, ns string) ([]string, error) {
	prefix := ns + ":"
	var cursor uint64
	keys := []string{}
	for {
		batch, next, err := r.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %s: %w", ns, err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	// SCAN may return a key more than once.
	slices.Sort(keys)
	return slices.Compact(keys), nil
}
