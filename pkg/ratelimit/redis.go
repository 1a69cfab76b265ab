package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Limiter sharing fixed-window counters across server instances
// through a redis INCR + EXPIRE pair. Same algorithm and same boundary-burst
// imprecision as FixedWindow, but one counter table for the whole fleet.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedis creates a redis-backed limiter from a redis URL
// (e.g. "redis://localhost:6379/0").
func NewRedis(url string, limit int, window time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	return &Redis{
		client: redis.NewClient(opts),
		limit:  limit,
		window: window,
		prefix: "oib:ratelimit:",
	}, nil
}

// Allow implements Limiter. The key's TTL is set only when the counter is
// created, so the window is fixed per key rather than sliding.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	k := r.prefix + key

	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", k, err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			return false, fmt.Errorf("expire %s: %w", k, err)
		}
	}

	return count <= int64(r.limit), nil
}

// Ping verifies connectivity at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
