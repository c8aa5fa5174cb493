package runs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisCounter shares run counts across instances through Redis, so the
// per-user limit holds under horizontal scaling. Counts carry no TTL:
// like the in-memory map they only go away via Reset.
type RedisCounter struct {
	client  redis.UniversalClient
	prefix  string
	maxRuns int
}

func NewRedisCounter(client redis.UniversalClient, prefix string, maxRuns int) *RedisCounter {
	if prefix == "" {
		prefix = "kyc_runs"
	}
	return &RedisCounter{client: client, prefix: prefix, maxRuns: maxRuns}
}

func (c *RedisCounter) key(key string) string {
	return c.prefix + ":" + key
}

func (c *RedisCounter) Get(ctx context.Context, key string) (int, error) {
	val, err := c.client.Get(ctx, c.key(key)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("runs: redis get: %w", err)
	}
	return val, nil
}

func (c *RedisCounter) Inc(ctx context.Context, key string) (int, error) {
	val, err := c.client.Incr(ctx, c.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("runs: redis incr: %w", err)
	}

	current := int(val)
	if current > c.maxRuns {
		return current, fmt.Errorf("%w: max runs (%d) for key: %s", ErrLimitExceeded, c.maxRuns, key)
	}
	return current, nil
}

func (c *RedisCounter) Reset(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("runs: redis del: %w", err)
	}
	return nil
}

func (c *RedisCounter) Snapshot(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)

	iter := c.client.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		fullKey := iter.Val()
		val, err := c.client.Get(ctx, fullKey).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("runs: redis get %s: %w", fullKey, err)
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			continue
		}
		out[strings.TrimPrefix(fullKey, c.prefix+":")] = n
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("runs: redis scan: %w", err)
	}
	return out, nil
}
