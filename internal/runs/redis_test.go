package runs

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisCounterForTest(t *testing.T, maxRuns int) *RedisCounter {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return NewRedisCounter(client, "kyc_runs_test", maxRuns)
}

func TestRedisCounterIncAndOverLimitQuirk(t *testing.T) {
	ctx := context.Background()
	c := newRedisCounterForTest(t, 2)

	n, err := c.Inc(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = c.Inc(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = c.Inc(ctx, "user-1")
	require.ErrorIs(t, err, ErrLimitExceeded)
	require.Equal(t, 3, n)

	stored, err := c.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 3, stored)
}

func TestRedisCounterGetUnseenKey(t *testing.T) {
	c := newRedisCounterForTest(t, 5)
	got, err := c.Get(context.Background(), "never-seen")
	require.NoError(t, err)
	require.Equal(t, 0, got)
}

func TestRedisCounterReset(t *testing.T) {
	ctx := context.Background()
	c := newRedisCounterForTest(t, 1)

	_, _ = c.Inc(ctx, "user-1")
	require.NoError(t, c.Reset(ctx, "user-1"))

	got, err := c.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 0, got)
}

func TestRedisCounterSnapshot(t *testing.T) {
	ctx := context.Background()
	c := newRedisCounterForTest(t, 10)

	_, _ = c.Inc(ctx, "a")
	_, _ = c.Inc(ctx, "b")
	_, _ = c.Inc(ctx, "b")

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"a": 1, "b": 2}, snap)
}
