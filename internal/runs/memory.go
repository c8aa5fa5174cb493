package runs

import (
	"context"
	"fmt"
	"sync"
)

// MemoryCounter keeps counts in a process-local map. The limit it enforces
// is therefore per instance; deployments running more than one replica
// should use RedisCounter instead.
type MemoryCounter struct {
	mu      sync.Mutex
	counts  map[string]int
	maxRuns int
}

func NewMemoryCounter(maxRuns int) *MemoryCounter {
	return &MemoryCounter{
		counts:  make(map[string]int),
		maxRuns: maxRuns,
	}
}

func (c *MemoryCounter) Get(_ context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key], nil
}

func (c *MemoryCounter) Inc(_ context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.counts[key] + 1
	c.counts[key] = current

	if current > c.maxRuns {
		return current, fmt.Errorf("%w: max runs (%d) for key: %s", ErrLimitExceeded, c.maxRuns, key)
	}
	return current, nil
}

func (c *MemoryCounter) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, key)
	return nil
}

func (c *MemoryCounter) Snapshot(_ context.Context) (map[string]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out, nil
}
