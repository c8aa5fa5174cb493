// Package runs tracks how many verification sessions each user has started
// and enforces the per-user cap on them.
package runs

import (
	"context"
	"errors"
)

// ErrLimitExceeded is returned by Inc when a key goes past the configured
// maximum. Callers can match it with errors.Is.
var ErrLimitExceeded = errors.New("runs: max runs exceeded")

// Counter is the admission gate consulted before every session creation.
// Implementations must be safe for concurrent use.
//
// Inc records the attempt first and checks the limit second: the call that
// pushes a key from max to max+1 fails, but the over-limit count stays
// stored and is what Get reports afterwards. Admin reset is the way back.
type Counter interface {
	Get(ctx context.Context, key string) (int, error)
	Inc(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
	Snapshot(ctx context.Context) (map[string]int, error)
}
