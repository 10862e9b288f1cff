// Package lock provides best-effort mutual exclusion for periodic tasks so a
// retention run or inactivity sweep executes at most once at a time, across
// goroutines of one process (LocalLocker) or across replicas (RedisLocker).
package lock

import (
	"context"
	"time"

	"github.com/allisson/compliance/internal/errors"
)

// ErrNotAcquired is returned by TryLock when another holder owns the key.
var ErrNotAcquired = errors.Wrap(errors.ErrConflict, "lock not acquired")

// Release gives a lock back. Releasing an expired or stolen lock is a no-op.
type Release func(ctx context.Context) error

// Locker acquires named locks that expire after ttl if never released.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (Release, error)
}
