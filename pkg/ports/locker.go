package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock. It is safe to call after the lock expired.
type UnlockFunc func(ctx context.Context) error

// Locker provides per-user mutual exclusion across processes.
type Locker interface {
	// Acquire takes the lock for userID without blocking. It returns
	// domain.ErrOperationInProgress when the lock is already held.
	// The lock expires after ttl if never released.
	Acquire(ctx context.Context, userID string, ttl time.Duration) (UnlockFunc, error)
}
