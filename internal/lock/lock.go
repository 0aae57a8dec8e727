// Package lock serializes writer passes per project.
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLockNotAcquired is returned when the lock is held by someone else.
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld is returned when releasing or extending a lock that expired or was taken over.
	ErrLockNotHeld = errors.New("lock not held")
)

// DefaultTTL applies when a caller passes no ttl.
const DefaultTTL = 5 * time.Minute

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) error
}

// Locker hands out locks by key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// TryAcquire retries Acquire with exponential backoff until timeout.
func TryAcquire(ctx context.Context, l Locker, key string, ttl, timeout time.Duration) (Lock, error) {
	deadline := time.Now().Add(timeout)
	backoff := 10 * time.Millisecond

	for {
		lock, err := l.Acquire(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff = min(backoff*2, 500*time.Millisecond)
		}
	}
}

// WithLock runs fn while holding key. The lock is extended every ttl/2 for
// as long as fn runs and released afterwards.
func WithLock(ctx context.Context, l Locker, key string, ttl, timeout time.Duration, fn func(ctx context.Context) error) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	held, err := TryAcquire(ctx, l, key, ttl, timeout)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := held.Extend(ctx, ttl); err != nil {
					return
				}
			}
		}
	}()

	fnErr := fn(ctx)
	close(done)
	<-stopped

	if err := held.Release(context.WithoutCancel(ctx)); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}
