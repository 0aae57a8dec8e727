package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker is an in-process Locker for single-instance deployments.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	clock func() time.Time
}

type memoryEntry struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]memoryEntry),
		clock: time.Now,
	}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if entry, ok := l.held[key]; ok && now.Before(entry.expires) {
		return nil, ErrLockNotAcquired
	}

	token := uuid.New().String()
	l.held[key] = memoryEntry{token: token, expires: now.Add(ttl)}
	return &memoryLock{locker: l, key: key, token: token}, nil
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	token  string
}

func (lock *memoryLock) Release(context.Context) error {
	l := lock.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.held[lock.key]
	if !ok || entry.token != lock.token {
		return ErrLockNotHeld
	}
	delete(l.held, lock.key)
	return nil
}

func (lock *memoryLock) Extend(_ context.Context, ttl time.Duration) error {
	l := lock.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.held[lock.key]
	if !ok || entry.token != lock.token || !l.clock().Before(entry.expires) {
		return ErrLockNotHeld
	}
	entry.expires = l.clock().Add(ttl)
	l.held[lock.key] = entry
	return nil
}
