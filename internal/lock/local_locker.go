package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type localEntry struct {
	token     string
	expiresAt time.Time
}

// LocalLocker is an in-process Locker used when Redis is disabled.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	clock func() time.Time
}

// NewLocalLocker creates a new LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held:  make(map[string]localEntry),
		clock: time.Now,
	}
}

// TryLock acquires key unless a live holder exists.
func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if entry, ok := l.held[key]; ok && now.Before(entry.expiresAt) {
		return nil, ErrNotAcquired
	}

	token := uuid.NewString()
	l.held[key] = localEntry{token: token, expiresAt: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if entry, ok := l.held[key]; ok && entry.token == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}
