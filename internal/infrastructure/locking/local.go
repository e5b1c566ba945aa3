package locking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wms-platform/stockcount-service/internal/domain"
)

// LocalLocker serializes work within one process. Suitable for
// single-replica deployments and tests; TTLs are not enforced.
type LocalLocker struct {
	waitTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker(waitTimeout time.Duration) *LocalLocker {
	return &LocalLocker{
		waitTimeout: waitTimeout,
		locks:       make(map[string]*localLock),
	}
}

// Lock blocks until key is free or the wait timeout elapses
func (l *LocalLocker) Lock(ctx context.Context, key string, _ time.Duration) (domain.Unlock, error) {
	entry := l.acquireEntry(key)

	waitCtx, cancel := context.WithTimeout(ctx, l.waitTimeout)
	defer cancel()

	select {
	case entry.sem <- struct{}{}:
	case <-waitCtx.Done():
		l.releaseEntry(key, entry)
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrLockNotAcquired, key, waitCtx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-entry.sem
			l.releaseEntry(key, entry)
		})
		return nil
	}, nil
}

func (l *LocalLocker) acquireEntry(key string) *localLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[key]
	if !ok {
		entry = &localLock{sem: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (l *LocalLocker) releaseEntry(key string, entry *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}
