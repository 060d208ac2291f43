// Package runlock serializes pipeline runs per project.
package runlock

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomehq/tome/internal/config"
)

// Release gives a lock back. Calling it more than once is a no-op.
type Release func()

// Locker hands out one lock per key. Acquire blocks until the lock is free
// or ctx ends.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// New returns the locker selected by cfg.Type.
func New(ctx context.Context, cfg config.RunLockConfig) (Locker, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocal(), nil
	case "redis":
		l, err := NewRedisLocker(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown run lock type %q", cfg.Type)
	}
}

// LocalLocker is an in-process keyed mutex.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocal creates a LocalLocker.
func NewLocal() *LocalLocker {
	return &LocalLocker{slots: map[string]chan struct{}{}}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire run lock %s: %w", key, ctx.Err())
	}
}
