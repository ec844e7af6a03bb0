package identity

import (
	"context"
	"sync"
)

// MutexLocker is an in-process Locker with one lock per key
type MutexLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewMutexLocker() *MutexLocker {
	return &MutexLocker{locks: make(map[string]chan struct{})}
}

func (l *MutexLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	return ch
}

// Lock never loses a held key, so the returned context is ctx itself
func (l *MutexLocker) Lock(ctx context.Context, key string) (context.Context, func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	var once sync.Once
	return ctx, func() {
		once.Do(func() { <-ch })
	}, nil
}
