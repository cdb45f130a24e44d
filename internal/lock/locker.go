// Package lock serializes work per key: one product id, or the catalog-wide
// import key. Different keys never wait on each other.
package lock

import (
	"context"
	"fmt"
	"sync"
)

type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func
	// releases the key and is safe to call more than once.
	Lock(ctx context.Context, key string) (func(), error)
}

func ProductKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

const ImportKey = "catalog:import"

type keyLock struct {
	ch   chan struct{}
	refs int
}

type localLocker struct {
	mu   sync.Mutex
	keys map[string]*keyLock
}

// NewLocal returns an in-process locker. Entries are dropped once nobody
// holds or waits for a key, so memory follows the number of busy keys.
func NewLocal() Locker {
	return &localLocker{keys: make(map[string]*keyLock)}
}

func (l *localLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.keys[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.keys[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.ch
				l.release(key, kl)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, kl)
		return nil, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
	}
}

func (l *localLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(l.keys, key)
	}
}
