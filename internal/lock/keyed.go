package lock

import (
	"context"
	"sync"
	"time"
)

// KeyedMutex is an in-process Locker. Entries are dropped once no goroutine
// holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex(wait time.Duration) *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot), wait: wait}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	s := k.acquireSlot(key)

	waitCtx, cancel := withWait(ctx, k.wait)
	defer cancel()

	select {
	case s.ch <- struct{}{}:
	case <-waitCtx.Done():
		k.releaseSlot(key, s)
		return nil, waitErr(ctx)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.releaseSlot(key, s)
		})
	}, nil
}

func (k *KeyedMutex) acquireSlot(key string) *slot {
	k.mu.Lock()
	defer k.mu.Unlock()

	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	return s
}

func (k *KeyedMutex) releaseSlot(key string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
