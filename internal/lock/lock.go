// Package lock serializes work per key, either within one process or across
// instances through Redis.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLockTimeout is returned when a key cannot be acquired within the wait bound.
var ErrLockTimeout = errors.New("lock wait timed out")

// DefaultWait bounds how long Lock waits for a held key.
const DefaultWait = 5 * time.Second

// Locker acquires an exclusive lock on key. The returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

func withWait(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if wait <= 0 {
		wait = DefaultWait
	}
	return context.WithTimeout(ctx, wait)
}

// waitErr maps the end of a bounded wait to ErrLockTimeout, keeping caller
// cancellation distinguishable.
func waitErr(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return ErrLockTimeout
}
