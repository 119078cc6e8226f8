package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Locker serializes mutations of a single event. Different events never
// contend. The returned unlock func is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, eventID string) (unlock func(), err error)
}

// LocalLocker is an in-process Locker: one single-slot semaphore per event.
type LocalLocker struct {
	slots *xsync.MapOf[string, chan struct{}]
	wait  time.Duration
}

// NewLocalLocker returns a LocalLocker. A positive wait bounds how long Lock
// blocks before giving up with ErrLockTimeout.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{
		slots: xsync.NewMapOf[string, chan struct{}](),
		wait:  wait,
	}
}

func (l *LocalLocker) Lock(ctx context.Context, eventID string) (func(), error) {
	slot, _ := l.slots.LoadOrCompute(eventID, func() chan struct{} {
		return make(chan struct{}, 1)
	})

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-slot }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("lock event %s: %w", eventID, ErrLockTimeout)
	}
}
