// Package lock provides keyed mutual exclusion with a bounded wait, in process or across
// instances through Redis.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotAcquired is returned when the lock is still held by someone else after the wait elapsed.
var ErrNotAcquired = errors.New("lock: not acquired within wait")

// Release gives the lock back. Calling it more than once is a no-op.
type Release func()

// Locker grants exclusive access per key.
type Locker interface {
	Acquire(ctx context.Context, key string, wait time.Duration) (Release, error)
}

// Local is an in-process keyed lock. The zero value is not usable; call NewLocal.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Acquire blocks until key is free, wait elapses or ctx is done.
// A non-positive wait tries exactly once.
func (l *Local) Acquire(ctx context.Context, key string, wait time.Duration) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := l.ref(key)

	if wait <= 0 {
		select {
		case s.ch <- struct{}{}:
			return l.release(key, s), nil
		default:
			l.unref(key, s)
			return nil, ErrNotAcquired
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case s.ch <- struct{}{}:
		return l.release(key, s), nil
	case <-timer.C:
		l.unref(key, s)
		return nil, ErrNotAcquired
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}
}

// Held reports how many callers currently hold or wait for key.
func (l *Local) Held(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.slots[key]; ok {
		return s.refs
	}
	return 0
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *Local) release(key string, s *slot) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}
}
