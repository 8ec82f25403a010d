// Package lock serializes work per key (kasa:branch:<id>). The database
// constraints are what actually guarantee one open session per branch; the
// lock keeps contending requests from racing into them.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrNotAcquired = errors.New("kilit alınamadı")

type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

func BranchKey(branchID uint) string {
	return fmt.Sprintf("kasa:branch:%d", branchID)
}

// Local is an in-process keyed mutex. Waiting honours ctx cancellation.
type Local struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

type localEntry struct {
	sem  chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{entries: make(map[string]*localEntry)}
}

func (l *Local) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	e := l.acquireEntry(key)
	defer l.releaseEntry(key, e)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}
	defer func() { <-e.sem }()

	return fn(ctx)
}

func (l *Local) acquireEntry(key string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Local) releaseEntry(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}
