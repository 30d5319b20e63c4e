package session

import (
	"context"
	"sync"
)

type lockEntry struct {
	sem  chan struct{}
	refs int // holders plus waiters
}

// Locker serializes work per user id. Entries live only while a user has a
// holder or waiter.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// NewLocker creates a Locker.
func NewLocker() *Locker {
	return &Locker{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the user's slot is free or ctx is done. The returned
// function releases the slot and must be called exactly once.
func (l *Locker) Lock(ctx context.Context, userID string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[userID]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			l.release(userID, e)
		}, nil
	case <-ctx.Done():
		l.release(userID, e)
		return nil, ctx.Err()
	}
}

func (l *Locker) release(userID string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, userID)
	}
}

func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
