package session

import "sync"

// Locks serializes turns per session. The session document is read-then-
// written shared mutable state, so concurrent turns on one session must
// queue; turns on different sessions proceed in parallel.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocks creates an empty lock registry.
func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*sessionLock)}
}

// Acquire blocks until the session's lock is held and returns the release
// function. Lock entries are reference counted and removed when idle.
func (l *Locks) Acquire(sessionID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[sessionID]
	if !ok {
		entry = &sessionLock{}
		l.locks[sessionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()
	}
}
