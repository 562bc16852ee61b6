package planner

import (
	"context"
	"sync"
)

// sessionLocks serializes turns per session. Lock entries are created on
// demand and removed once the last holder or waiter is gone, so idle
// sessions cost nothing.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{} // capacity 1; holding the token is holding the lock
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire blocks until the session's lock is free or ctx is done. On
// success the returned release function must be called exactly once.
func (s *sessionLocks) acquire(ctx context.Context, sessionID string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{ch: make(chan struct{}, 1)}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			s.put(sessionID, l)
		}, nil
	case <-ctx.Done():
		s.put(sessionID, l)
		return nil, ctx.Err()
	}
}

// put drops one reference, deleting the map entry when nobody holds or
// waits on the lock anymore.
func (s *sessionLocks) put(sessionID string, l *sessionLock) {
	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, sessionID)
	}
	s.mu.Unlock()
}
