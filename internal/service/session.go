package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/conversation"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/cache"
)

const sessionKeyPrefix = "session:"

// SessionStore keeps per-session conversation state in the cache and
// serializes turns of the same session.
type SessionStore struct {
	cache cache.Cache
	ttl   time.Duration

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewSessionStore creates a session store backed by c.
func NewSessionStore(c cache.Cache, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: c, ttl: ttl, locks: make(map[string]*sessionLock)}
}

// Load returns the state of a session, or a fresh idle state when none is stored.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*conversation.State, error) {
	st, found, err := cache.GetJSON[conversation.State](ctx, s.cache, sessionKeyPrefix+sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if !found {
		return conversation.NewState(sessionID), nil
	}
	return &st, nil
}

// Save stores the state, refreshing its TTL.
func (s *SessionStore) Save(ctx context.Context, st *conversation.State) error {
	if err := cache.SetJSON(ctx, s.cache, sessionKeyPrefix+st.SessionID, st, s.ttl); err != nil {
		return fmt.Errorf("save session %s: %w", st.SessionID, err)
	}
	return nil
}

// Delete forgets a session.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.cache.Delete(ctx, sessionKeyPrefix+sessionID)
}

// Lock blocks until the caller holds the session's turn lock or ctx is done.
// The returned function releases it.
func (s *SessionStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		l.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return func() { s.release(sessionID, l) }, nil
	case <-ctx.Done():
		// Hand the lock back as soon as the pending acquire completes.
		go func() {
			<-acquired
			s.release(sessionID, l)
		}()
		return nil, ctx.Err()
	}
}

func (s *SessionStore) release(sessionID string, l *sessionLock) {
	l.mu.Unlock()
	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, sessionID)
	}
	s.mu.Unlock()
}
