package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jjudge-oj/accounts/types"
)

// MemoryStore keeps sessions in process memory. Sessions do not survive restarts.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]types.Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]types.Session),
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return types.Session{}, ErrNotFound
	}
	if session.IsExpired(s.now()) {
		delete(s.sessions, id)
		return types.Session{}, ErrNotFound
	}
	return session, nil
}

func (s *MemoryStore) Save(_ context.Context, session types.Session) error {
	if session.ID == "" {
		return errors.New("session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemoryStore) Close() error {
	return nil
}
