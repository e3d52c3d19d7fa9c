package persistence

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*SessionState
	closed   bool
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*SessionState)}
}

func (s *MemorySessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemorySessionStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *MemorySessionStore) Ensure(_ context.Context, sessionID, userID string) (*SessionState, error) {
	if sessionID == "" {
		return nil, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &SessionState{SessionID: sessionID, UserID: userID, ChatID: FirstChatID, UpdatedAt: time.Now()}
		s.sessions[sessionID] = st
	}
	cp := *st
	return &cp, nil
}

func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *MemorySessionStore) NextChat(_ context.Context, sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return 0, ErrNotFound
	}
	st.ChatID++
	st.UserMessages = 0
	st.UpdatedAt = time.Now()
	return st.ChatID, nil
}

func (s *MemorySessionStore) IncrUserMessages(_ context.Context, sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return 0, ErrNotFound
	}
	st.UserMessages++
	st.UpdatedAt = time.Now()
	return st.UserMessages, nil
}
