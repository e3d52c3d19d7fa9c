package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/BaSui01/sunyadvisor/types"
)

type chatKey struct {
	session string
	chat    int64
}

// MemoryMessageStore keeps history in process memory.
// Suitable for development and testing. Data is lost on restart.
type MemoryMessageStore struct {
	mu        sync.RWMutex
	chats     map[chatKey][]types.Message
	summaries map[chatKey]string
	closed    bool
}

// NewMemoryMessageStore creates an empty store.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{
		chats:     make(map[chatKey][]types.Message),
		summaries: make(map[chatKey]string),
	}
}

// Close closes the store
func (s *MemoryMessageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy
func (s *MemoryMessageStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Append implements MessageStore.
func (s *MemoryMessageStore) Append(_ context.Context, msgs ...types.Message) error {
	if err := validateMessages(msgs); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	for _, m := range msgs {
		k := chatKey{m.SessionID, m.ChatID}
		m.ToolCalls = append([]types.ToolCall(nil), m.ToolCalls...)
		s.chats[k] = append(s.chats[k], m)
	}
	return nil
}

// History implements MessageStore.
func (s *MemoryMessageStore) History(_ context.Context, sessionID string, chatID int64) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	msgs := s.chats[chatKey{sessionID, chatID}]
	out := append([]types.Message(nil), msgs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Chats implements MessageStore.
func (s *MemoryMessageStore) Chats(_ context.Context, sessionID string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for k := range s.chats {
		if k.session == sessionID {
			ids = append(ids, k.chat)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// SaveSummary implements MessageStore.
func (s *MemoryMessageStore) SaveSummary(_ context.Context, sessionID string, chatID int64, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[chatKey{sessionID, chatID}] = summary
	return nil
}

// Summary implements MessageStore.
func (s *MemoryMessageStore) Summary(_ context.Context, sessionID string, chatID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[chatKey{sessionID, chatID}]
	if !ok {
		return "", ErrNotFound
	}
	return sum, nil
}
