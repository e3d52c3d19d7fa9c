package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/sunyadvisor/agent/persistence"
	"github.com/BaSui01/sunyadvisor/profile"
	"github.com/BaSui01/sunyadvisor/types"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Factory builds a fresh orchestrator for sess.
type Factory func(ctx context.Context, sess Session) (*Orchestrator, error)

// Registry defaults.
const (
	DefaultIdleTTL   = 30 * time.Minute
	DefaultMaxActive = 1000
)

type liveSession struct {
	o        *Orchestrator
	lastUsed time.Time
}

// Sessions keeps one live orchestrator per session id and builds them on
// first use. A session belongs to the user that created it. Sessions idle
// longer than the idle TTL, and the least recently used ones beyond the
// size cap, are dropped from memory; their state stays in storage. A
// session with a turn in progress is never dropped.
type Sessions struct {
	factory   Factory
	store     persistence.SessionStore
	logger    *zap.Logger
	idleTTL   time.Duration
	maxActive int
	now       func() time.Time

	building singleflight.Group

	mu     sync.Mutex
	active map[string]*liveSession
}

// SessionsOption configures a Sessions registry.
type SessionsOption func(*Sessions)

// WithIdleTTL drops sessions unused for d. Zero or less keeps them until
// the size cap evicts them.
func WithIdleTTL(d time.Duration) SessionsOption {
	return func(s *Sessions) { s.idleTTL = d }
}

// WithMaxActive caps the number of live sessions. Zero or less removes the cap.
func WithMaxActive(n int) SessionsOption {
	return func(s *Sessions) { s.maxActive = n }
}

// NewSessions creates a registry backed by store.
func NewSessions(factory Factory, store persistence.SessionStore, logger *zap.Logger, opts ...SessionsOption) *Sessions {
	if store == nil {
		store = persistence.NewMemorySessionStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sessions{
		factory:   factory,
		store:     store,
		logger:    logger.With(zap.String("component", "sessions")),
		idleTTL:   DefaultIdleTTL,
		maxActive: DefaultMaxActive,
		now:       time.Now,
		active:    make(map[string]*liveSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the orchestrator of sessionID, creating and resuming it when
// it is not live yet. Concurrent first calls for one session share a build.
func (s *Sessions) Get(ctx context.Context, userID, sessionID string) (*Orchestrator, error) {
	if sessionID == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "session id is required")
	}

	if o, ok := s.lookup(sessionID); ok {
		return owned(o, userID)
	}

	v, err, _ := s.building.Do(userID+"\x00"+sessionID, func() (any, error) {
		if o, ok := s.lookup(sessionID); ok {
			return o, nil
		}
		o, err := s.build(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
		return s.insert(sessionID, o), nil
	})
	if err != nil {
		return nil, err
	}
	return owned(v.(*Orchestrator), userID)
}

func owned(o *Orchestrator, userID string) (*Orchestrator, error) {
	if o.Session().UserID != userID {
		return nil, types.NewError(types.ErrAuthorization, "session belongs to another user")
	}
	return o, nil
}

// lookup returns a live orchestrator and marks it used.
func (s *Sessions) lookup(sessionID string) (*Orchestrator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	ls, ok := s.active[sessionID]
	if !ok {
		return nil, false
	}
	ls.lastUsed = now
	return ls.o, true
}

// build loads the stored session and resumes a new orchestrator for it.
// It runs without the registry lock.
func (s *Sessions) build(ctx context.Context, userID, sessionID string) (*Orchestrator, error) {
	st, err := s.store.Ensure(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}
	if st.UserID != "" && st.UserID != userID {
		return nil, types.NewError(types.ErrAuthorization, "session belongs to another user")
	}

	o, err := s.factory(ctx, Session{UserID: userID, SessionID: sessionID, ChatID: st.ChatID})
	if err != nil {
		return nil, err
	}
	if err := o.Resume(ctx); err != nil {
		return nil, err
	}
	s.logger.Debug("session opened", zap.String("session_id", sessionID), zap.Int64("chat_id", st.ChatID))
	return o, nil
}

// insert registers o unless another build won the race, and returns the
// live orchestrator.
func (s *Sessions) insert(sessionID string, o *Orchestrator) *Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ls, ok := s.active[sessionID]; ok {
		ls.lastUsed = s.now()
		return ls.o
	}
	s.active[sessionID] = &liveSession{o: o, lastUsed: s.now()}
	for s.maxActive > 0 && len(s.active) > s.maxActive {
		oldest := ""
		var at time.Time
		for id, ls := range s.active {
			if id == sessionID || ls.o.Busy() {
				continue
			}
			if oldest == "" || ls.lastUsed.Before(at) {
				oldest, at = id, ls.lastUsed
			}
		}
		if oldest == "" {
			break
		}
		delete(s.active, oldest)
		s.logger.Debug("session evicted", zap.String("session_id", oldest), zap.String("reason", "capacity"))
	}
	return o
}

func (s *Sessions) sweepLocked(now time.Time) {
	if s.idleTTL <= 0 {
		return
	}
	for id, ls := range s.active {
		if now.Sub(ls.lastUsed) > s.idleTTL && !ls.o.Busy() {
			delete(s.active, id)
			s.logger.Debug("session evicted", zap.String("session_id", id), zap.String("reason", "idle"))
		}
	}
}

// Drop forgets the live orchestrator of sessionID. Persisted state stays.
func (s *Sessions) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, sessionID)
}

// UpdateProfile pushes p into every live session of userID so the next
// turn sees the new counselor prompt.
func (s *Sessions) UpdateProfile(userID string, p *profile.StudentProfile) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ls := range s.active {
		if ls.o.Session().UserID == userID {
			ls.o.SetProfile(p)
			n++
		}
	}
	return n
}

// Active lists the live session ids in ascending order.
func (s *Sessions) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now())
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
