package persistence

import (
	"context"
	"time"
)

// FirstChatID is the chat id of a new session.
const FirstChatID int64 = 1

// SessionState is the per-session counter set the orchestrator needs.
type SessionState struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	ChatID       int64     `json:"chat_id"`
	UserMessages int64     `json:"user_messages"` // in the current chat
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionStore tracks the current chat of every session.
type SessionStore interface {
	Store

	// Ensure returns the session, creating it at FirstChatID when missing.
	Ensure(ctx context.Context, sessionID, userID string) (*SessionState, error)

	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*SessionState, error)

	// NextChat advances the chat id and resets the message counter.
	NextChat(ctx context.Context, sessionID string) (int64, error)

	// IncrUserMessages bumps the user message counter of the current chat.
	IncrUserMessages(ctx context.Context, sessionID string) (int64, error)
}
