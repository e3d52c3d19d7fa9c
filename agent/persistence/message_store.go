package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BaSui01/sunyadvisor/types"
)

// MessageStore persists conversation events. Messages of one chat are
// returned in append order.
type MessageStore interface {
	Store

	// Append persists msgs in order. Every message needs a SessionID.
	Append(ctx context.Context, msgs ...types.Message) error

	// History returns the messages of one chat in append order.
	History(ctx context.Context, sessionID string, chatID int64) ([]types.Message, error)

	// Chats lists the chat ids of a session in ascending order.
	Chats(ctx context.Context, sessionID string) ([]int64, error)

	// SaveSummary stores or replaces the summary of a chat.
	SaveSummary(ctx context.Context, sessionID string, chatID int64, summary string) error

	// Summary returns the summary of a chat or ErrNotFound.
	Summary(ctx context.Context, sessionID string, chatID int64) (string, error)
}

// ConversationRecord is one row of conversation_history.
type ConversationRecord struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"size:64;not null;index:idx_conversation_session_chat,priority:1"`
	ChatID    int64     `gorm:"not null;index:idx_conversation_session_chat,priority:2"`
	Role      string    `gorm:"size:16;not null"`
	Sender    string    `gorm:"size:16"`
	Recipient string    `gorm:"size:16"`
	Message   string    `gorm:"type:text"`
	AgentName string    `gorm:"size:64"`
	ToolCall  *string   `gorm:"type:text"`
	Timestamp time.Time `gorm:"not null"`
}

// TableName implements gorm's tabler.
func (ConversationRecord) TableName() string { return "conversation_history" }

// ChatSummary is one row of chat_summary.
type ChatSummary struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"size:64;not null;uniqueIndex:idx_chat_summary_session_chat,priority:1"`
	ChatID    int64  `gorm:"not null;uniqueIndex:idx_chat_summary_session_chat,priority:2"`
	Summary   string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName implements gorm's tabler.
func (ChatSummary) TableName() string { return "chat_summary" }

// toolCallColumn is the JSON stored in conversation_history.tool_call.
type toolCallColumn struct {
	ToolCalls  []types.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

// RecordFromMessage converts a message to its row.
func RecordFromMessage(m types.Message) (ConversationRecord, error) {
	rec := ConversationRecord{
		SessionID: m.SessionID,
		ChatID:    m.ChatID,
		Role:      string(m.Role),
		Sender:    string(m.Sender),
		Recipient: string(m.Recipient),
		Message:   m.Content,
		AgentName: m.AgentName,
		Timestamp: m.Timestamp,
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if len(m.ToolCalls) > 0 || m.ToolCallID != "" || m.Name != "" {
		b, err := json.Marshal(toolCallColumn{ToolCalls: m.ToolCalls, ToolCallID: m.ToolCallID, Name: m.Name})
		if err != nil {
			return rec, err
		}
		s := string(b)
		rec.ToolCall = &s
	}
	return rec, nil
}

// ToMessage converts the row back to a message.
func (r ConversationRecord) ToMessage() (types.Message, error) {
	m := types.Message{
		Role:      types.Role(r.Role),
		Content:   r.Message,
		Sender:    types.Party(r.Sender),
		Recipient: types.Party(r.Recipient),
		AgentName: r.AgentName,
		SessionID: r.SessionID,
		ChatID:    r.ChatID,
		Timestamp: r.Timestamp,
	}
	if r.ToolCall != nil && *r.ToolCall != "" {
		var tc toolCallColumn
		if err := json.Unmarshal([]byte(*r.ToolCall), &tc); err != nil {
			return m, err
		}
		m.ToolCalls = tc.ToolCalls
		m.ToolCallID = tc.ToolCallID
		m.Name = tc.Name
	}
	return m, nil
}

func validateMessages(msgs []types.Message) error {
	for _, m := range msgs {
		if m.SessionID == "" || m.Role == "" {
			return ErrInvalidInput
		}
	}
	return nil
}
