// Package types provides core types shared across the advisor.
// This package has ZERO dependencies on other sunyadvisor packages to avoid circular imports.
package types

import (
	"encoding/json"
	"time"
)

// Role represents the role of a message participant as seen by the LLM.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Party identifies who produced or receives a conversation message.
type Party string

const (
	PartyStudent   Party = "student"
	PartyCounselor Party = "counselor"
	PartySuny      Party = "suny"
)

// Valid reports whether p is one of the known parties.
func (p Party) Valid() bool {
	switch p {
	case PartyStudent, PartyCounselor, PartySuny:
		return true
	}
	return false
}

// ToolCall represents a tool invocation request from the LLM.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message represents a conversation event.
//
// Sender/Recipient tag the event for persistence and routing; Role is the
// projection the owning agent's LLM sees. The same exchange is stored with
// different roles on the Counselor and the Knowledge agent.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`

	Sender    Party  `json:"sender,omitempty"`
	Recipient Party  `json:"recipient,omitempty"`
	AgentName string `json:"agent_name,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	ChatID    int64  `json:"chat_id,omitempty"`

	Timestamp time.Time `json:"timestamp,omitempty"`
}

// NewMessage creates a new message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// NewToolMessage creates a new tool result message.
func NewToolMessage(toolCallID, name, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		Name:       name,
		ToolCallID: toolCallID,
		Timestamp:  time.Now(),
	}
}

// WithToolCalls adds tool calls to the message.
func (m Message) WithToolCalls(calls []ToolCall) Message {
	m.ToolCalls = calls
	return m
}

// Between tags the message with its sender and recipient.
func (m Message) Between(sender, recipient Party) Message {
	m.Sender = sender
	m.Recipient = recipient
	return m
}

// WithAgent sets the name of the agent whose log holds the message.
func (m Message) WithAgent(name string) Message {
	m.AgentName = name
	return m
}

// InChat scopes the message to a session and chat.
func (m Message) InChat(sessionID string, chatID int64) Message {
	m.SessionID = sessionID
	m.ChatID = chatID
	return m
}

// HasToolCalls reports whether the message carries tool invocations.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}
