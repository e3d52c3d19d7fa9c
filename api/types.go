package api

import (
	"time"

	"github.com/BaSui01/sunyadvisor/profile"
	"github.com/BaSui01/sunyadvisor/types"
)

// TurnRequest is one student message.
type TurnRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// TurnResponse is the reply shown to the student.
type TurnResponse struct {
	SessionID string           `json:"session_id"`
	ChatID    int64            `json:"chat_id"`
	Reply     string           `json:"reply"`
	Phase     string           `json:"phase,omitempty"`
	Routed    bool             `json:"routed"`
	Sources   []string         `json:"sources,omitempty"`
	Usage     types.TokenUsage `json:"usage"`
}

// NewChatRequest starts a new chat in a session.
type NewChatRequest struct {
	SessionID string `json:"session_id"`
}

// NewChatResponse carries the id of the new chat.
type NewChatResponse struct {
	SessionID string `json:"session_id"`
	ChatID    int64  `json:"chat_id"`
}

// Message is a persisted conversation message as exposed to clients.
type Message struct {
	Role      string    `json:"role"`
	Sender    string    `json:"sender,omitempty"`
	Recipient string    `json:"recipient,omitempty"`
	Content   string    `json:"content"`
	Agent     string    `json:"agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse is the transcript of one chat.
type HistoryResponse struct {
	SessionID string    `json:"session_id"`
	ChatID    int64     `json:"chat_id"`
	Messages  []Message `json:"messages"`
}

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Answer is one Likert answer of the assessment.
type Answer struct {
	QuestionID int `json:"question_id"`
	Answer     int `json:"answer"`
}

// AssessmentRequest submits a complete assessment.
type AssessmentRequest struct {
	Answers []Answer `json:"answers"`
}

// Question is one assessment statement.
type Question struct {
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Theme string `json:"theme"`
}

// QuestionsResponse lists the whole assessment.
type QuestionsResponse struct {
	Scale     []string   `json:"scale"`
	Questions []Question `json:"questions"`
}

// ProfileResponse returns a stored profile and its rendered form.
type ProfileResponse struct {
	Profile  *profile.StudentProfile `json:"profile"`
	Rendered string                  `json:"rendered"`
}

// ToMessage converts a stored message for clients.
func ToMessage(m types.Message) Message {
	return Message{
		Role:      string(m.Role),
		Sender:    string(m.Sender),
		Recipient: string(m.Recipient),
		Content:   m.Content,
		Agent:     m.AgentName,
		Timestamp: m.Timestamp,
	}
}
