package llm

import (
	"context"
	"time"

	"github.com/BaSui01/sunyadvisor/types"
)

// Message, ToolCall and ToolSchema are shared with the agent layer so the
// same log can be sent to a provider without conversion.
type (
	Message    = types.Message
	ToolCall   = types.ToolCall
	ToolSchema = types.ToolSchema
	Role       = types.Role
)

const (
	RoleSystem    = types.RoleSystem
	RoleUser      = types.RoleUser
	RoleAssistant = types.RoleAssistant
	RoleTool      = types.RoleTool
)

// ResponseFormat constrains the shape of the model output.
type ResponseFormat string

const (
	ResponseFormatText ResponseFormat = "text"
	// ResponseFormatJSON asks the model for a single JSON object.
	ResponseFormatJSON ResponseFormat = "json_object"
)

type ChatRequest struct {
	TraceID        string         `json:"trace_id,omitempty"`
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Temperature    *float32       `json:"temperature,omitempty"`
	Tools          []ToolSchema   `json:"tools,omitempty"`
	ToolChoice     string         `json:"tool_choice,omitempty"` // auto/none/<tool name>
	ResponseFormat ResponseFormat `json:"response_format,omitempty"`
	Timeout        time.Duration  `json:"timeout,omitempty"`
}

// WithTemperature sets an explicit sampling temperature, including zero.
func (r *ChatRequest) WithTemperature(t float32) *ChatRequest {
	r.Temperature = &t
	return r
}

type ChatUsage = types.TokenUsage

type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// FirstMessage returns the first choice's message. ok is false for an empty response.
func (r *ChatResponse) FirstMessage() (Message, bool) {
	if r == nil || len(r.Choices) == 0 {
		return Message{}, false
	}
	return r.Choices[0].Message, true
}

// HealthStatus reports the outcome of a provider health check.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Provider is the chat-completions adapter used by the agents.
// Tools travel in ChatRequest.Tools; the model answers with ToolCalls and
// execution is left to llm/tools.
type Provider interface {
	// Completion sends a synchronous chat request and returns the full response.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// HealthCheck performs a cheap reachability probe.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name returns the provider identifier.
	Name() string
}
