package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/sunyadvisor/llm"
	"github.com/BaSui01/sunyadvisor/types"
)

// statusCodes maps the HTTP statuses with a fixed meaning. Retryable ones
// are the statuses a later attempt can plausibly succeed on.
var statusCodes = map[int]struct {
	code      types.ErrorCode
	retryable bool
}{
	http.StatusUnauthorized:          {types.ErrAuthentication, false},
	http.StatusForbidden:             {types.ErrAuthentication, false},
	http.StatusNotFound:              {types.ErrModelNotFound, false},
	http.StatusRequestEntityTooLarge: {types.ErrContextTooLong, false},
	http.StatusTooManyRequests:       {types.ErrRateLimited, true},
	http.StatusBadGateway:            {types.ErrServiceUnavailable, true},
	http.StatusServiceUnavailable:    {types.ErrServiceUnavailable, true},
	http.StatusGatewayTimeout:        {types.ErrUpstreamTimeout, true},
}

// MapHTTPError turns an upstream error reply from the chat, embedding or
// rerank server into a *types.Error. A 400 is classified by its message
// since servers use it for quota and context-length failures too.
func MapHTTPError(status int, msg string, provider string) *types.Error {
	code, retryable := types.ErrUpstreamError, status >= 500
	if m, ok := statusCodes[status]; ok {
		code, retryable = m.code, m.retryable
	} else if status == http.StatusBadRequest {
		code = classifyBadRequest(msg)
	}
	return types.NewError(code, msg).
		WithHTTPStatus(status).
		WithRetryable(retryable).
		WithProvider(provider)
}

func classifyBadRequest(msg string) types.ErrorCode {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "quota"), strings.Contains(lower, "credit"):
		return types.ErrQuotaExceeded
	case strings.Contains(lower, "context length"), strings.Contains(lower, "maximum context"):
		return types.ErrContextTooLong
	}
	return types.ErrInvalidRequest
}

// TransportError marks a connection-level failure as transient.
func TransportError(err error, provider string) *types.Error {
	return types.NewError(types.ErrUpstreamError, err.Error()).
		WithCause(err).
		WithHTTPStatus(http.StatusBadGateway).
		WithRetryable(true).
		WithProvider(provider)
}

// ReadErrorMessage extracts a readable message from an error body. It
// understands {"error":{"message":..,"type":..}}, {"error":"..."} and falls
// back to the trimmed body.
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(data, &envelope) != nil || len(envelope.Error) == 0 {
		return strings.TrimSpace(string(data))
	}
	var detail struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	}
	if json.Unmarshal(envelope.Error, &detail) == nil && detail.Message != "" {
		if detail.Type == "" {
			return detail.Message
		}
		return fmt.Sprintf("%s (type: %s)", detail.Message, detail.Type)
	}
	var plain string
	if json.Unmarshal(envelope.Error, &plain) == nil && plain != "" {
		return plain
	}
	return strings.TrimSpace(string(data))
}

// OpenAI-compatible wire types.

// OpenAICompatMessage is an OpenAI-compatible chat message.
type OpenAICompatMessage struct {
	Role       string                 `json:"role"`
	Content    *string                `json:"content"`
	Name       string                 `json:"name,omitempty"`
	ToolCalls  []OpenAICompatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
}

// OpenAICompatToolCall is an OpenAI-compatible tool call.
type OpenAICompatToolCall struct {
	ID       string               `json:"id"`
	Type     string               `json:"type"`
	Function OpenAICompatFunction `json:"function"`
}

// OpenAICompatFunction carries a call's name and its arguments, which the
// wire format encodes as a JSON string.
type OpenAICompatFunction struct {
	Name      string        `json:"name"`
	Arguments ArgumentsJSON `json:"arguments"`
}

// OpenAICompatToolDef is a function declaration inside a tool definition.
type OpenAICompatToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// OpenAICompatTool is an OpenAI-compatible tool definition.
type OpenAICompatTool struct {
	Type     string              `json:"type"`
	Function OpenAICompatToolDef `json:"function"`
}

// OpenAICompatResponseFormat is the response_format request field.
type OpenAICompatResponseFormat struct {
	Type string `json:"type"`
}

// OpenAICompatRequest is an OpenAI-compatible chat completion request.
type OpenAICompatRequest struct {
	Model          string                      `json:"model"`
	Messages       []OpenAICompatMessage       `json:"messages"`
	Tools          []OpenAICompatTool          `json:"tools,omitempty"`
	ToolChoice     any                         `json:"tool_choice,omitempty"`
	MaxTokens      int                         `json:"max_tokens,omitempty"`
	Temperature    *float32                    `json:"temperature,omitempty"`
	ResponseFormat *OpenAICompatResponseFormat `json:"response_format,omitempty"`
}

// OpenAICompatChoice is a single choice in an OpenAI-compatible response.
type OpenAICompatChoice struct {
	Index        int                 `json:"index"`
	FinishReason string              `json:"finish_reason"`
	Message      OpenAICompatMessage `json:"message"`
}

// OpenAICompatUsage is token usage in an OpenAI-compatible response.
type OpenAICompatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAICompatResponse is an OpenAI-compatible chat completion response.
type OpenAICompatResponse struct {
	ID      string               `json:"id"`
	Model   string               `json:"model"`
	Choices []OpenAICompatChoice `json:"choices"`
	Usage   *OpenAICompatUsage   `json:"usage,omitempty"`
	Created int64                `json:"created,omitempty"`
}

// ArgumentsJSON holds tool-call arguments as raw JSON in memory and as a JSON
// string on the wire. Some servers send an object instead of a string; both
// are accepted on decode.
type ArgumentsJSON json.RawMessage

// MarshalJSON encodes the arguments as a string.
func (a ArgumentsJSON) MarshalJSON() ([]byte, error) {
	if len(a) == 0 {
		return json.Marshal("{}")
	}
	return json.Marshal(string(a))
}

// UnmarshalJSON accepts either a JSON string or an inline object.
func (a *ArgumentsJSON) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = ArgumentsJSON(s)
		return nil
	}
	*a = append((*a)[:0], data...)
	return nil
}

// ConvertMessagesToOpenAI converts llm messages to the OpenAI-compatible format.
func ConvertMessagesToOpenAI(msgs []llm.Message) []OpenAICompatMessage {
	out := make([]OpenAICompatMessage, 0, len(msgs))
	for _, m := range msgs {
		content := m.Content
		oa := OpenAICompatMessage{
			Role:       string(m.Role),
			Name:       m.Name,
			Content:    &content,
			ToolCallID: m.ToolCallID,
		}
		if len(m.ToolCalls) > 0 {
			if content == "" {
				oa.Content = nil
			}
			oa.ToolCalls = make([]OpenAICompatToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				oa.ToolCalls = append(oa.ToolCalls, OpenAICompatToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: OpenAICompatFunction{
						Name:      tc.Name,
						Arguments: ArgumentsJSON(tc.Arguments),
					},
				})
			}
		}
		out = append(out, oa)
	}
	return out
}

// ConvertToolsToOpenAI converts tool schemas to the OpenAI-compatible format.
func ConvertToolsToOpenAI(tools []llm.ToolSchema) []OpenAICompatTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]OpenAICompatTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, OpenAICompatTool{
			Type: "function",
			Function: OpenAICompatToolDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// ToLLMChatResponse converts an OpenAI-compatible response to llm.ChatResponse.
func ToLLMChatResponse(oa OpenAICompatResponse, provider string) *llm.ChatResponse {
	choices := make([]llm.ChatChoice, 0, len(oa.Choices))
	for _, c := range oa.Choices {
		msg := llm.Message{
			Role: llm.RoleAssistant,
			Name: c.Message.Name,
		}
		if c.Message.Content != nil {
			msg.Content = *c.Message.Content
		}
		if len(c.Message.ToolCalls) > 0 {
			msg.ToolCalls = make([]llm.ToolCall, 0, len(c.Message.ToolCalls))
			for _, tc := range c.Message.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: json.RawMessage(tc.Function.Arguments),
				})
			}
		}
		choices = append(choices, llm.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      msg,
		})
	}
	resp := &llm.ChatResponse{
		ID:       oa.ID,
		Provider: provider,
		Model:    oa.Model,
		Choices:  choices,
	}
	if oa.Usage != nil {
		resp.Usage = llm.ChatUsage{
			PromptTokens:     oa.Usage.PromptTokens,
			CompletionTokens: oa.Usage.CompletionTokens,
			TotalTokens:      oa.Usage.TotalTokens,
		}
	}
	return resp
}

// BearerTokenHeaders sets the standard bearer auth and JSON content headers.
// An empty key is allowed for local servers that need no auth.
func BearerTokenHeaders(r *http.Request, apiKey string) {
	if apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+apiKey)
	}
	r.Header.Set("Content-Type", "application/json")
}
