package types

import (
	"encoding/json"
	"time"
)

// ToolSchema declares a function the model may call.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolResult is the outcome of one tool call. Exactly one of Result and
// Error is meaningful.
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Result     json.RawMessage `json:"result"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration"`
}

func (tr ToolResult) IsError() bool { return tr.Error != "" }

// Text is what the model sees: a JSON string result unquoted, any other
// JSON verbatim, or "Error: <reason>" for a failed call.
func (tr ToolResult) Text() string {
	if tr.IsError() {
		return "Error: " + tr.Error
	}
	var s string
	if json.Unmarshal(tr.Result, &s) == nil {
		return s
	}
	return string(tr.Result)
}

// ToMessage wraps the result as the tool message answering ToolCallID.
func (tr ToolResult) ToMessage() Message {
	return Message{
		Role:       RoleTool,
		Name:       tr.Name,
		ToolCallID: tr.ToolCallID,
		Content:    tr.Text(),
		Timestamp:  time.Now(),
	}
}
