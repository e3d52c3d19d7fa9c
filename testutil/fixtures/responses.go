// Package fixtures builds canned model responses.
package fixtures

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/sunyadvisor/llm"
	"github.com/BaSui01/sunyadvisor/types"
)

// SimpleResponse returns a plain assistant answer.
func SimpleResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:       "resp-001",
		Provider: "mock",
		Model:    "gpt-4o-mini",
		Choices: []llm.ChatChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message: types.Message{
					Role:    types.RoleAssistant,
					Content: content,
				},
			},
		},
		Usage: llm.ChatUsage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
		CreatedAt: time.Now(),
	}
}

// EnvelopeResponse returns an assistant answer holding an envelope.
func EnvelopeResponse(phase string, recipient types.Party, message string) *llm.ChatResponse {
	return SimpleResponse(types.Envelope{Phase: phase, Recipient: recipient, Message: message}.Marshal())
}

// ResponseWithToolCalls returns an assistant answer requesting tools.
func ResponseWithToolCalls(content string, toolCalls []types.ToolCall) *llm.ChatResponse {
	resp := SimpleResponse(content)
	resp.ID = "resp-tool-001"
	resp.Choices[0].FinishReason = "tool_calls"
	resp.Choices[0].Message.ToolCalls = toolCalls
	resp.Usage = llm.ChatUsage{PromptTokens: 50, CompletionTokens: 100, TotalTokens: 150}
	return resp
}

// ToolCall builds a call with JSON-encoded args.
func ToolCall(id, name string, args any) types.ToolCall {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(fmt.Sprintf("fixtures: marshal tool args: %v", err))
	}
	return types.ToolCall{ID: id, Name: name, Arguments: raw}
}

// SearchCall builds a rag_search call.
func SearchCall(id, query, school string) types.ToolCall {
	args := map[string]string{"query": query}
	if school != "" {
		args["school_name"] = school
	}
	return ToolCall(id, "rag_search", args)
}
