package agent

import (
	"github.com/BaSui01/sunyadvisor/llm"
	"github.com/BaSui01/sunyadvisor/types"
)

// RenderForLLM projects a message log onto what the model sees: role,
// content, name and tool-call linkage. Persistence tags are stripped and tool
// results whose originating call is not in the log are dropped, since
// providers reject them. The input is not modified.
func RenderForLLM(log []types.Message) []llm.Message {
	out := make([]llm.Message, 0, len(log))
	open := make(map[string]bool)
	for _, m := range log {
		switch {
		case m.Role == types.RoleTool:
			if !open[m.ToolCallID] {
				continue
			}
		case m.HasToolCalls():
			for _, tc := range m.ToolCalls {
				open[tc.ID] = true
			}
		}
		msg := llm.Message{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		if len(m.ToolCalls) > 0 {
			msg.ToolCalls = append([]types.ToolCall(nil), m.ToolCalls...)
		}
		out = append(out, msg)
	}
	return out
}
