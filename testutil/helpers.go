package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/sunyadvisor/types"
)

// TestContext returns a context with a 30s timeout.
func TestContext(t *testing.T) context.Context {
	return TestContextWithTimeout(t, 30*time.Second)
}

// TestContextWithTimeout returns a context with a custom timeout.
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// AssertMessagesEqual compares role and content of two message slices.
func AssertMessagesEqual(t *testing.T, expected, actual []types.Message) {
	t.Helper()

	if len(expected) != len(actual) {
		t.Errorf("message count mismatch: expected %d, got %d", len(expected), len(actual))
		return
	}
	for i := range expected {
		if expected[i].Role != actual[i].Role {
			t.Errorf("message[%d] role mismatch: expected %q, got %q", i, expected[i].Role, actual[i].Role)
		}
		if expected[i].Content != actual[i].Content {
			t.Errorf("message[%d] content mismatch: expected %q, got %q", i, expected[i].Content, actual[i].Content)
		}
	}
}

// AssertToolAdjacency fails when a tool call is not followed directly by
// its result, or a tool result has no preceding call.
func AssertToolAdjacency(t *testing.T, log []types.Message) {
	t.Helper()

	for i := 0; i < len(log); i++ {
		m := log[i]
		if m.Role == types.RoleTool {
			t.Errorf("message[%d] is a tool result without a preceding call", i)
			continue
		}
		if !m.HasToolCalls() {
			continue
		}
		for j, tc := range m.ToolCalls {
			k := i + 1 + j
			if k >= len(log) || log[k].Role != types.RoleTool || log[k].ToolCallID != tc.ID {
				t.Errorf("tool call %q at message[%d] has no result at message[%d]", tc.ID, i, k)
			}
		}
		i += len(m.ToolCalls)
	}
}
