package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/sunyadvisor/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func echoTool(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}
	return json.Marshal(in.Text)
}

func newRegistry(t *testing.T) *DefaultRegistry {
	t.Helper()
	r := NewDefaultRegistry(zap.NewNop())
	require.NoError(t, r.Register("echo", echoTool, ToolMetadata{
		Schema: types.ToolSchema{Description: "echo", Parameters: json.RawMessage(`{"type":"object"}`)},
	}))
	return r
}

func TestRegistry_RegisterAndList(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, r.Register("alpha", echoTool, ToolMetadata{}))

	assert.True(t, r.Has("echo"))
	assert.Error(t, r.Register("echo", echoTool, ToolMetadata{}))
	assert.Error(t, r.Register("beta", echoTool, ToolMetadata{Schema: types.ToolSchema{Name: "gamma"}}))
	assert.Error(t, r.Register("bad", echoTool, ToolMetadata{Schema: types.ToolSchema{Parameters: json.RawMessage(`{`)}}))

	schemas := r.List()
	require.Len(t, schemas, 2)
	assert.Equal(t, "alpha", schemas[0].Name)
	assert.Equal(t, "echo", schemas[1].Name)

	_, meta, err := r.Get("echo")
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, meta.Timeout)

	require.NoError(t, r.Unregister("alpha"))
	assert.False(t, r.Has("alpha"))
	assert.Error(t, r.Unregister("alpha"))
}

func TestExecutor_Success(t *testing.T) {
	e := NewDefaultExecutor(newRegistry(t), nil)
	res := e.ExecuteOne(context.Background(), types.ToolCall{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"hi"}`)})

	assert.False(t, res.IsError())
	assert.Equal(t, "c1", res.ToolCallID)
	assert.Equal(t, "hi", res.Text())
}

func TestExecutor_Failures(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, r.Register("boom", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("kaput")
	}, ToolMetadata{}))
	require.NoError(t, r.Register("panics", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		panic("oh no")
	}, ToolMetadata{}))
	require.NoError(t, r.Register("slow", func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, ToolMetadata{Timeout: 20 * time.Millisecond}))

	e := NewDefaultExecutor(r, nil)

	tests := []struct {
		name string
		call types.ToolCall
		want string
	}{
		{"unknown tool", types.ToolCall{Name: "nope"}, "tool not found"},
		{"bad json", types.ToolCall{Name: "echo", Arguments: json.RawMessage(`{`)}, "invalid arguments"},
		{"tool error", types.ToolCall{Name: "boom"}, "kaput"},
		{"panic", types.ToolCall{Name: "panics"}, "panicked"},
		{"timeout", types.ToolCall{Name: "slow"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.ExecuteOne(context.Background(), tt.call)
			require.True(t, res.IsError())
			assert.Contains(t, res.Text(), "Error: ")
			assert.Contains(t, res.Error, tt.want)
		})
	}
}

func TestExecutor_EmptyArgumentsBecomeObject(t *testing.T) {
	r := NewDefaultRegistry(nil)
	var got json.RawMessage
	require.NoError(t, r.Register("peek", func(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
		got = args
		return json.RawMessage(`"ok"`), nil
	}, ToolMetadata{}))

	res := NewDefaultExecutor(r, nil).ExecuteOne(context.Background(), types.ToolCall{Name: "peek"})
	require.False(t, res.IsError())
	assert.JSONEq(t, `{}`, string(got))
}

func TestExecutor_ExecutePreservesOrder(t *testing.T) {
	e := NewDefaultExecutor(newRegistry(t), nil)
	calls := []types.ToolCall{
		{ID: "a", Name: "echo", Arguments: json.RawMessage(`{"text":"1"}`)},
		{ID: "b", Name: "missing"},
		{ID: "c", Name: "echo", Arguments: json.RawMessage(`{"text":"3"}`)},
	}
	results := e.Execute(context.Background(), calls)
	require.Len(t, results, 3)
	assert.Equal(t, "1", results[0].Text())
	assert.True(t, results[1].IsError())
	assert.Equal(t, "c", results[2].ToolCallID)
}

func TestExecutor_RateLimit(t *testing.T) {
	r := NewDefaultRegistry(nil)
	require.NoError(t, r.Register("echo", echoTool, ToolMetadata{
		RateLimit: &RateLimitConfig{MaxCalls: 1, Window: time.Hour},
	}))
	e := NewDefaultExecutor(r, nil)

	call := types.ToolCall{Name: "echo", Arguments: json.RawMessage(`{"text":"x"}`)}
	assert.False(t, e.ExecuteOne(context.Background(), call).IsError())
	res := e.ExecuteOne(context.Background(), call)
	require.True(t, res.IsError())
	assert.Contains(t, res.Error, "rate limit")
}

func TestRegistry_NotFound(t *testing.T) {
	r := NewDefaultRegistry(nil)
	_, _, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.ErrorIs(t, r.Unregister("missing"), ErrToolNotFound)
	assert.True(t, r.Allow("missing"))
}
