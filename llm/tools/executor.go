package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/sunyadvisor/types"
	"go.uber.org/zap"
)

// ToolExecutor dispatches tool calls through a registry.
type ToolExecutor interface {
	Execute(ctx context.Context, calls []types.ToolCall) []ToolResult
	ExecuteOne(ctx context.Context, call types.ToolCall) ToolResult
}

// limiter is implemented by registries that rate limit their tools.
type limiter interface {
	Allow(name string) bool
}

type DefaultExecutor struct {
	registry ToolRegistry
	logger   *zap.Logger
}

func NewDefaultExecutor(registry ToolRegistry, logger *zap.Logger) *DefaultExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultExecutor{
		registry: registry,
		logger:   logger.With(zap.String("component", "tool_executor")),
	}
}

// Execute runs calls concurrently. results[i] answers calls[i].
func (e *DefaultExecutor) Execute(ctx context.Context, calls []types.ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	var wg sync.WaitGroup
	wg.Add(len(calls))
	for i := range calls {
		go func() {
			defer wg.Done()
			results[i] = e.ExecuteOne(ctx, calls[i])
		}()
	}
	wg.Wait()
	return results
}

// ExecuteOne never fails outright: unknown tools, bad arguments, errors,
// panics and timeouts all come back in ToolResult.Error for the model to
// read.
func (e *DefaultExecutor) ExecuteOne(ctx context.Context, call types.ToolCall) ToolResult {
	start := time.Now()
	res := ToolResult{ToolCallID: call.ID, Name: call.Name}

	out, err := e.invoke(ctx, call)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		e.logger.Warn("tool call failed",
			zap.String("tool", call.Name),
			zap.Duration("duration", res.Duration),
			zap.Error(err),
		)
		return res
	}
	res.Result = out
	e.logger.Info("tool executed", zap.String("tool", call.Name), zap.Duration("duration", res.Duration))
	return res
}

func (e *DefaultExecutor) invoke(ctx context.Context, call types.ToolCall) (json.RawMessage, error) {
	fn, meta, err := e.registry.Get(call.Name)
	if err != nil {
		return nil, err
	}
	if l, ok := e.registry.(limiter); ok && !l.Allow(call.Name) {
		return nil, fmt.Errorf("rate limit exceeded for %s", call.Name)
	}
	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	} else if !json.Valid(args) {
		return nil, fmt.Errorf("invalid arguments for %s: not valid JSON", call.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, meta.Timeout)
	defer cancel()

	type reply struct {
		out json.RawMessage
		err error
	}
	// Buffered so a tool that ignores ctx can still finish after we stop
	// waiting.
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- reply{err: fmt.Errorf("tool %s panicked: %v", call.Name, p)}
			}
		}()
		out, err := fn(ctx, args)
		done <- reply{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, types.NewError(types.ErrToolFailure, call.Name).WithCause(r.err)
		}
		return r.out, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("tool %s timed out after %s", call.Name, meta.Timeout)
	}
}
