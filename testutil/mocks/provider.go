// Package mocks provides test doubles for the llm layer.
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/sunyadvisor/llm"
	"github.com/BaSui01/sunyadvisor/types"
)

// ErrScriptExhausted is returned when more calls arrive than were queued.
var ErrScriptExhausted = errors.New("mock provider: no scripted response left")

// ScriptedProvider replays queued responses in order and records every
// request. A queued error is returned in place of a response.
type ScriptedProvider struct {
	mu sync.Mutex

	name     string
	script   []step
	fallback *llm.ChatResponse
	calls    []*llm.ChatRequest
	delay    time.Duration
}

type step struct {
	resp *llm.ChatResponse
	err  error
	fn   func(req *llm.ChatRequest) (*llm.ChatResponse, error)
}

// NewScriptedProvider creates a provider with an empty script.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{name: "mock"}
}

// WithName sets the provider name.
func (m *ScriptedProvider) WithName(name string) *ScriptedProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// Then queues a response.
func (m *ScriptedProvider) Then(resp *llm.ChatResponse) *ScriptedProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, step{resp: resp})
	return m
}

// ThenError queues an error.
func (m *ScriptedProvider) ThenError(err error) *ScriptedProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, step{err: err})
	return m
}

// ThenFunc queues a callback that builds the answer from the request.
func (m *ScriptedProvider) ThenFunc(fn func(req *llm.ChatRequest) (*llm.ChatResponse, error)) *ScriptedProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, step{fn: fn})
	return m
}

// Always answers with resp once the script is exhausted.
func (m *ScriptedProvider) Always(resp *llm.ChatResponse) *ScriptedProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
	return m
}

// WithDelay sleeps before answering, honouring cancellation.
func (m *ScriptedProvider) WithDelay(d time.Duration) *ScriptedProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Name implements llm.Provider.
func (m *ScriptedProvider) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// HealthCheck implements llm.Provider.
func (m *ScriptedProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Completion implements llm.Provider.
func (m *ScriptedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	cp := *req
	cp.Messages = append([]types.Message(nil), req.Messages...)
	m.calls = append(m.calls, &cp)
	var s step
	switch {
	case len(m.script) > 0:
		s = m.script[0]
		m.script = m.script[1:]
	case m.fallback != nil:
		s = step{resp: m.fallback}
	default:
		s = step{err: ErrScriptExhausted}
	}
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fn != nil {
		return s.fn(&cp)
	}
	return s.resp, s.err
}

// Calls returns the recorded requests.
func (m *ScriptedProvider) Calls() []*llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.ChatRequest(nil), m.calls...)
}

// CallCount returns the number of Completion calls.
func (m *ScriptedProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Remaining returns how many scripted steps are still queued.
func (m *ScriptedProvider) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.script)
}
