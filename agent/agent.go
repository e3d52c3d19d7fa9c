package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/sunyadvisor/llm"
	"github.com/BaSui01/sunyadvisor/llm/tools"
	"github.com/BaSui01/sunyadvisor/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// DefaultMaxToolIterations caps model round trips inside one tool loop.
const DefaultMaxToolIterations = 5

const instrumentationName = "github.com/BaSui01/sunyadvisor/agent"

// Config describes one LLM-backed agent.
type Config struct {
	Name        string  `json:"name" yaml:"name"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
	// JSONMode requests response_format json_object on every call.
	JSONMode bool `json:"json_mode" yaml:"json_mode"`
	// MaxTokens caps the completion length; 0 leaves it to the provider.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
	// TokenBudget caps the prompt; older turns are trimmed to fit.
	TokenBudget       int    `json:"token_budget" yaml:"token_budget"`
	MaxToolIterations int    `json:"max_tool_iterations" yaml:"max_tool_iterations"`
	SystemPrompt      string `json:"-" yaml:"-"`
}

// Validate checks required fields.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrConfigInvalid)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model is required for %s", ErrConfigInvalid, c.Name)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature %.2f out of range", ErrConfigInvalid, c.Temperature)
	}
	if c.TokenBudget < 0 || c.MaxToolIterations < 0 {
		return fmt.Errorf("%w: negative limits", ErrConfigInvalid)
	}
	return nil
}

// Observer receives one callback per model call.
type Observer interface {
	ObserveCompletion(agent, model string, duration time.Duration, usage types.TokenUsage, err error)
}

// LoopResult is the outcome of a tool loop.
type LoopResult struct {
	// Final is the plain assistant message that ended the loop.
	Final types.Message
	// Appended lists every message added to the log, in order, Final last.
	Appended   []types.Message
	Iterations int
	States     []LoopState
	Usage      types.TokenUsage
}

// Agent owns a system prompt and an ordered message log and talks to one
// provider. Methods are safe for concurrent use but a conversation is meant
// to be driven by a single caller.
type Agent struct {
	cfg      Config
	provider llm.Provider
	registry tools.ToolRegistry
	executor tools.ToolExecutor
	counter  types.TokenCounter
	observer Observer
	logger   *zap.Logger

	mu  sync.Mutex
	log []types.Message // log[0] is always the system prompt
}

// Option customises an Agent.
type Option func(*Agent)

// WithTools enables tool calling through reg and exec.
func WithTools(reg tools.ToolRegistry, exec tools.ToolExecutor) Option {
	return func(a *Agent) {
		a.registry = reg
		a.executor = exec
	}
}

// WithTokenCounter sets the counter used for budget trimming.
func WithTokenCounter(c types.TokenCounter) Option {
	return func(a *Agent) { a.counter = c }
}

// WithObserver reports model calls to o.
func WithObserver(o Observer) Option {
	return func(a *Agent) { a.observer = o }
}

// New creates an agent whose log holds only the system prompt.
func New(cfg Config, provider llm.Provider, logger *zap.Logger, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, ErrProviderNotSet
	}
	if cfg.MaxToolIterations == 0 {
		cfg.MaxToolIterations = DefaultMaxToolIterations
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Agent{
		cfg:      cfg,
		provider: provider,
		counter:  types.EstimateCounter{},
		logger:   logger.With(zap.String("component", "agent"), zap.String("agent", cfg.Name)),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.executor == nil && a.registry != nil {
		a.executor = tools.NewDefaultExecutor(a.registry, logger)
	}
	a.log = []types.Message{a.systemMessage(cfg.SystemPrompt)}
	return a, nil
}

func (a *Agent) systemMessage(prompt string) types.Message {
	return types.NewSystemMessage(prompt).WithAgent(a.cfg.Name)
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.cfg.Name }

// Config returns the effective configuration.
func (a *Agent) Config() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// SystemPrompt returns the current system prompt.
func (a *Agent) SystemPrompt() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.log[0].Content
}

// SetSystemPrompt replaces the system message in place. Used when the
// student profile is re-rendered.
func (a *Agent) SetSystemPrompt(prompt string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.SystemPrompt = prompt
	a.log[0] = a.systemMessage(prompt)
}

// AddMessage appends m to the log.
func (a *Agent) AddMessage(m types.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.appendLocked(m)
}

func (a *Agent) appendLocked(m types.Message) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	if m.AgentName == "" {
		m.AgentName = a.cfg.Name
	}
	a.log = append(a.log, m)
}

// Messages returns a copy of the log including the system prompt.
func (a *Agent) Messages() []types.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]types.Message(nil), a.log...)
}

// Len returns the number of messages after the system prompt.
func (a *Agent) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.log) - 1
}

// Reset replaces the log with the system prompt followed by messages.
// System messages in messages are ignored.
func (a *Agent) Reset(messages []types.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log = a.log[:1:1]
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			continue
		}
		a.appendLocked(m)
	}
}

// Invoke sends the log to the model and returns its response without
// modifying the log.
func (a *Agent) Invoke(ctx context.Context) (*llm.ChatResponse, error) {
	a.mu.Lock()
	rendered := RenderForLLM(a.log)
	a.mu.Unlock()

	msgs, dropped := TrimToBudget(rendered, a.counter, a.cfg.TokenBudget)
	if dropped > 0 {
		a.logger.Debug("trimmed prompt to budget",
			zap.Int("dropped", dropped),
			zap.Int("budget", a.cfg.TokenBudget))
	}

	req := &llm.ChatRequest{
		Model:     a.cfg.Model,
		Messages:  msgs,
		MaxTokens: a.cfg.MaxTokens,
	}
	req.WithTemperature(a.cfg.Temperature)
	if traceID, ok := types.TraceID(ctx); ok {
		req.TraceID = traceID
	}
	if a.cfg.JSONMode {
		req.ResponseFormat = llm.ResponseFormatJSON
	}
	if a.registry != nil {
		if schemas := a.registry.List(); len(schemas) > 0 {
			req.Tools = schemas
			req.ToolChoice = "auto"
		}
	}

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "agent.invoke")
	span.SetAttributes(
		attribute.String("agent.name", a.cfg.Name),
		attribute.String("llm.model", a.cfg.Model),
		attribute.Int("agent.messages", len(msgs)),
	)
	if sid, ok := types.SessionID(ctx); ok {
		span.SetAttributes(attribute.String("session.id", sid))
	}
	defer span.End()

	start := time.Now()
	resp, err := a.provider.Completion(ctx, req)
	if err == nil && (resp == nil || len(resp.Choices) == 0) {
		err = ErrEmptyResponse
	}
	var usage types.TokenUsage
	if resp != nil {
		usage = resp.Usage
	}
	if a.observer != nil {
		a.observer.ObserveCompletion(a.cfg.Name, a.cfg.Model, time.Since(start), usage, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		sid, _ := types.SessionID(ctx)
		a.logger.Warn("completion failed", zap.String("session_id", sid), zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, err
	}
	span.SetAttributes(attribute.Int("llm.total_tokens", usage.TotalTokens))
	return resp, nil
}

// HandleToolCall drives the tool loop starting from resp.
//
// While the model keeps returning tool calls, the assistant message carrying
// them is appended, each call is dispatched and its result appended as a
// tool message directly after it, and the model is invoked again. The loop
// ends when the model returns a plain message, which is appended and
// returned. Exceeding MaxToolIterations yields a TOOL_LOOP_EXCEEDED error.
func (a *Agent) HandleToolCall(ctx context.Context, resp *llm.ChatResponse) (*LoopResult, error) {
	msg, ok := resp.FirstMessage()
	if !ok {
		return nil, ErrEmptyResponse
	}

	m := newLoopMachine()
	res := &LoopResult{}
	res.Usage.Add(resp.Usage)

	for {
		if !msg.HasToolCalls() {
			if err := m.to(StateDone); err != nil {
				return nil, err
			}
			final := a.record(types.NewAssistantMessage(msg.Content))
			res.Final = final
			res.Appended = append(res.Appended, final)
			res.States = m.trace
			return res, nil
		}

		if res.Iterations >= a.cfg.MaxToolIterations {
			a.logger.Warn("tool loop exceeded", zap.Int("iterations", res.Iterations))
			res.States = m.trace
			return res, toolLoopExceeded(a.cfg.Name, a.cfg.MaxToolIterations)
		}
		res.Iterations++

		if err := m.to(StateAwaitingTool); err != nil {
			return nil, err
		}
		call := a.record(types.NewAssistantMessage(msg.Content).WithToolCalls(msg.ToolCalls))
		res.Appended = append(res.Appended, call)

		for _, tr := range a.dispatch(ctx, msg.ToolCalls) {
			res.Appended = append(res.Appended, a.record(tr.ToMessage()))
		}

		if err := m.to(StateAwaitingModel); err != nil {
			return nil, err
		}
		next, err := a.Invoke(ctx)
		if err != nil {
			res.States = m.trace
			return res, err
		}
		res.Usage.Add(next.Usage)
		msg, _ = next.FirstMessage()
	}
}

// Respond invokes the model and runs the tool loop on its answer.
func (a *Agent) Respond(ctx context.Context) (*LoopResult, error) {
	resp, err := a.Invoke(ctx)
	if err != nil {
		return nil, err
	}
	return a.HandleToolCall(ctx, resp)
}

func (a *Agent) record(m types.Message) types.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.appendLocked(m)
	return a.log[len(a.log)-1]
}

// dispatch executes calls in order. Without an executor every call fails
// with a tool error so the model can recover.
func (a *Agent) dispatch(ctx context.Context, calls []types.ToolCall) []tools.ToolResult {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "agent.tool_calls")
	span.SetAttributes(attribute.Int("tool.calls", len(calls)))
	defer span.End()

	if a.executor == nil {
		out := make([]tools.ToolResult, len(calls))
		for i, c := range calls {
			out[i] = tools.ToolResult{ToolCallID: c.ID, Name: c.Name, Error: "tools are not enabled for this agent"}
		}
		return out
	}

	results := a.executor.Execute(ctx, calls)
	for _, r := range results {
		if r.IsError() {
			a.logger.Info("tool call failed", zap.String("tool", r.Name), zap.String("error", r.Error))
		}
	}
	return results
}
