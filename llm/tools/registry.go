package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/sunyadvisor/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single tool call when metadata sets none.
const DefaultTimeout = 30 * time.Second

// ToolFunc receives the model's JSON arguments and returns a JSON result.
type ToolFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// ToolMetadata is what the model sees of a tool plus its call limits.
type ToolMetadata struct {
	Schema types.ToolSchema
	// RateLimit is optional.
	RateLimit *RateLimitConfig
	Timeout   time.Duration
}

// RateLimitConfig allows MaxCalls per Window, refilled evenly.
type RateLimitConfig struct {
	MaxCalls int
	Window   time.Duration
}

// ToolResult is the outcome of one tool call.
type ToolResult = types.ToolResult

// ToolRegistry maps tool names to schemas and callables.
type ToolRegistry interface {
	Register(name string, fn ToolFunc, metadata ToolMetadata) error
	Unregister(name string) error
	Get(name string) (ToolFunc, ToolMetadata, error)
	// List returns schemas sorted by name so prompts built from them are
	// stable across turns.
	List() []types.ToolSchema
	Has(name string) bool
}

// ErrToolNotFound is returned by Get and Unregister for unknown names.
var ErrToolNotFound = errors.New("tool not found")

type registration struct {
	fn      ToolFunc
	meta    ToolMetadata
	limiter *rate.Limiter
}

// DefaultRegistry is an in-memory ToolRegistry. Each agent owns one, so the
// counselor and the knowledge agent expose different tool sets.
type DefaultRegistry struct {
	mu     sync.RWMutex
	byName map[string]registration
	logger *zap.Logger
}

func NewDefaultRegistry(logger *zap.Logger) *DefaultRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultRegistry{
		byName: make(map[string]registration),
		logger: logger.With(zap.String("component", "tool_registry")),
	}
}

// Register fills in the schema name and the default timeout. The schema name,
// when set, must equal name.
func (r *DefaultRegistry) Register(name string, fn ToolFunc, meta ToolMetadata) error {
	if strings.TrimSpace(name) == "" || fn == nil {
		return errors.New("tool name and function are required")
	}
	switch {
	case meta.Schema.Name == "":
		meta.Schema.Name = name
	case meta.Schema.Name != name:
		return fmt.Errorf("tool %s: schema is named %s", name, meta.Schema.Name)
	}
	if len(meta.Schema.Parameters) > 0 && !json.Valid(meta.Schema.Parameters) {
		return fmt.Errorf("tool %s: parameter schema is not valid JSON", name)
	}
	if meta.Timeout <= 0 {
		meta.Timeout = DefaultTimeout
	}
	reg := registration{fn: fn, meta: meta}
	if rl := meta.RateLimit; rl != nil && rl.MaxCalls > 0 && rl.Window > 0 {
		reg.limiter = rate.NewLimiter(rate.Every(rl.Window/time.Duration(rl.MaxCalls)), rl.MaxCalls)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.byName[name] = reg
	r.logger.Debug("tool registered", zap.String("tool", name), zap.Duration("timeout", meta.Timeout))
	return nil
}

func (r *DefaultRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	delete(r.byName, name)
	return nil
}

func (r *DefaultRegistry) Get(name string) (ToolFunc, ToolMetadata, error) {
	r.mu.RLock()
	reg, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ToolMetadata{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return reg.fn, reg.meta, nil
}

func (r *DefaultRegistry) List() []types.ToolSchema {
	r.mu.RLock()
	out := make([]types.ToolSchema, 0, len(r.byName))
	for _, reg := range r.byName {
		out = append(out, reg.meta.Schema)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b types.ToolSchema) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (r *DefaultRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Allow takes one token from the tool's limiter. Tools without a limit are
// always allowed.
func (r *DefaultRegistry) Allow(name string) bool {
	r.mu.RLock()
	reg := r.byName[name]
	r.mu.RUnlock()
	return reg.limiter == nil || reg.limiter.Allow()
}
