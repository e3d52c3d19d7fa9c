package llm

import (
	"context"
	"errors"

	"github.com/BaSui01/sunyadvisor/llm/circuitbreaker"
	"github.com/BaSui01/sunyadvisor/llm/retry"
	"github.com/BaSui01/sunyadvisor/types"
	"go.uber.org/zap"
)

// ResilienceConfig configures NewResilientProvider.
type ResilienceConfig struct {
	Retry   retry.Policy          `json:"retry" yaml:"retry"`
	Breaker circuitbreaker.Config `json:"breaker" yaml:"breaker"`
}

// DefaultResilienceConfig retries transient failures three times and opens
// the breaker after five consecutive upstream failures.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Retry:   retry.DefaultPolicy(),
		Breaker: circuitbreaker.DefaultConfig(),
	}
}

// ResilientProvider retries transient completion failures behind a circuit
// breaker. Each attempt passes through the breaker, so a run of failed
// retries opens it and later turns fail fast.
type ResilientProvider struct {
	next    Provider
	retryer retry.Retryer
	breaker circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

var _ Provider = (*ResilientProvider)(nil)

func NewResilientProvider(next Provider, cfg ResilienceConfig, logger *zap.Logger) *ResilientProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("provider", next.Name()))
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = func(err error) bool {
			return !errors.Is(err, circuitbreaker.ErrCircuitOpen) &&
				!errors.Is(err, circuitbreaker.ErrTooManyCallsInHalfOpen) &&
				!errors.Is(err, context.Canceled) &&
				types.IsTransient(err)
		}
	}
	return &ResilientProvider{
		next:    next,
		retryer: retry.NewBackoffRetryer(cfg.Retry, logger),
		breaker: circuitbreaker.NewCircuitBreaker(cfg.Breaker, logger),
		logger:  logger,
	}
}

func (p *ResilientProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return retry.DoTyped(ctx, p.retryer, func() (*ChatResponse, error) {
		return circuitbreaker.CallTyped(ctx, p.breaker, func(ctx context.Context) (*ChatResponse, error) {
			return p.next.Completion(ctx, req)
		})
	})
}

// HealthCheck bypasses retries and the breaker.
func (p *ResilientProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return p.next.HealthCheck(ctx)
}

func (p *ResilientProvider) Name() string { return p.next.Name() }

// BreakerState reports the breaker position.
func (p *ResilientProvider) BreakerState() circuitbreaker.State { return p.breaker.State() }
