package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/BaSui01/sunyadvisor/types"
	"go.uber.org/zap"
)

// Policy configures exponential backoff.
type Policy struct {
	MaxRetries   int           `json:"max_retries" yaml:"max_retries"` // 0 disables retrying
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay" yaml:"max_delay"`
	Multiplier   float64       `json:"multiplier" yaml:"multiplier"`
	Jitter       bool          `json:"jitter" yaml:"jitter"` // +/-25% per delay

	// Retryable decides whether err is worth another attempt. Nil means
	// types.IsTransient.
	Retryable func(err error) bool `json:"-" yaml:"-"`
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration) `json:"-" yaml:"-"`
}

// DefaultPolicy suits chat completions: a few attempts, capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		Jitter:       true,
	}
}

// Retryer runs a function until it succeeds, fails permanently or runs out
// of attempts.
type Retryer interface {
	Do(ctx context.Context, fn func() error) error
	DoWithResult(ctx context.Context, fn func() (any, error)) (any, error)
}

type backoffRetryer struct {
	policy Policy
	logger *zap.Logger
}

// NewBackoffRetryer fills zero policy fields with defaults.
func NewBackoffRetryer(policy Policy, logger *zap.Logger) Retryer {
	def := DefaultPolicy()
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = def.InitialDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = def.MaxDelay
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = def.Multiplier
	}
	if policy.Retryable == nil {
		policy.Retryable = types.IsTransient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &backoffRetryer{policy: policy, logger: logger.With(zap.String("component", "retry"))}
}

func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	_, err := r.DoWithResult(ctx, func() (any, error) { return nil, fn() })
	return err
}

// DoWithResult returns the last error unwrapped when it is permanent and
// wrapped with the attempt count when retries ran out.
func (r *backoffRetryer) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.delay(attempt)
			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-timer.C:
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err
		if !r.policy.Retryable(err) || ctx.Err() != nil {
			return nil, err
		}
	}

	r.logger.Warn("retries exhausted", zap.Int("attempts", r.policy.MaxRetries+1), zap.Error(lastErr))
	return nil, fmt.Errorf("failed after %d attempts: %w", r.policy.MaxRetries+1, lastErr)
}

// delay is InitialDelay * Multiplier^(attempt-1), capped and jittered, and
// never below InitialDelay.
func (r *backoffRetryer) delay(attempt int) time.Duration {
	d := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	d = min(d, float64(r.policy.MaxDelay))
	if r.policy.Jitter {
		d += (rand.Float64()*2 - 1) * d * 0.25
	}
	return time.Duration(max(d, float64(r.policy.InitialDelay)))
}
