package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/sunyadvisor/types"
	"go.uber.org/zap"
)

// State is the breaker position.
type State int

const (
	StateClosed   State = iota // calls flow
	StateOpen                  // calls rejected until ResetTimeout passes
	StateHalfOpen              // a few probe calls decide
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config tunes the breaker.
type Config struct {
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold int `json:"threshold" yaml:"threshold"`
	// Timeout bounds one call. Zero leaves it to the caller's context.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// ResetTimeout is how long the breaker stays open.
	ResetTimeout time.Duration `json:"reset_timeout" yaml:"reset_timeout"`
	// HalfOpenMaxCalls caps concurrent probes while half open.
	HalfOpenMaxCalls int `json:"half_open_max_calls" yaml:"half_open_max_calls"`

	OnStateChange func(from, to State) `json:"-" yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Threshold:        5,
		ResetTimeout:     60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// CircuitBreaker stops calling an upstream that keeps failing.
type CircuitBreaker interface {
	Call(ctx context.Context, fn func(ctx context.Context) error) error
	CallWithResult(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error)
	State() State
	Reset()
}

var (
	// ErrCircuitOpen is returned without calling the upstream.
	ErrCircuitOpen = types.NewError(types.ErrServiceUnavailable, "circuit breaker is open")
	// ErrTooManyCallsInHalfOpen is returned while the probe quota is used.
	ErrTooManyCallsInHalfOpen = types.NewError(types.ErrServiceUnavailable, "circuit breaker is probing")
)

type breaker struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	halfOpenCalls int
}

// NewCircuitBreaker fills zero config fields with defaults.
func NewCircuitBreaker(cfg Config, logger *zap.Logger) CircuitBreaker {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &breaker{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "circuit_breaker")),
		now:    time.Now,
		state:  StateClosed,
	}
}

func (b *breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.CallWithResult(ctx, func(ctx context.Context) (any, error) { return nil, fn(ctx) })
	return err
}

// CallWithResult runs fn unless the breaker is open. Errors the caller
// caused, such as a rejected request, do not count as upstream failures.
func (b *breaker) CallWithResult(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	if err := b.before(); err != nil {
		return nil, err
	}
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	result, err := fn(ctx)
	b.after(err == nil || isCallerError(err))
	return result, err
}

// isCallerError reports failures that say nothing about upstream health.
func isCallerError(err error) bool {
	switch types.GetErrorCode(err) {
	case types.ErrInvalidRequest, types.ErrAuthentication, types.ErrQuotaExceeded,
		types.ErrContextTooLong, types.ErrModelNotFound:
		return true
	}
	return false
}

func (b *breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		b.setState(StateHalfOpen)
		b.halfOpenCalls = 1
		return nil
	case StateHalfOpen:
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			return ErrTooManyCallsInHalfOpen
		}
		b.halfOpenCalls++
	}
	return nil
}

func (b *breaker) after(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		if b.state == StateHalfOpen {
			b.logger.Info("circuit closed", zap.Int("probe_calls", b.halfOpenCalls))
			b.setState(StateClosed)
			b.halfOpenCalls = 0
		}
		b.failures = 0
		return
	}

	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.Threshold {
			b.logger.Warn("circuit opened", zap.Int("failures", b.failures))
			b.open()
		}
	case StateHalfOpen:
		b.logger.Warn("probe failed, circuit reopened")
		b.open()
	}
}

func (b *breaker) open() {
	b.setState(StateOpen)
	b.openedAt = b.now()
	b.halfOpenCalls = 0
}

func (b *breaker) setState(s State) {
	from := b.state
	b.state = s
	if b.cfg.OnStateChange != nil && from != s {
		go b.cfg.OnStateChange(from, s)
	}
}

func (b *breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the breaker and clears the failure count.
func (b *breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(StateClosed)
	b.failures = 0
	b.halfOpenCalls = 0
}
