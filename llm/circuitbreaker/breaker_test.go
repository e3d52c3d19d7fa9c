package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/sunyadvisor/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upstream = types.NewError(types.ErrUpstreamError, "502")

func newTestBreaker(cfg Config) (*breaker, *time.Time) {
	b := NewCircuitBreaker(cfg, nil).(*breaker)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func fail(context.Context) error { return upstream }
func ok(context.Context) error   { return nil }

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	b := NewCircuitBreaker(Config{}, nil).(*breaker)
	assert.Equal(t, DefaultConfig().Threshold, b.cfg.Threshold)
	assert.Equal(t, DefaultConfig().ResetTimeout, b.cfg.ResetTimeout)
	assert.Equal(t, DefaultConfig().HalfOpenMaxCalls, b.cfg.HalfOpenMaxCalls)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 3, ResetTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Call(ctx, fail), upstream)
	}
	require.NoError(t, b.Call(ctx, ok), "a success resets the count")
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Call(ctx, fail), upstream)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Call(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.True(t, types.IsTransient(err))
}

func TestBreaker_CallerErrorsDoNotCount(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 1})
	bad := types.NewError(types.ErrInvalidRequest, "bad field")
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, b.Call(context.Background(), func(context.Context) error { return bad }), bad)
	}
	assert.Equal(t, StateClosed, b.State())

	assert.Error(t, b.Call(context.Background(), func(context.Context) error { return errors.New("reset by peer") }))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b, now := newTestBreaker(Config{Threshold: 1, ResetTimeout: time.Minute, HalfOpenMaxCalls: 1})
	ctx := context.Background()

	assert.Error(t, b.Call(ctx, fail))
	assert.Equal(t, StateOpen, b.State())

	*now = now.Add(2 * time.Minute)
	assert.Error(t, b.Call(ctx, fail), "failed probe")
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Call(ctx, ok), ErrCircuitOpen)

	*now = now.Add(2 * time.Minute)
	require.NoError(t, b.Call(ctx, ok))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenProbeQuota(t *testing.T) {
	b, now := newTestBreaker(Config{Threshold: 1, ResetTimeout: time.Second, HalfOpenMaxCalls: 1})
	ctx := context.Background()
	assert.Error(t, b.Call(ctx, fail))
	*now = now.Add(2 * time.Second)

	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Call(ctx, func(context.Context) error { <-release; return nil })
	}()
	require.Eventually(t, func() bool { return b.State() == StateHalfOpen }, time.Second, time.Millisecond)
	assert.ErrorIs(t, b.Call(ctx, ok), ErrTooManyCallsInHalfOpen)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_TimeoutAndReset(t *testing.T) {
	changes := make(chan [2]State, 4)
	b, _ := newTestBreaker(Config{
		Threshold:     1,
		Timeout:       5 * time.Millisecond,
		OnStateChange: func(from, to State) { changes <- [2]State{from, to} },
	})

	got, err := CallTyped(context.Background(), b, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, types.NewError(types.ErrUpstreamTimeout, "slow").WithCause(ctx.Err())
	})
	assert.Zero(t, got)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, [2]State{StateClosed, StateOpen}, <-changes)

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, [2]State{StateOpen, StateClosed}, <-changes)

	v, err := CallTyped(context.Background(), b, func(context.Context) (string, error) { return "fine", nil })
	require.NoError(t, err)
	assert.Equal(t, "fine", v)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
