package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/sunyadvisor/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func fastPolicy(retries int) Policy {
	return Policy{MaxRetries: retries, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

var transient = types.NewError(types.ErrUpstreamError, "502 from upstream")

func TestBackoffRetryer_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := NewBackoffRetryer(fastPolicy(3), zap.NewNop()).Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffRetryer_RetriesTransient(t *testing.T) {
	calls := 0
	var retried []int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, err error, _ time.Duration) {
		retried = append(retried, attempt)
		assert.ErrorIs(t, err, transient)
	}
	v, err := DoTyped(context.Background(), NewBackoffRetryer(p, nil), func() (string, error) {
		calls++
		if calls < 3 {
			return "", transient
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestBackoffRetryer_PermanentErrorStops(t *testing.T) {
	permanent := types.NewError(types.ErrInvalidRequest, "bad field")
	calls := 0
	err := NewBackoffRetryer(fastPolicy(3), nil).Do(context.Background(), func() error {
		calls++
		return permanent
	})
	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = NewBackoffRetryer(fastPolicy(3), nil).Do(context.Background(), func() error {
		calls++
		return errors.New("plain error")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffRetryer_Exhausted(t *testing.T) {
	calls := 0
	err := NewBackoffRetryer(fastPolicy(2), nil).Do(context.Background(), func() error {
		calls++
		return transient
	})
	assert.ErrorIs(t, err, transient)
	assert.ErrorContains(t, err, "failed after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestBackoffRetryer_CustomRetryable(t *testing.T) {
	sentinel := errors.New("flaky")
	p := fastPolicy(1)
	p.Retryable = func(err error) bool { return errors.Is(err, sentinel) }
	calls := 0
	err := NewBackoffRetryer(p, nil).Do(context.Background(), func() error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, calls)
}

func TestBackoffRetryer_ContextCancelled(t *testing.T) {
	p := fastPolicy(5)
	p.InitialDelay = time.Hour
	p.MaxDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	p.OnRetry = func(int, error, time.Duration) { cancel() }

	err := NewBackoffRetryer(p, nil).Do(ctx, func() error { return transient })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelayBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := time.Duration(rapid.IntRange(1, 1000).Draw(t, "initial_ms")) * time.Millisecond
		maxDelay := initial * time.Duration(rapid.IntRange(1, 100).Draw(t, "cap"))
		attempt := rapid.IntRange(1, 20).Draw(t, "attempt")
		jitter := rapid.Bool().Draw(t, "jitter")

		r := NewBackoffRetryer(Policy{
			MaxRetries:   attempt,
			InitialDelay: initial,
			MaxDelay:     maxDelay,
			Multiplier:   2,
			Jitter:       jitter,
		}, nil).(*backoffRetryer)

		d := r.delay(attempt)
		if d < initial {
			t.Fatalf("delay %v below initial %v", d, initial)
		}
		limit := maxDelay
		if jitter {
			limit = maxDelay + maxDelay/4 + 1
		}
		if d > limit {
			t.Fatalf("delay %v above limit %v", d, limit)
		}
	})
}
