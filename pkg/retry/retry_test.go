package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(retries int) *Config {
	return &Config{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

type declared struct{ retry bool }

func (d declared) Error() string     { return "declared" }
func (d declared) IsRetryable() bool { return d.retry }

func TestDo_EventualSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("invalid input")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	want := errors.New("still broken")
	err := Do(context.Background(), fastConfig(2), func() error {
		calls++
		return want
	})
	assert.ErrorIs(t, err, want)
	assert.Equal(t, 3, calls)
}

func TestDoIfRetryable_StopsOnPermanent(t *testing.T) {
	calls := 0
	err := DoIfRetryable(context.Background(), fastConfig(5), func() error {
		calls++
		return errors.New("registry returned status 404: not found")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoIfRetryable_RetriesTransient(t *testing.T) {
	calls := 0
	err := DoIfRetryable(context.Background(), fastConfig(3), func() error {
		calls++
		if calls == 1 {
			return errors.New("read: connection reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoIfRetryable_RepeatedErrorEscalates(t *testing.T) {
	cfg := fastConfig(10)
	cfg.MaxSameErrorType = 2

	calls := 0
	err := DoIfRetryable(context.Background(), cfg, func() error {
		calls++
		return errors.New("status 503: service unavailable")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repeated error (2 times, type=503)")
	assert.Equal(t, 2, calls)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(2), func() (string, error) {
		calls++
		if calls == 1 {
			return "", declared{retry: true}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 1}

	calls := 0
	err := Do(ctx, cfg, func() error {
		calls++
		cancel()
		return errors.New("timeout")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(errors.New("dial tcp: i/o timeout")))
	assert.True(t, IsRetryable(errors.New("HTTP 429 too many requests")))
	assert.False(t, IsRetryable(errors.New("invalid slide schema")))
	assert.False(t, IsRetryable(context.Canceled))

	// Declared retryability wins over message patterns, even when wrapped.
	assert.False(t, IsRetryable(fmt.Errorf("call: %w", declared{retry: false})))
	assert.True(t, IsRetryable(fmt.Errorf("call: %w", declared{retry: true})))
}

func TestApplyJitter(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, base, applyJitter(base, 0))
	for i := 0; i < 50; i++ {
		d := applyJitter(base, 0.1)
		assert.GreaterOrEqual(t, d, 90*time.Millisecond)
		assert.LessOrEqual(t, d, 110*time.Millisecond)
	}
}
