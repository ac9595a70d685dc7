package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
		Factor:     2,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	// MaxRetries+1 total invocations.
	assert.Equal(t, 4, calls)
}

func TestRetry_EventualSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ShouldRetryBailsOut(t *testing.T) {
	fatal := errors.New("fatal")
	policy := fastPolicy(5)
	policy.ShouldRetry = func(err error, attempt int) bool {
		return !errors.Is(err, fatal)
	}

	calls := 0
	err := Retry(context.Background(), policy, func(context.Context) error {
		calls++
		return fatal
	})
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls, "non-retryable error should stop after first attempt")
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Factor: 2}

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Retry(ctx, policy, func(context.Context) error {
		calls++
		return errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPolicy_DelayGrowsAndCaps(t *testing.T) {
	policy := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Factor: 2, MaxRetries: 10}

	for attempt := 0; attempt < 10; attempt++ {
		d := policy.Delay(attempt)

		base := float64(policy.BaseDelay)
		for i := 0; i < attempt; i++ {
			base *= policy.Factor
		}
		minExpected := time.Duration(base)
		if minExpected > policy.MaxDelay {
			minExpected = policy.MaxDelay
		}

		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, policy.MaxDelay, "delay must never exceed MaxDelay")
		if minExpected < policy.MaxDelay {
			assert.GreaterOrEqual(t, d, minExpected, "delay must include the exponential base")
		}
	}
}

func TestPolicy_DelayMonotonicInExpectation(t *testing.T) {
	policy := Policy{BaseDelay: 10 * time.Millisecond, MaxDelay: 10 * time.Second, Factor: 2, MaxRetries: 10}

	// Jitter is bounded by BaseDelay/2, so the exponential term dominates:
	// the minimum possible delay at attempt k exceeds the maximum possible
	// delay at attempt k-2.
	prev := time.Duration(0)
	for attempt := 0; attempt < 6; attempt += 2 {
		d := policy.Delay(attempt)
		assert.Greater(t, d, prev)
		prev = d
	}
}
