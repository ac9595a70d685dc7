// Package backoff provides retry, throttle, and debounce primitives used
// throughout the planwire client. All helpers are dependency-free and safe
// for concurrent use.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Default policy values, applied by Policy.withDefaults when a field is zero.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 1 * time.Second
	DefaultMaxDelay   = 30 * time.Second
	DefaultFactor     = 2.0
)

// Policy describes an exponential backoff schedule.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt.
	// The operation runs at most MaxRetries+1 times.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay.
	MaxDelay time.Duration

	// Factor is the exponential growth factor between retries.
	Factor float64

	// ShouldRetry decides whether a failed attempt is retried.
	// attempt is zero-based. Nil means retry every failure.
	ShouldRetry func(err error, attempt int) bool
}

// DefaultPolicy returns the standard retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Factor:     DefaultFactor,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries == 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Factor <= 0 {
		p.Factor = DefaultFactor
	}
	return p
}

// Delay returns the wait before retrying the given zero-based attempt:
// min(BaseDelay * Factor^attempt + jitter, MaxDelay), where jitter is
// uniform random in [0, BaseDelay/2).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()

	delay := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= p.Factor
		if delay >= float64(p.MaxDelay) {
			break
		}
	}

	jitter := rand.Float64() * 0.5 * float64(p.BaseDelay)
	total := time.Duration(delay + jitter)
	if total > p.MaxDelay {
		total = p.MaxDelay
	}
	return total
}

// Retry runs op, retrying per the policy until it succeeds, the policy is
// exhausted, ShouldRetry declines, or ctx is cancelled. The last error is
// returned unwrapped so callers can inspect it.
func Retry(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	policy = policy.withDefaults()

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == policy.MaxRetries {
			break
		}
		if policy.ShouldRetry != nil && !policy.ShouldRetry(lastErr, attempt) {
			break
		}

		timer := time.NewTimer(policy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
