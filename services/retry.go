package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/mvercan/latch/core"
)

// RetryPolicy is the caller-owned backoff policy for transient failures.
// The session manager and negotiator never retry on their own; callers
// wrap background refresh (or sign-in) attempts with Retry when they want
// ErrNetworkUnavailable smoothed over.
type RetryPolicy struct {
	Initial     time.Duration
	Max         time.Duration
	Factor      float64
	Jitter      float64 // fraction of the delay, e.g. 0.2 for ±20%
	MaxAttempts int     // 0 means retry until the context ends
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Initial:     500 * time.Millisecond,
		Max:         30 * time.Second,
		Factor:      2,
		Jitter:      0.2,
		MaxAttempts: 6,
	}
}

// Backoff returns the jittered delay before the given attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := float64(p.Initial)
	for i := 1; i < attempt; i++ {
		d *= p.Factor
		if d >= float64(p.Max) {
			d = float64(p.Max)
			break
		}
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (2*rand.Float64() - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Retry runs op until it succeeds, fails with a non-transient error, or
// the policy gives up. Only ErrNetworkUnavailable is retried; everything
// else in the taxonomy is terminal for the attempt by definition.
func Retry(ctx context.Context, p RetryPolicy, op func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil || !errors.Is(err, core.ErrNetworkUnavailable) {
			return err
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return err
		}

		select {
		case <-time.After(p.Backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
