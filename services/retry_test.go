package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mvercan/latch/core"
)

func TestRetryPolicy_Backoff(t *testing.T) {
	policy := RetryPolicy{Initial: 100 * time.Millisecond, Max: time.Second, Factor: 2, Jitter: 0.2}

	for attempt := 1; attempt <= 8; attempt++ {
		got := policy.Backoff(attempt)
		// Undithered values double per attempt, capped at Max.
		base := float64(policy.Initial)
		for i := 1; i < attempt; i++ {
			base *= policy.Factor
			if base >= float64(policy.Max) {
				base = float64(policy.Max)
				break
			}
		}
		lo := time.Duration(base * (1 - policy.Jitter))
		hi := time.Duration(base * (1 + policy.Jitter))
		if got < lo || got > hi {
			t.Errorf("Backoff(%d) = %v, want within [%v, %v]", attempt, got, lo, hi)
		}
	}
}

func TestRetry(t *testing.T) {
	transient := fmt.Errorf("%w: flaky link", core.ErrNetworkUnavailable)
	fast := RetryPolicy{Initial: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2, MaxAttempts: 4}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fast, func(context.Context) error {
			calls++
			if calls < 3 {
				return transient
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Retry() error = %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("terminal error stops immediately", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fast, func(context.Context) error {
			calls++
			return core.ErrInvalidCredentials
		})
		if !errors.Is(err, core.ErrInvalidCredentials) {
			t.Fatalf("Retry() error = %v", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fast, func(context.Context) error {
			calls++
			return transient
		})
		if !errors.Is(err, core.ErrNetworkUnavailable) {
			t.Fatalf("Retry() error = %v", err)
		}
		if calls != fast.MaxAttempts {
			t.Errorf("calls = %d, want %d", calls, fast.MaxAttempts)
		}
	})

	t.Run("context cancellation wins over backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		policy := RetryPolicy{Initial: time.Hour, Max: time.Hour, Factor: 2}
		go cancel()
		err := Retry(ctx, policy, func(context.Context) error { return transient })
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Retry() error = %v, want context.Canceled", err)
		}
	})
}
