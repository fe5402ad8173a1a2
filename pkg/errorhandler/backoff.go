package errorhandler

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// ComputeDelay returns the delay before retrying after the given failed attempt (1-based).
// With jitter the delay is scaled by a uniform factor in [0.5, 1.0] before
// being clamped to cfg.MaxDelay.
func ComputeDelay(cfg Config, attempt int) time.Duration {
	return computeDelay(cfg, attempt, rand.Float64)
}

func computeDelay(cfg Config, attempt int, random func() float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := float64(cfg.RetryDelay)

	var delay float64

	switch cfg.RetryBackoff {
	case BackoffLinear:
		delay = base * float64(attempt)
	case BackoffExponential:
		delay = base * math.Pow(BackoffMultiplier, float64(attempt-1))
	default:
		delay = base
	}

	if cfg.Jitter {
		delay *= 0.5 + random()*0.5
	}

	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}

	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(delay)
}

// WaitForRetry blocks for delay or until ctx is done, in which case the pending
// retry must be dropped and ctx.Err() is returned.
func WaitForRetry(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
