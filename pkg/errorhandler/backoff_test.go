package errorhandler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeDelay_Exponential(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Second

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}

	for i, want := range expected {
		assert.Equal(t, want, ComputeDelay(cfg, i+1), "attempt %d", i+1)
	}

	assert.Equal(t, 60*time.Second, ComputeDelay(cfg, 200))
}

func TestComputeDelay_FixedAndLinear(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryDelay = 500 * time.Millisecond

	cfg.RetryBackoff = BackoffFixed
	assert.Equal(t, 500*time.Millisecond, ComputeDelay(cfg, 1))
	assert.Equal(t, 500*time.Millisecond, ComputeDelay(cfg, 5))

	cfg.RetryBackoff = BackoffLinear
	assert.Equal(t, 500*time.Millisecond, ComputeDelay(cfg, 1))
	assert.Equal(t, 1500*time.Millisecond, ComputeDelay(cfg, 3))
	assert.Equal(t, 60*time.Second, ComputeDelay(cfg, 1000))
}

func TestComputeDelay_JitterBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jitter = true

	for attempt := 1; attempt <= 6; attempt++ {
		unjittered := time.Second << (attempt - 1)

		assert.Equal(t, unjittered/2, computeDelay(cfg, attempt, func() float64 { return 0 }))
		assert.Equal(t, unjittered, computeDelay(cfg, attempt, func() float64 { return 1 }))

		for range 50 {
			delay := ComputeDelay(cfg, attempt)
			assert.GreaterOrEqual(t, delay, unjittered/2)
			assert.LessOrEqual(t, delay, unjittered)
		}
	}

	// attempt 7 is 64s before jitter; the clamp still applies afterwards
	assert.Equal(t, 60*time.Second, computeDelay(cfg, 7, func() float64 { return 1 }))
	assert.Equal(t, 32*time.Second, computeDelay(cfg, 7, func() float64 { return 0 }))
}

func TestWaitForRetry(t *testing.T) {
	assert.NoError(t, WaitForRetry(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := WaitForRetry(ctx, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
