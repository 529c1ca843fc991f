package errors

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig is an exponential backoff policy. The zero value makes one
// attempt.
type RetryConfig struct {
	MaxRetries   int // attempts after the first
	InitialDelay time.Duration
	MaxDelay     time.Duration // 0 means uncapped
	Multiplier   float64
	Jitter       bool // scale each wait into [50%, 100%)

	// RetryIf filters errors worth another attempt. Nil retries all.
	RetryIf func(error) bool
}

// DefaultRetryConfig is used for index-time provider calls. Search-time
// calls are never retried.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
		RetryIf:      IsRetryable,
	}
}

// backoff returns the wait before retry n, counting from zero.
func (c RetryConfig) backoff(n int) time.Duration {
	mult := c.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(c.InitialDelay) * math.Pow(mult, float64(n))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.Jitter {
		d *= 0.5 + rand.Float64()/2
	}
	return time.Duration(d)
}

// Retry calls fn until it succeeds, RetryIf rejects its error, retries run
// out or ctx ends.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// RetryWithResult is Retry for functions that return a value.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn()
		switch {
		case err == nil:
			return v, nil
		case cfg.RetryIf != nil && !cfg.RetryIf(err):
			return zero, err
		case n >= cfg.MaxRetries:
			return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, err)
		}

		t := time.NewTimer(cfg.backoff(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
}
