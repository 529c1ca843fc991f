package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustsRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(), func() error {
		attempts++
		return errors.New("down")
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.Contains(t, err.Error(), "failed after 3 retries")
}

func TestRetry_StopsOnNonRetryableError(t *testing.T) {
	cfg := fastRetry()
	cfg.RetryIf = IsRetryable
	attempts := 0

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return ProviderMalformed("openai", nil)
	})

	assert.Equal(t, 1, attempts)
	assert.True(t, errors.Is(err, ErrProviderMalformed))
}

func TestRetry_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, fastRetry(), func() error {
		attempts++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	attempts := 0
	got, err := RetryWithResult(context.Background(), fastRetry(), func() ([]float32, error) {
		attempts++
		if attempts == 1 {
			return nil, ProviderTimeout("embedder", nil)
		}
		return []float32{1, 2}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, got)
}

func TestRetryConfig_Backoff(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 3}

	assert.Equal(t, 100*time.Millisecond, cfg.backoff(0))
	assert.Equal(t, 300*time.Millisecond, cfg.backoff(1))
	assert.Equal(t, 900*time.Millisecond, cfg.backoff(2))
	assert.Equal(t, time.Second, cfg.backoff(3), "capped")

	cfg.Jitter = true
	for i := 0; i < 20; i++ {
		d := cfg.backoff(1)
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.Less(t, d, 300*time.Millisecond)
	}
}

func TestRetryConfig_ZeroValueTriesOnce(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryConfig{}, func() error {
		attempts++
		return errors.New("down")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}
