package reason

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
	"github.com/Aman-CERP/rolodex/internal/logging"
)

// fakeProvider answers with a fixed filter or error, optionally after
// blocking until release is closed.
type fakeProvider struct {
	filter  *Filter
	err     error
	release chan struct{}
	calls   atomic.Int32
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) ExtractFilter(ctx context.Context, _ string, _ Context, _ time.Duration) (*Filter, error) {
	p.calls.Add(1)
	if p.release != nil {
		<-p.release
	}
	return p.filter, p.err
}

func guardCfg() GuardConfig {
	return GuardConfig{Timeout: 50 * time.Millisecond, MaxFailures: 2, ResetTimeout: time.Hour}
}

func TestGuarded_Success(t *testing.T) {
	want := &Filter{Companies: []string{"Stripe"}}
	g := NewGuarded(&fakeProvider{filter: want}, guardCfg(), logging.Discard())

	got, err := g.ExtractFilter(context.Background(), "fintech", Context{}, 0)

	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "fake", g.Name())
	assert.Equal(t, rerrors.StateClosed, g.Breaker().State())
}

func TestGuarded_TimeoutEvenIfProviderIgnoresContext(t *testing.T) {
	// Given: a provider that blocks past the deadline
	p := &fakeProvider{release: make(chan struct{})}
	defer close(p.release)
	g := NewGuarded(p, guardCfg(), logging.Discard())

	// When: the call runs
	start := time.Now()
	_, err := g.ExtractFilter(context.Background(), "q", Context{}, 0)

	// Then: it returns a timeout as soon as the deadline passes
	assert.ErrorIs(t, err, rerrors.ErrProviderTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, g.Breaker().Failures())
}

func TestGuarded_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"plain error", errors.New("boom"), rerrors.ErrProviderUnavailable},
		{"deadline", context.DeadlineExceeded, rerrors.ErrProviderTimeout},
		{"already classified", rerrors.ProviderMalformed("fake", errors.New("bad json")), rerrors.ErrProviderMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuarded(&fakeProvider{err: tt.err}, guardCfg(), logging.Discard())

			_, err := g.ExtractFilter(context.Background(), "q", Context{}, 0)

			assert.ErrorIs(t, err, tt.want)
			assert.True(t, rerrors.IsProviderError(err))
		})
	}
}

func TestGuarded_CircuitOpensAfterFailures(t *testing.T) {
	p := &fakeProvider{err: errors.New("down")}
	g := NewGuarded(p, guardCfg(), logging.Discard())

	for range 2 {
		_, err := g.ExtractFilter(context.Background(), "q", Context{}, 0)
		require.Error(t, err)
	}
	require.Equal(t, rerrors.StateOpen, g.Breaker().State())

	// An open circuit fails fast without calling the provider.
	_, err := g.ExtractFilter(context.Background(), "q", Context{}, 0)

	assert.ErrorIs(t, err, rerrors.ErrProviderUnavailable)
	assert.ErrorIs(t, err, rerrors.ErrCircuitOpen)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestGuarded_CallerCancellationIsNotAFailure(t *testing.T) {
	p := &fakeProvider{release: make(chan struct{})}
	defer close(p.release)
	g := NewGuarded(p, GuardConfig{Timeout: time.Minute, MaxFailures: 1}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := g.ExtractFilter(ctx, "q", Context{}, 0)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, rerrors.IsProviderError(err))
	assert.Equal(t, 0, g.Breaker().Failures())
	assert.Equal(t, rerrors.StateClosed, g.Breaker().State())
}

func TestGuarded_CancelledBeforeCall(t *testing.T) {
	p := &fakeProvider{}
	g := NewGuarded(p, guardCfg(), logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.ExtractFilter(ctx, "q", Context{}, 0)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), p.calls.Load())
}
