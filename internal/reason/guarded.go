package reason

import (
	"context"
	"errors"
	"log/slog"
	"time"

	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
)

// GuardConfig configures a Guarded provider.
type GuardConfig struct {
	// Timeout applies when the caller passes none.
	Timeout time.Duration

	// MaxFailures opens the circuit after this many consecutive failures.
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before a probe.
	ResetTimeout time.Duration
}

// DefaultGuardConfig returns the defaults used by the engine.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:      DefaultTimeout,
		MaxFailures:  3,
		ResetTimeout: 30 * time.Second,
	}
}

// Guarded wraps a provider with a hard timeout, a circuit breaker and
// error classification. Every failure it returns is a provider-class
// RolodexError, except caller cancellation which is returned as ctx.Err().
type Guarded struct {
	inner   Provider
	timeout time.Duration
	breaker *rerrors.CircuitBreaker
	logger  *slog.Logger
}

// NewGuarded wraps p.
func NewGuarded(p Provider, cfg GuardConfig, logger *slog.Logger) *Guarded {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []rerrors.CircuitBreakerOption{
		rerrors.WithStateChange(func(name string, from, to rerrors.State) {
			logger.Warn("reasoning_circuit_state",
				slog.String("provider", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		}),
	}
	if cfg.MaxFailures > 0 {
		opts = append(opts, rerrors.WithMaxFailures(cfg.MaxFailures))
	}
	if cfg.ResetTimeout > 0 {
		opts = append(opts, rerrors.WithResetTimeout(cfg.ResetTimeout))
	}

	return &Guarded{
		inner:   p,
		timeout: cfg.Timeout,
		breaker: rerrors.NewCircuitBreaker(p.Name(), opts...),
		logger:  logger,
	}
}

// Name returns the wrapped provider's name.
func (g *Guarded) Name() string { return g.inner.Name() }

// Inner returns the wrapped provider.
func (g *Guarded) Inner() Provider { return g.inner }

// Breaker exposes the circuit breaker for diagnostics.
func (g *Guarded) Breaker() *rerrors.CircuitBreaker { return g.breaker }

// ExtractFilter calls the wrapped provider under the timeout. An open
// circuit fails fast with ProviderUnavailable. Caller cancellation does not
// count against the circuit.
func (g *Guarded) ExtractFilter(ctx context.Context, query string, rc Context, timeout time.Duration) (*Filter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = g.timeout
	}
	if !g.breaker.Allow() {
		return nil, rerrors.ProviderUnavailable(g.Name(), rerrors.ErrCircuitOpen)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		filter *Filter
		err    error
	}
	done := make(chan result, 1)
	go func() {
		f, err := g.inner.ExtractFilter(callCtx, query, rc, timeout)
		done <- result{f, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = result{err: callCtx.Err()}
	}

	if res.err == nil {
		g.breaker.RecordSuccess()
		return res.filter, nil
	}

	if ctx.Err() != nil {
		g.breaker.Abandon()
		return nil, ctx.Err()
	}

	g.breaker.RecordFailure()
	err := classify(g.Name(), res.err)
	g.logger.Warn("reasoning_provider_failed",
		slog.String("provider", g.Name()),
		slog.String("code", rerrors.GetCode(err)),
		slog.String("error", res.err.Error()))
	return nil, err
}

// classify maps any provider failure onto the provider taxonomy.
func classify(provider string, err error) error {
	if rerrors.IsProviderError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return rerrors.ProviderTimeout(provider, err)
	}
	return rerrors.ProviderUnavailable(provider, err)
}
