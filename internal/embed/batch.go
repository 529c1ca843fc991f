package embed

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
)

// BatchConfig configures index-time embedding.
type BatchConfig struct {
	// BatchSize is the number of texts sent per provider call.
	BatchSize int

	// Workers is the number of batches in flight. Defaults to NumCPU/2.
	Workers int

	// Timeout bounds each batch call, including retries.
	Timeout time.Duration

	// Retry is the policy for transient provider failures.
	Retry rerrors.RetryConfig
}

// DefaultBatchConfig returns the index-time defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchSize: DefaultBatchSize,
		Workers:   max(1, runtime.NumCPU()/2),
		Timeout:   DefaultBuildTimeout,
		Retry:     rerrors.DefaultRetryConfig(),
	}
}

// ProgressFunc receives the number of texts processed so far.
type ProgressFunc func(done, total int)

// BatchEmbedder fans index-time embedding out over an ants worker pool.
// It is safe for concurrent use; builds for different users share the pool.
type BatchEmbedder struct {
	embedder Embedder
	pool     *ants.Pool
	cfg      BatchConfig
	logger   *slog.Logger
}

// NewBatchEmbedder creates a pool-backed batch embedder. Call Release when done.
func NewBatchEmbedder(e Embedder, cfg BatchConfig, logger *slog.Logger) (*BatchEmbedder, error) {
	cfg.BatchSize = ClampBatchSize(cfg.BatchSize)
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultBatchConfig().Workers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBuildTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}

	return &BatchEmbedder{embedder: e, pool: pool, cfg: cfg, logger: logger}, nil
}

// Embedder returns the wrapped embedder.
func (b *BatchEmbedder) Embedder() Embedder {
	return b.embedder
}

// EmbedAll embeds texts in batches. A batch that still fails after retries
// leaves nil vectors at its positions and is reported in the returned
// count; the caller indexes those items lexically only. The error is
// non-nil only when ctx is cancelled.
func (b *BatchEmbedder) EmbedAll(ctx context.Context, texts []string, progress ProgressFunc) ([][]float32, int, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, 0, nil
	}

	var (
		wg     sync.WaitGroup
		done   atomic.Int64
		failed atomic.Int64
	)

	for start := 0; start < len(texts); start += b.cfg.BatchSize {
		end := min(start+b.cfg.BatchSize, len(texts))
		lo, hi := start, end

		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()

			vecs, err := b.embedBatch(ctx, texts[lo:hi])
			if err != nil {
				failed.Add(int64(hi - lo))
				b.logger.Warn("embedding_batch_failed",
					slog.Int("offset", lo),
					slog.Int("size", hi-lo),
					slog.String("code", rerrors.GetCode(err)),
					slog.String("error", err.Error()))
			} else {
				copy(out[lo:hi], vecs)
			}

			n := done.Add(int64(hi - lo))
			if progress != nil {
				progress(int(n), len(texts))
			}
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, 0, fmt.Errorf("submit embedding batch: %w", err)
		}
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return out, int(failed.Load()), nil
}

func (b *BatchEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	return rerrors.RetryWithResult(ctx, b.cfg.Retry, func() ([][]float32, error) {
		return b.embedder.EmbedBatch(ctx, texts)
	})
}

// Release stops the worker pool.
func (b *BatchEmbedder) Release() {
	b.pool.Release()
}
