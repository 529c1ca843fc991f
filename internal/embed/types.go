// Package embed turns contact and query text into dense vectors.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	MinBatchSize     = 1
	MaxBatchSize     = 256
	DefaultBatchSize = 32

	// DefaultBuildTimeout bounds one index-time batch, retries included.
	DefaultBuildTimeout = 30 * time.Second

	StaticDimensions = 512
)

// Embedder produces vectors of a fixed dimension. Implementations must be
// safe for concurrent use, and EmbedBatch keeps input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Close() error
}

// ClampBatchSize maps n into [MinBatchSize, MaxBatchSize]; n <= 0 selects
// DefaultBatchSize.
func ClampBatchSize(n int) int {
	if n <= 0 {
		return DefaultBatchSize
	}
	return min(max(n, MinBatchSize), MaxBatchSize)
}

// normalizeVector returns a unit-length copy of v. A zero vector is
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var ss float64
	for _, x := range v {
		ss += float64(x) * float64(x)
	}
	if ss == 0 {
		return v
	}
	inv := 1 / math.Sqrt(ss)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
