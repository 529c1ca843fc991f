package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedEmbedder_ImplementsEmbedderInterface(t *testing.T) {
	var _ Embedder = NewCachedEmbedder(newMockEmbedder(4), 10)
}

func TestCachedEmbedder_EmbedHitsCacheOnRepeat(t *testing.T) {
	// Given: a cached embedder
	inner := newMockEmbedder(4)
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	// When: the same text is embedded twice
	first, err := cached.Embed(ctx, "google engineer")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "google engineer")
	require.NoError(t, err)

	// Then: the inner embedder is called once
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), inner.embedCalls.Load())

	hits, misses, entries := cached.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
	assert.Equal(t, 1, entries)
}

func TestCachedEmbedder_EmbedBatchOnlySendsMisses(t *testing.T) {
	inner := newMockEmbedder(8)
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "ab")
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(ctx, []string{"ab", "abc", "abcd"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	assert.Equal(t, 2, <-inner.batchSizes)
	assert.Equal(t, inner.vectorFor("ab"), vecs[0])
	assert.Equal(t, inner.vectorFor("abcd"), vecs[2])

	// All cached now.
	_, err = cached.EmbedBatch(ctx, []string{"abc", "abcd"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.batchCalls.Load())
}

func TestCachedEmbedder_ErrorsAreNotCached(t *testing.T) {
	inner := newMockEmbedder(4)
	inner.failFirst.Store(1)
	inner.failErr = errMockDown
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := cached.EmbedBatch(ctx, []string{"x"})
	require.ErrorIs(t, err, errMockDown)

	vecs, err := cached.EmbedBatch(ctx, []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	inner := newMockEmbedder(16)
	cached := NewCachedEmbedder(inner, 0)

	assert.Equal(t, 16, cached.Dimensions())
	assert.Equal(t, "mock-model", cached.ModelName())
	assert.Same(t, inner, cached.Inner())
	assert.NoError(t, cached.Close())
}

func TestCachedEmbedder_EmbedBatchDeduplicates(t *testing.T) {
	inner := newMockEmbedder(4)
	cached := NewCachedEmbedder(inner, 10)

	vecs, err := cached.EmbedBatch(context.Background(), []string{"ab", "abc", "ab"})

	require.NoError(t, err)
	assert.Equal(t, 2, <-inner.batchSizes)
	assert.Equal(t, vecs[0], vecs[2])
	assert.Equal(t, inner.vectorFor("abc"), vecs[1])
}

func TestCachedEmbedder_EmptyBatch(t *testing.T) {
	inner := newMockEmbedder(4)
	vecs, err := NewCachedEmbedder(inner, 10).EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Zero(t, inner.batchCalls.Load())
}
