package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVectorIndex(t *testing.T) *VectorIndex {
	t.Helper()
	v := NewVectorIndex(DefaultVectorIndexConfig(4))
	require.NoError(t, v.Add("a", []float32{1, 0, 0, 0}))
	require.NoError(t, v.Add("b", []float32{0, 1, 0, 0}))
	require.NoError(t, v.Add("c", []float32{0.9, 0.1, 0, 0}))
	require.NoError(t, v.Add("d", []float32{0, 0, 1, 0}))
	return v
}

func TestVectorIndex_SearchOrdersBySimilarity(t *testing.T) {
	v := newTestVectorIndex(t)

	hits, err := v.Search([]float32{2, 0, 0, 0}, 3)

	require.NoError(t, err)
	require.Len(t, hits, 2, "orthogonal vectors fall below the similarity floor")
	assert.Equal(t, "a", hits[0].ContactID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-5)
	assert.Equal(t, "c", hits[1].ContactID)
	assert.Greater(t, hits[1].Similarity, 0.9)
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	v := NewVectorIndex(DefaultVectorIndexConfig(4))

	err := v.Add("x", []float32{1, 2})
	var dm ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 4, dm.Expected)
	assert.Equal(t, 2, dm.Got)

	_, err = v.Search([]float32{1}, 1)
	assert.Error(t, err)
}

func TestVectorIndex_ZeroVectorsAreRejected(t *testing.T) {
	v := NewVectorIndex(DefaultVectorIndexConfig(3))

	require.ErrorIs(t, v.Add("zero", []float32{0, 0, 0}), ErrZeroVector)
	assert.False(t, v.Contains("zero"))
	assert.Equal(t, 0, v.Len())

	hits, err := v.Search([]float32{0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorIndex_EmptyIndex(t *testing.T) {
	v := NewVectorIndex(DefaultVectorIndexConfig(2))

	hits, err := v.Search([]float32{1, 0}, 5)

	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorIndex_ReAddReplacesVector(t *testing.T) {
	v := newTestVectorIndex(t)

	require.NoError(t, v.Add("a", []float32{0, 0, 0, 1}))

	hits, err := v.Search([]float32{0, 0, 0, 1}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "a", hits[0].ContactID)
	assert.Equal(t, 4, v.Len())
}

func TestDistanceToSimilarity_Clamps(t *testing.T) {
	assert.Equal(t, 1.0, distanceToSimilarity(0))
	assert.InDelta(t, 0.25, distanceToSimilarity(0.75), 1e-6)
	assert.Equal(t, 0.0, distanceToSimilarity(1.5))
	assert.Equal(t, 1.0, distanceToSimilarity(-0.01))
}
