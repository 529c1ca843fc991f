package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
)

func TestNewEmbedder(t *testing.T) {
	t.Run("static is default and cached", func(t *testing.T) {
		e, err := NewEmbedder(Config{})
		require.NoError(t, err)
		cached, ok := e.(*CachedEmbedder)
		require.True(t, ok)
		assert.IsType(t, &StaticEmbedder{}, cached.Inner())
		assert.Equal(t, StaticDimensions, e.Dimensions())
	})

	t.Run("cache can be disabled", func(t *testing.T) {
		e, err := NewEmbedder(Config{Provider: ProviderStatic, Dimensions: 64, CacheSize: -1})
		require.NoError(t, err)
		assert.IsType(t, &StaticEmbedder{}, e)
		assert.Equal(t, 64, e.Dimensions())
	})

	t.Run("openai requires a model", func(t *testing.T) {
		_, err := NewEmbedder(Config{Provider: ProviderOpenAI, Dimensions: 8})
		require.Error(t, err)
		assert.Equal(t, rerrors.ErrCodeConfigInvalid, rerrors.GetCode(err))
	})

	t.Run("openai", func(t *testing.T) {
		e, err := NewEmbedder(Config{Provider: "OpenAI", Model: "m", Dimensions: 8, CacheSize: -1})
		require.NoError(t, err)
		assert.Equal(t, "m", e.ModelName())
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewEmbedder(Config{Provider: "mlx"})
		require.Error(t, err)
		assert.Equal(t, rerrors.ErrCodeConfigInvalid, rerrors.GetCode(err))
	})
}

func TestClampBatchSize(t *testing.T) {
	assert.Equal(t, DefaultBatchSize, ClampBatchSize(0))
	assert.Equal(t, 1, ClampBatchSize(1))
	assert.Equal(t, MaxBatchSize, ClampBatchSize(10_000))
}
