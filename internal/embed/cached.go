package embed

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultEmbeddingCacheSize = 1000

type cacheKey struct {
	model string
	text  string
}

// CachedEmbedder keeps recent vectors in an LRU keyed by model and text.
// Failed calls are never cached.
type CachedEmbedder struct {
	inner  Embedder
	lru    *lru.Cache[cacheKey, []float32]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedEmbedder wraps inner. size <= 0 selects DefaultEmbeddingCacheSize.
func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultEmbeddingCacheSize
	}
	l, _ := lru.New[cacheKey, []float32](size)
	return &CachedEmbedder{inner: inner, lru: l}
}

func (c *CachedEmbedder) key(text string) cacheKey {
	return cacheKey{model: c.inner.ModelName(), text: text}
}

func (c *CachedEmbedder) lookup(text string) ([]float32, bool) {
	v, ok := c.lru.Get(c.key(text))
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.lookup(text); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.lru.Add(c.key(text), v)
	return v, nil
}

// EmbedBatch sends the uncached texts to the inner embedder in a single
// call. Duplicates within texts are embedded once.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	pending := map[string][]int{}
	var missing []string
	for i, text := range texts {
		if idx, seen := pending[text]; seen {
			pending[text] = append(idx, i)
			continue
		}
		if v, ok := c.lookup(text); ok {
			out[i] = v
			continue
		}
		pending[text] = []int{i}
		missing = append(missing, text)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, text := range missing {
		c.lru.Add(c.key(text), vecs[j])
		for _, i := range pending[text] {
			out[i] = vecs[j]
		}
	}
	return out, nil
}

// Stats reports lookups served from the cache, lookups that missed, and
// the number of cached vectors.
func (c *CachedEmbedder) Stats() (hits, misses uint64, entries int) {
	return c.hits.Load(), c.misses.Load(), c.lru.Len()
}

func (c *CachedEmbedder) Dimensions() int   { return c.inner.Dimensions() }
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }
func (c *CachedEmbedder) Inner() Embedder   { return c.inner }

// Close drops cached vectors and closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	c.lru.Purge()
	return c.inner.Close()
}
