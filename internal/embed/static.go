package embed

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync/atomic"

	"github.com/Aman-CERP/rolodex/internal/store"
)

// ErrEmbedderClosed is returned by calls made after Close.
var ErrEmbedderClosed = errors.New("embed: embedder is closed")

const (
	wordWeight    = 0.7
	trigramWeight = 0.3
)

// stopwords carry no information about a contact and are skipped.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {},
	"at": {}, "in": {}, "of": {}, "with": {}, "for": {},
	"who": {}, "is": {}, "are": {}, "on": {}, "to": {},
	"people": {}, "someone": {}, "find": {}, "me": {},
}

// StaticEmbedder is an offline feature-hashing embedder. Every word and its
// boundary-padded trigrams are hashed into dims buckets, so texts sharing
// words or close spellings get similar vectors. Output is stable across
// processes, which lets persisted vectors be reused.
type StaticEmbedder struct {
	dims   int
	closed atomic.Bool
}

// NewStaticEmbedder uses StaticDimensions when dims <= 0.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed returns a unit vector, or a zero vector when text has no
// indexable words.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.closed.Load() {
		return nil, ErrEmbedderClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return normalizeVector(e.features(text)), nil
}

func (e *StaticEmbedder) features(text string) []float32 {
	v := make([]float32, e.dims)
	for _, word := range store.Tokenize(text) {
		if _, skip := stopwords[word]; skip {
			continue
		}
		v[e.bucket(word)] += wordWeight
		for _, g := range wordNgrams(word, 3) {
			v[e.bucket(g)] += trigramWeight
		}
	}
	return v
}

func (e *StaticEmbedder) bucket(s string) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(e.dims))
}

// wordNgrams returns the n-rune windows of "^word$". Words shorter than the
// window yield the padded word itself.
func wordNgrams(word string, n int) []string {
	r := []rune("^" + word + "$")
	if len(r) < n {
		return []string{string(r)}
	}
	out := make([]string, len(r)-n+1)
	for i := range out {
		out[i] = string(r[i : i+n])
	}
	return out
}

func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (e *StaticEmbedder) Dimensions() int { return e.dims }

// ModelName encodes the dimension so vectors built at another size are
// never reused.
func (e *StaticEmbedder) ModelName() string { return fmt.Sprintf("static-%d", e.dims) }

func (e *StaticEmbedder) Close() error {
	e.closed.Store(true)
	return nil
}
