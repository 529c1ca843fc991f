package store

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// VectorIndex is a cosine HNSW graph over contact embeddings, built from
// coder/hnsw. Vectors are normalized on insert so the graph's cosine
// distance lies in [0, 2].
type VectorIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorIndexConfig

	idMap   map[string]uint64 // contact id -> graph key
	keyMap  map[uint64]string // graph key -> contact id
	nextKey uint64
}

// NewVectorIndex creates an empty vector index.
func NewVectorIndex(cfg VectorIndexConfig) *VectorIndex {
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = 64
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25
	graph.Rng = rand.New(rand.NewSource(cfg.Seed))

	return &VectorIndex{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// Dimensions returns the configured vector length.
func (v *VectorIndex) Dimensions() int {
	return v.config.Dimensions
}

// Add inserts the vector for id. A zero vector is rejected with
// ErrZeroVector. Re-adding an id orphans the old node.
func (v *VectorIndex) Add(id string, vector []float32) error {
	if len(vector) != v.config.Dimensions {
		return ErrDimensionMismatch{Expected: v.config.Dimensions, Got: len(vector)}
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)
	if !normalizeVectorInPlace(vec) {
		return ErrZeroVector
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if old, ok := v.idMap[id]; ok {
		delete(v.keyMap, old)
	}

	key := v.nextKey
	v.nextKey++
	v.graph.Add(hnsw.MakeNode(key, vec))
	v.idMap[id] = key
	v.keyMap[key] = id

	return nil
}

// Search returns up to k contacts whose similarity to query is at least
// MinSimilarity, ordered by similarity then contact id.
func (v *VectorIndex) Search(query []float32, k int) ([]VectorHit, error) {
	if len(query) != v.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: v.config.Dimensions, Got: len(query)}
	}
	if k <= 0 {
		return []VectorHit{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if !normalizeVectorInPlace(q) {
		return []VectorHit{}, nil
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.graph.Len() == 0 {
		return []VectorHit{}, nil
	}

	// Ask for extra neighbors so orphaned nodes do not starve the result.
	want := k + v.graph.Len() - len(v.idMap)
	nodes := v.graph.Search(q, want)

	hits := make([]VectorHit, 0, len(nodes))
	for _, node := range nodes {
		id, ok := v.keyMap[node.Key]
		if !ok {
			continue
		}
		dist := v.graph.Distance(q, node.Value)
		sim := distanceToSimilarity(dist)
		if sim < v.config.MinSimilarity {
			continue
		}
		hits = append(hits, VectorHit{ContactID: id, Distance: dist, Similarity: sim})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ContactID < hits[j].ContactID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Contains reports whether id has a vector.
func (v *VectorIndex) Contains(id string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.idMap[id]
	return ok
}

// Len returns the number of live vectors.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

// String describes the index for logs.
func (v *VectorIndex) String() string {
	return fmt.Sprintf("hnsw(dims=%d, vectors=%d, m=%d, ef=%d)",
		v.config.Dimensions, v.Len(), v.config.M, v.config.EfSearch)
}

// normalizeVectorInPlace scales v to unit length. Returns false for a zero vector.
func normalizeVectorInPlace(v []float32) bool {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return false
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// distanceToSimilarity maps cosine distance (1 - cos) to a similarity in
// [0,1]. Opposing vectors clamp to zero rather than going negative.
func distanceToSimilarity(distance float32) float64 {
	sim := 1 - float64(distance)
	switch {
	case sim < 0:
		return 0
	case sim > 1:
		return 1
	default:
		return sim
	}
}
