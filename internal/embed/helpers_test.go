package embed

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
)

// mockEmbedder is a test double that counts calls
type mockEmbedder struct {
	embedCalls atomic.Int64
	batchCalls atomic.Int64
	batchSizes chan int
	dimensions int
	failFirst  atomic.Int64
	failErr    error
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dimensions: dims, batchSizes: make(chan int, 1024)}
}

func (m *mockEmbedder) vectorFor(text string) []float32 {
	vec := make([]float32, m.dimensions)
	vec[len(text)%m.dimensions] = 1
	return vec
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.embedCalls.Add(1)
	return m.vectorFor(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	m.batchSizes <- len(texts)
	if m.failFirst.Add(-1) >= 0 {
		return nil, m.failErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vectorFor(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int   { return m.dimensions }
func (m *mockEmbedder) ModelName() string { return "mock-model" }
func (m *mockEmbedder) Close() error      { return nil }

var errMockDown = errors.New("mock provider down")

// cosineSimilarity computes cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dotProduct, magA, magB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(magA) * math.Sqrt(magB))
}

// vectorMagnitude computes the magnitude of a vector
func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}
