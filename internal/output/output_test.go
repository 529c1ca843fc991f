package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rolodex/internal/eval"
	"github.com/Aman-CERP/rolodex/internal/reason"
	"github.com/Aman-CERP/rolodex/internal/search"
	"github.com/Aman-CERP/rolodex/internal/store"
)

func TestWriter_StatusIcons(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"success", func(w *Writer) { w.Success("Index complete") }, "✅ Index complete"},
		{"warning", func(w *Writer) { w.Warning("No embedder") }, "⚠️  No embedder"},
		{"error", func(w *Writer) { w.Error("Failed") }, "❌ Failed"},
		{"plain", func(w *Writer) { w.Status("", "indented") }, "   indented"},
		{"formatted", func(w *Writer) { w.Statusf("🔍", "%d found", 3) }, "🔍 3 found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))
			assert.Equal(t, tt.want+"\n", buf.String())
		})
	}
}

func sampleResponse() *search.Response {
	return &search.Response{
		Results: []search.Result{{
			Contact:        store.Contact{ID: "c001", FullName: "John Smith", Company: "Google", Position: "Software Engineer"},
			Score:          1.72,
			Scores:         map[search.Tier]float64{search.TierLexical: 1, search.TierSemantic: 0.41},
			MatchedFields:  []store.Field{store.FieldName},
			MatchedTerms:   []string{"john", "smith"},
			Boosts:         []string{"exact_name"},
			SeniorityLevel: 40,
		}},
		TierUsed:  search.TierSemantic,
		LatencyMs: 1.3,
		CacheHit:  true,
		Route:     []search.State{search.StateReceived, search.StateCached},
		Filter:    &reason.Filter{Summary: "company google"},
	}
}

func TestWriter_SearchResults(t *testing.T) {
	// Given: a response with one explained result
	buf := &bytes.Buffer{}

	// When: printing without explanations
	New(buf).SearchResults("John Smith", sampleResponse(), false)

	// Then: the header and the contact line are shown
	out := buf.String()
	assert.Contains(t, out, `Found 1 results for "John Smith" (tier2, 1.3ms, cached)`)
	assert.Contains(t, out, "1. John Smith · Software Engineer @ Google [c001] (score: 1.720)")
	assert.NotContains(t, out, "scores:")
}

func TestWriter_SearchResults_Explain(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).SearchResults("John Smith", sampleResponse(), true)

	out := buf.String()
	assert.Contains(t, out, "Route: received → cached")
	assert.Contains(t, out, "Filter: company google")
	assert.Contains(t, out, "scores: tier1=1.000 tier2=0.410")
	assert.Contains(t, out, "matched: name [john,smith]")
	assert.Contains(t, out, "boosts: exact_name")
	assert.Contains(t, out, "seniority: 40")
}

func TestWriter_EvalReport(t *testing.T) {
	rep := &eval.Report{
		User: "alice",
		Queries: []eval.QueryResult{
			{Query: eval.GoldenQuery{ID: "ok"}, Passed: true},
			{Query: eval.GoldenQuery{ID: "typo-bad"}, Passed: false},
		},
		MRR:          eval.Metric{Value: 0.5, N: 2},
		PrecisionAt5: eval.Metric{Value: 0.5, N: 2},
		MeanLatency:  1500 * time.Microsecond,
		P95Latency:   3 * time.Millisecond,
		Categories: map[string]eval.CategoryStats{
			"typo":  {Passed: 0, Total: 1},
			"exact": {Passed: 1, Total: 1, PassRate: 1},
		},
	}

	t.Run("failing gate", func(t *testing.T) {
		buf := &bytes.Buffer{}
		New(buf).EvalReport(rep, eval.Gate(rep, eval.DefaultThresholds()))

		out := buf.String()
		assert.Contains(t, out, "MRR@10          0.500  (n=2)")
		assert.Contains(t, out, "mean 1.5ms  p95 3ms")
		assert.Less(t, bytes.Index(buf.Bytes(), []byte("exact")), bytes.Index(buf.Bytes(), []byte("typo ")))
		assert.Contains(t, out, "Failed queries: typo-bad")
		assert.Contains(t, out, "❌ Quality gate failed")
		assert.Contains(t, out, "mrr@10 0.500 below 0.700")
	})

	t.Run("passing gate", func(t *testing.T) {
		buf := &bytes.Buffer{}
		New(buf).EvalReport(rep, eval.GateResult{Passed: true})
		assert.Contains(t, buf.String(), "✅ Quality gate passed")
	})
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, New(buf).JSON(map[string]int{"version": 3}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 3, got["version"])
}
