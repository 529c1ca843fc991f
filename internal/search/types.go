// Package search implements the tiered contact search engine: a cheap
// lexical pass that always runs, a semantic pass when the lexical one is
// weak, and a reasoning pass for filter-style questions. Results of the
// tiers are fused, boosted and cached per index version.
package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/rolodex/internal/reason"
	"github.com/Aman-CERP/rolodex/internal/store"
	"github.com/Aman-CERP/rolodex/internal/telemetry"
)

// Tier identifies a search stage.
type Tier int

const (
	// TierLexical is the field-weighted BM25 pass.
	TierLexical Tier = 1

	// TierSemantic is the embedding similarity pass.
	TierSemantic Tier = 2

	// TierReasoning is the structured filter pass.
	TierReasoning Tier = 3
)

// String returns "tier1", "tier2" or "tier3".
func (t Tier) String() string {
	switch t {
	case TierLexical, TierSemantic, TierReasoning:
		return fmt.Sprintf("tier%d", int(t))
	default:
		return "unknown"
	}
}

// MarshalText encodes the tier by name, so score maps read well in JSON.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses "tier1".."tier3".
func (t *Tier) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "tier1":
		*t = TierLexical
	case "tier2":
		*t = TierSemantic
	case "tier3":
		*t = TierReasoning
	default:
		return fmt.Errorf("unknown tier %q", text)
	}
	return nil
}

// telemetryTier maps a tier to its telemetry label.
func (t Tier) telemetryTier() telemetry.Tier {
	switch t {
	case TierSemantic:
		return telemetry.TierSemantic
	case TierReasoning:
		return telemetry.TierReasoning
	default:
		return telemetry.TierLexical
	}
}

// Result is one ranked contact.
type Result struct {
	Contact store.Contact `json:"contact"`
	Score   float64       `json:"score"`

	// Scores holds the per-tier contributions: the normalized lexical
	// score, the semantic similarity, and for Tier-3 the fused score the
	// filter ranked by.
	Scores map[Tier]float64 `json:"scores"`

	MatchedFields  []store.Field `json:"matched_fields,omitempty"`
	MatchedTerms   []string      `json:"matched_terms,omitempty"`
	Boosts         []string      `json:"boosts,omitempty"`
	SeniorityLevel int           `json:"seniority_level"`

	NameMatched bool `json:"-"`
}

// Response is the outcome of one search.
type Response struct {
	Results   []Result `json:"results"`
	TierUsed  Tier     `json:"tier_used"`
	LatencyMs float64  `json:"latency_ms"`
	CacheHit  bool     `json:"cache_hit"`

	// Degraded is set when a tier failed or timed out and the results
	// come from the tiers that did answer.
	Degraded bool   `json:"degraded"`
	Version  uint64 `json:"version"`

	// Route lists the router states the query went through.
	Route []State `json:"route,omitempty"`

	// Filter is the Tier-3 filter that shaped the results, if any.
	Filter *reason.Filter `json:"filter,omitempty"`
}

// Explanation describes why a result ranked where it did.
type Explanation struct {
	MatchedFields  []store.Field    `json:"matched_fields"`
	MatchedTerms   []string         `json:"matched_terms"`
	Scores         map[Tier]float64 `json:"scores"`
	Boosts         []string         `json:"boosts"`
	SeniorityLevel int              `json:"seniority_level"`
}

// Explain returns the scoring breakdown of r.
func Explain(r Result) Explanation {
	ex := Explanation{
		MatchedFields:  append([]store.Field{}, r.MatchedFields...),
		MatchedTerms:   append([]string{}, r.MatchedTerms...),
		Scores:         make(map[Tier]float64, len(r.Scores)),
		Boosts:         append([]string{}, r.Boosts...),
		SeniorityLevel: r.SeniorityLevel,
	}
	for t, s := range r.Scores {
		ex.Scores[t] = s
	}
	return ex
}

// Config holds the tuning knobs of the engine.
type Config struct {
	DefaultTopK    int
	MaxTopK        int
	MaxQueryLength int // bytes

	// LexicalWeight and SemanticWeight blend the tiers when both ran.
	LexicalWeight  float64
	SemanticWeight float64

	// LexicalScale maps raw BM25F scores onto [0,1]: min(1, s/scale).
	LexicalScale float64

	// MinLexicalResults and Tier2Threshold decide when Tier-1 is weak
	// enough to run Tier-2.
	MinLexicalResults int
	Tier2Threshold    float64

	// Tier3Confidence is the fused top score below which Tier-3 runs.
	Tier3Confidence float64

	// CandidatePool is how many hits each tier contributes to fusion.
	CandidatePool int

	EmbedTimeout  time.Duration
	ReasonTimeout time.Duration

	// ExpandQueries adds nickname and title synonym alternatives to
	// Tier-1 slots.
	ExpandQueries bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTopK:       10,
		MaxTopK:           100,
		MaxQueryLength:    512,
		LexicalWeight:     0.6,
		SemanticWeight:    0.4,
		LexicalScale:      10,
		MinLexicalResults: 3,
		Tier2Threshold:    0.5,
		Tier3Confidence:   0.3,
		CandidatePool:     50,
		EmbedTimeout:      2 * time.Second,
		ReasonTimeout:     reason.DefaultTimeout,
		ExpandQueries:     true,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = d.DefaultTopK
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = d.MaxTopK
	}
	if c.MaxQueryLength <= 0 {
		c.MaxQueryLength = d.MaxQueryLength
	}
	if c.LexicalWeight == 0 && c.SemanticWeight == 0 {
		c.LexicalWeight, c.SemanticWeight = d.LexicalWeight, d.SemanticWeight
	}
	if c.LexicalScale <= 0 {
		c.LexicalScale = d.LexicalScale
	}
	if c.MinLexicalResults <= 0 {
		c.MinLexicalResults = d.MinLexicalResults
	}
	if c.CandidatePool <= 0 {
		c.CandidatePool = d.CandidatePool
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = d.EmbedTimeout
	}
	if c.ReasonTimeout <= 0 {
		c.ReasonTimeout = d.ReasonTimeout
	}
	return c
}

// Observer receives one call per completed search. The metrics package
// implements it with Prometheus collectors.
type Observer interface {
	ObserveSearch(tier string, cacheHit, degraded bool, results int, latency time.Duration)
}
