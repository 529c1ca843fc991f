package search

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Aman-CERP/rolodex/internal/store"
)

// State is one step of a query through the router.
type State string

const (
	StateReceived   State = "received"
	StateCached     State = "cached"
	StateClassified State = "classified"
	StateTier1      State = "tier1"
	StateTier2      State = "tier1+tier2"
	StateTier3      State = "tier1+tier2+tier3"
	StateFused      State = "fused"
)

// semanticKeywords are single words that describe qualities rather than
// literal field values. A plural "s" is accepted.
var semanticKeywords = map[string]bool{
	"expert":       true,
	"specialist":   true,
	"experienced":  true,
	"skilled":      true,
	"passionate":   true,
	"creative":     true,
	"innovative":   true,
	"leader":       true,
	"talented":     true,
	"professional": true,
	"strategic":    true,
}

var semanticPhrases = [][]string{
	{"focused", "on"},
	{"background", "in"},
	{"passionate", "about"},
}

var analyticsKeywords = map[string]bool{
	"count":        true,
	"breakdown":    true,
	"analyze":      true,
	"distribution": true,
	"percentage":   true,
	"statistics":   true,
}

// reasoningPhrases are industry and seniority phrases that need
// knowledge a lexical match cannot provide. Matched on token sequences, so
// "pre-ipo" is {"pre", "ipo"}.
var reasoningPhrases = [][]string{
	{"how", "many"},
	{"in", "tech"},
	{"in", "technology"},
	{"in", "finance"},
	{"in", "fintech"},
	{"in", "banking"},
	{"in", "healthcare"},
	{"in", "biotech"},
	{"in", "pharma"},
	{"in", "consulting"},
	{"in", "crypto"},
	{"in", "ai"},
	{"in", "vc"},
	{"at", "startups"},
	{"at", "big", "companies"},
	{"at", "faang"},
	{"most", "senior"},
	{"highest", "level"},
	{"pre", "ipo"},
	{"series", "a"},
	{"series", "b"},
}

var connectorWords = map[string]bool{
	"and":  true,
	"or":   true,
	"at":   true,
	"in":   true,
	"with": true,
}

// minConnectors is the connector count that marks a compound filter query.
const minConnectors = 3

// Plan is the deterministic classification of a query.
type Plan struct {
	// Query is the normalized query text.
	Query  string
	Tokens []string

	// Semantic is set when the query uses descriptive vocabulary.
	Semantic bool

	// Reasoning is set when the query asks for analytics, an industry or
	// a seniority ranking, or combines several filters.
	Reasoning bool

	// Short marks a single one-character token, which never leaves Tier-1.
	Short bool

	// Reasons names the triggers that fired.
	Reasons []string
}

// RouterConfig holds the escalation thresholds.
type RouterConfig struct {
	MinLexicalResults int
	Tier2Threshold    float64
	Tier3Confidence   float64
	LexicalScale      float64
}

// Router decides which tiers a query needs.
type Router struct {
	cfg RouterConfig
}

// NewRouter creates a router.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.LexicalScale <= 0 {
		cfg.LexicalScale = DefaultConfig().LexicalScale
	}
	return &Router{cfg: cfg}
}

// Classify inspects the query text alone.
func (r *Router) Classify(query string) Plan {
	tokens := store.Tokenize(query)
	p := Plan{Query: strings.Join(tokens, " "), Tokens: tokens}

	if len(tokens) == 1 && utf8.RuneCountInString(tokens[0]) == 1 {
		p.Short = true
		p.Reasons = append(p.Reasons, "single_character")
		return p
	}

	connectors := 0
	for i, tok := range tokens {
		if semanticKeywords[tok] || semanticKeywords[strings.TrimSuffix(tok, "s")] {
			p.Semantic = true
			p.Reasons = append(p.Reasons, "semantic_keyword:"+tok)
		}
		if analyticsKeywords[tok] {
			p.Reasoning = true
			p.Reasons = append(p.Reasons, "analytics_keyword:"+tok)
		}
		if connectorWords[tok] {
			connectors++
		}
		if tok == "top" && i+1 < len(tokens) {
			if n, err := strconv.Atoi(tokens[i+1]); err == nil && n > 0 {
				p.Reasoning = true
				p.Reasons = append(p.Reasons, "top_n")
			}
		}
	}

	for _, phrase := range semanticPhrases {
		if hasPhrase(tokens, phrase) {
			p.Semantic = true
			p.Reasons = append(p.Reasons, "semantic_phrase:"+strings.Join(phrase, " "))
		}
	}
	for _, phrase := range reasoningPhrases {
		if hasPhrase(tokens, phrase) {
			p.Reasoning = true
			p.Reasons = append(p.Reasons, "reasoning_phrase:"+strings.Join(phrase, " "))
		}
	}
	if connectors >= minConnectors {
		p.Reasoning = true
		p.Reasons = append(p.Reasons, "connectors")
	}

	return p
}

// NeedsSemantic reports whether Tier-2 should run after Tier-1 produced
// lexical, and why.
func (r *Router) NeedsSemantic(p Plan, lexical []store.LexicalHit) (bool, string) {
	switch {
	case p.Short:
		return false, ""
	case p.Semantic:
		return true, "semantic_keyword"
	case p.Reasoning:
		return true, "reasoning"
	case len(lexical) < r.cfg.MinLexicalResults:
		return true, "few_lexical_results"
	case r.NormalizeLexical(lexical[0].Score) < r.cfg.Tier2Threshold:
		return true, "low_lexical_score"
	}
	return false, ""
}

// NeedsReasoning reports whether Tier-3 should run. topScore is the best
// fused score and candidates the number of fused results.
func (r *Router) NeedsReasoning(p Plan, topScore float64, candidates int) (bool, string) {
	switch {
	case p.Short:
		return false, ""
	case p.Reasoning:
		return true, "reasoning_trigger"
	case candidates > 0 && topScore < r.cfg.Tier3Confidence:
		return true, "low_confidence"
	}
	return false, ""
}

// NormalizeLexical maps a raw lexical score onto [0,1].
func (r *Router) NormalizeLexical(score float64) float64 {
	return normalizeLexical(score, r.cfg.LexicalScale)
}

func normalizeLexical(score, scale float64) float64 {
	if score <= 0 {
		return 0
	}
	if n := score / scale; n < 1 {
		return n
	}
	return 1
}

// hasPhrase reports whether phrase occurs as a contiguous token run.
func hasPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, w := range phrase {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
