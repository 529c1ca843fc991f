package search

import (
	"sort"
	"strings"

	"github.com/Aman-CERP/rolodex/internal/reason"
	"github.com/Aman-CERP/rolodex/internal/store"
)

// Boost multipliers.
const (
	ExactMatchBoost = 1.5
	NamePrefixBoost = 1.1
	AllTermsBoost   = 1.15
)

// FusedResult is one contact after the tiers are combined.
type FusedResult struct {
	ContactID string
	Score     float64 // fused score after boosts

	Lexical    float64 // normalized Tier-1 score, 0 if absent
	LexicalRaw float64 // raw BM25F score
	Semantic   float64 // Tier-2 similarity, 0 if absent
	InLexical  bool
	InSemantic bool

	NameMatched   bool
	MatchedFields []store.Field
	MatchedTerms  []string
	Boosts        []string
}

// FusionConfig holds the blend weights.
type FusionConfig struct {
	LexicalWeight  float64
	SemanticWeight float64
	LexicalScale   float64
}

// Fusion combines Tier-1 and Tier-2 hits into one weighted score.
//
// Algorithm: score(c) = wL * min(1, bm25(c)/scale) + wS * sim(c)
//
// A contact missing from one list contributes 0 for that tier. When only
// one list has hits its own score is used unweighted.
type Fusion struct {
	cfg FusionConfig
}

// NewFusion creates a fusion stage. Zero weights default to 0.6/0.4.
func NewFusion(cfg FusionConfig) *Fusion {
	d := DefaultConfig()
	if cfg.LexicalWeight == 0 && cfg.SemanticWeight == 0 {
		cfg.LexicalWeight, cfg.SemanticWeight = d.LexicalWeight, d.SemanticWeight
	}
	if cfg.LexicalScale <= 0 {
		cfg.LexicalScale = d.LexicalScale
	}
	return &Fusion{cfg: cfg}
}

// Fuse merges both hit lists and returns them ordered. Never nil.
func (f *Fusion) Fuse(lexical []store.LexicalHit, vector []store.VectorHit) []*FusedResult {
	if len(lexical) == 0 && len(vector) == 0 {
		return []*FusedResult{}
	}

	byID := make(map[string]*FusedResult, len(lexical)+len(vector))
	get := func(id string) *FusedResult {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &FusedResult{ContactID: id}
		byID[id] = r
		return r
	}

	for _, h := range lexical {
		r := get(h.ContactID)
		r.InLexical = true
		r.LexicalRaw = h.Score
		r.Lexical = normalizeLexical(h.Score, f.cfg.LexicalScale)
		r.NameMatched = h.NameMatched
		r.MatchedFields = h.MatchedFields
		r.MatchedTerms = h.MatchedTerms
	}
	for _, h := range vector {
		r := get(h.ContactID)
		r.InSemantic = true
		r.Semantic = h.Similarity
	}

	both := len(lexical) > 0 && len(vector) > 0
	results := make([]*FusedResult, 0, len(byID))
	for _, r := range byID {
		switch {
		case both:
			r.Score = f.cfg.LexicalWeight*r.Lexical + f.cfg.SemanticWeight*r.Semantic
		case len(lexical) > 0:
			r.Score = r.Lexical
		default:
			r.Score = r.Semantic
		}
		results = append(results, r)
	}

	SortFused(results)
	return results
}

// ApplyBoosts multiplies scores for exact and name matches of the whole
// query and re-sorts. query must be normalized.
func (f *Fusion) ApplyBoosts(results []*FusedResult, query string, contact func(id string) (store.Contact, bool)) {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return
	}

	for _, r := range results {
		c, ok := contact(r.ContactID)
		if !ok {
			continue
		}
		name := store.NormalizeQuery(c.FullName)

		exactName := name != "" && name == query
		exact := ""
		switch {
		case exactName:
			exact = "exact_name"
		case query == store.NormalizeQuery(c.Company):
			exact = "exact_company"
		case query == store.NormalizeQuery(c.Position):
			exact = "exact_position"
		}
		if exact != "" {
			r.Score *= ExactMatchBoost
			r.Boosts = append(r.Boosts, exact)
		}

		if !exactName && name != "" && strings.HasPrefix(name, query) {
			r.Score *= NamePrefixBoost
			r.Boosts = append(r.Boosts, "name_prefix")
		}

		if name != "" && containsAllTokens(store.Tokenize(name), tokens) {
			r.Score *= AllTermsBoost
			r.Boosts = append(r.Boosts, "all_terms_in_name")
		}
	}

	SortFused(results)
}

// FilterResult is a fused result selected by a Tier-3 filter.
type FilterResult struct {
	*FusedResult
	Contact        store.Contact
	SeniorityLevel int
}

// ApplyFilter selects the contacts matching filter from all contacts,
// carrying over the fused score of those the other tiers found. With
// seniority ranking the order is level, then score, then id; otherwise
// the usual result order. Limit truncates.
func ApplyFilter(filter *reason.Filter, contacts []store.Contact, fused []*FusedResult) []FilterResult {
	byID := make(map[string]*FusedResult, len(fused))
	for _, r := range fused {
		byID[r.ContactID] = r
	}

	out := make([]FilterResult, 0)
	for _, c := range contacts {
		if !filter.Match(c) {
			continue
		}
		r, ok := byID[c.ID]
		if !ok {
			r = &FusedResult{ContactID: c.ID}
		}
		out = append(out, FilterResult{
			FusedResult:    r,
			Contact:        c,
			SeniorityLevel: reason.SeniorityLevel(c.Position),
		})
	}

	if filter.RankBySeniority {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if a.SeniorityLevel != b.SeniorityLevel {
				return a.SeniorityLevel > b.SeniorityLevel
			}
			if a.Score != b.Score {
				return a.Score > b.Score
			}
			return a.ContactID < b.ContactID
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool {
			return compareFused(out[i].FusedResult, out[j].FusedResult)
		})
	}

	if filter.Limit != nil && *filter.Limit >= 0 && len(out) > *filter.Limit {
		out = out[:*filter.Limit]
	}
	return out
}

// SortFused orders results by score, then name match, then contact id.
func SortFused(results []*FusedResult) {
	sort.Slice(results, func(i, j int) bool {
		return compareFused(results[i], results[j])
	})
}

// compareFused reports whether a ranks before b.
//
// Priority:
//  1. Higher score
//  2. Name matched (true before false)
//  3. Lexicographically smaller contact id
func compareFused(a, b *FusedResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.NameMatched != b.NameMatched {
		return a.NameMatched
	}
	return a.ContactID < b.ContactID
}

func containsAllTokens(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}
