package search

import (
	"sort"
	"strings"
)

// QueryExpander supplies extra Tier-1 alternatives for a query token:
// nicknames of given names and synonyms of title words. Alternatives share
// the token's slot, so expanding never inflates a score.
type QueryExpander struct {
	synonyms      map[string][]string
	maxExpansions int
}

// QueryExpanderOption configures the query expander.
type QueryExpanderOption func(*QueryExpander)

// WithMaxExpansions caps the alternatives returned per token. Zero or
// less means unlimited.
func WithMaxExpansions(n int) QueryExpanderOption {
	return func(e *QueryExpander) {
		e.maxExpansions = n
	}
}

// WithCustomSynonyms adds one-way synonym mappings.
func WithCustomSynonyms(synonyms map[string][]string) QueryExpanderOption {
	return func(e *QueryExpander) {
		for k, v := range synonyms {
			k = strings.ToLower(k)
			for _, s := range v {
				e.add(k, strings.ToLower(s))
			}
		}
	}
}

// NewQueryExpander creates an expander over Nicknames and TitleSynonyms.
func NewQueryExpander(opts ...QueryExpanderOption) *QueryExpander {
	e := &QueryExpander{
		synonyms:      make(map[string][]string),
		maxExpansions: 8,
	}

	for name, nicks := range Nicknames {
		for _, n := range nicks {
			e.add(name, n)
			e.add(n, name)
			for _, sibling := range nicks {
				if sibling != n {
					e.add(n, sibling)
				}
			}
		}
	}
	for term, syns := range TitleSynonyms {
		for _, s := range syns {
			e.add(term, s)
		}
	}

	for _, opt := range opts {
		opt(e)
	}

	for k := range e.synonyms {
		sort.Strings(e.synonyms[k])
	}
	return e
}

func (e *QueryExpander) add(term, alt string) {
	if term == "" || alt == "" || term == alt {
		return
	}
	for _, existing := range e.synonyms[term] {
		if existing == alt {
			return
		}
	}
	e.synonyms[term] = append(e.synonyms[term], alt)
}

// Expand returns the alternatives for one lowercase token, sorted.
// Its signature matches the extra hook of store.LexicalIndex.Slots.
func (e *QueryExpander) Expand(token string) []string {
	if e == nil {
		return nil
	}
	syns := e.synonyms[token]
	if e.maxExpansions > 0 && len(syns) > e.maxExpansions {
		syns = syns[:e.maxExpansions]
	}
	return append([]string(nil), syns...)
}

// ExpandQuery returns the query tokens followed by every alternative, one
// copy each. Useful for display and debugging.
func (e *QueryExpander) ExpandQuery(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range tokens {
		for _, s := range e.Expand(t) {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
