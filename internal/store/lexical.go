package store

import (
	"math"
	"sort"
	"strings"
)

// Alternative weights inside one query slot.
const (
	ExactWeight   = 1.0
	SynonymWeight = 0.9
	Typo1Weight   = 0.85
	Typo2Weight   = 0.7
)

// posting records how often a term occurs in one field of one contact.
type posting struct {
	doc   int32
	field Field
	tf    uint16
}

// Alternative is one indexed term that may satisfy a query slot.
type Alternative struct {
	Term   string
	Weight float64
}

// Slot is one query token together with the terms accepted in its place.
// All alternatives of a slot compete for the same contribution.
type Slot struct {
	Token        string
	Alternatives []Alternative
}

// LexicalIndex is an immutable field-weighted BM25 index over one user's
// contacts. It is safe for concurrent readers once built.
type LexicalIndex struct {
	cfg      LexicalConfig
	ids      []string // ordinal -> contact id, ascending
	fieldLen [][numFields]uint16
	avgLen   [numFields]float64
	postings map[string][]posting
	typos    *TypoDictionary
}

// BuildLexicalIndex indexes the name, company, position and email of every
// contact. Absent fields contribute no postings. Contacts are ordered by id
// so ordinals, and therefore ties, are stable.
func BuildLexicalIndex(contacts []Contact, cfg LexicalConfig) *LexicalIndex {
	if cfg.K1 <= 0 {
		cfg.K1 = 1.2
	}
	if cfg.B < 0 || cfg.B > 1 {
		cfg.B = 0.75
	}

	sorted := make([]Contact, len(contacts))
	copy(sorted, contacts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	idx := &LexicalIndex{
		cfg:      cfg,
		ids:      make([]string, len(sorted)),
		fieldLen: make([][numFields]uint16, len(sorted)),
		postings: make(map[string][]posting),
	}

	var totals [numFields]float64
	for doc, c := range sorted {
		idx.ids[doc] = c.ID
		for _, f := range AllFields {
			tokens := Tokenize(c.Value(f))
			if len(tokens) == 0 {
				continue
			}
			idx.fieldLen[doc][f] = uint16(min(len(tokens), math.MaxUint16))
			totals[f] += float64(len(tokens))

			counts := make(map[string]int, len(tokens))
			for _, t := range tokens {
				counts[t]++
			}
			for term, n := range counts {
				idx.postings[term] = append(idx.postings[term], posting{
					doc:   int32(doc),
					field: f,
					tf:    uint16(min(n, math.MaxUint16)),
				})
			}
		}
	}

	if n := float64(len(sorted)); n > 0 {
		for f := range totals {
			idx.avgLen[f] = totals[f] / n
		}
	}

	idx.typos = NewTypoDictionary(idx.Vocabulary())

	return idx
}

// Len returns the number of indexed contacts.
func (idx *LexicalIndex) Len() int {
	return len(idx.ids)
}

// Contains reports whether term occurs in the vocabulary.
func (idx *LexicalIndex) Contains(term string) bool {
	_, ok := idx.postings[term]
	return ok
}

// Vocabulary returns every indexed term in ascending order.
func (idx *LexicalIndex) Vocabulary() []string {
	terms := make([]string, 0, len(idx.postings))
	for term := range idx.postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Stats returns index size information.
func (idx *LexicalIndex) Stats() LexicalStats {
	n := 0
	for _, p := range idx.postings {
		n += len(p)
	}
	return LexicalStats{
		Documents:  len(idx.ids),
		Terms:      len(idx.postings),
		Postings:   n,
		DeleteKeys: idx.typos.Size(),
	}
}

// Slots turns raw query text into slots holding the exact token and, for
// tokens missing from the vocabulary, their closest typo corrections. extra adds caller-provided alternatives per token, such
// as nicknames or title synonyms.
func (idx *LexicalIndex) Slots(query string, extra func(token string) []string) []Slot {
	tokens := UniqueTokens(query)
	slots := make([]Slot, 0, len(tokens))

	for _, tok := range tokens {
		slot := Slot{Token: tok}
		seen := map[string]struct{}{}
		add := func(term string, w float64) {
			if _, ok := seen[term]; ok {
				return
			}
			seen[term] = struct{}{}
			slot.Alternatives = append(slot.Alternatives, Alternative{Term: term, Weight: w})
		}

		add(tok, ExactWeight)
		if extra != nil {
			for _, syn := range extra(tok) {
				add(syn, SynonymWeight)
			}
		}
		for _, m := range idx.typos.Closest(tok) {
			w := Typo1Weight
			if m.Distance >= 2 {
				w = Typo2Weight
			}
			add(m.Term, w)
		}

		slots = append(slots, slot)
	}

	return slots
}

// Correct rewrites query with every token missing from the vocabulary
// replaced by its closest typo match, and reports whether anything was
// replaced. Tokens without a match are kept.
func (idx *LexicalIndex) Correct(query string) (string, bool) {
	tokens := Tokenize(query)
	changed := false
	for i, tok := range tokens {
		if matches := idx.typos.Closest(tok); len(matches) > 0 {
			tokens[i] = matches[0].Term
			changed = true
		}
	}
	return strings.Join(tokens, " "), changed
}

// Search tokenizes query, expands typos, and returns up to topK contacts.
func (idx *LexicalIndex) Search(query string, topK int) []LexicalHit {
	return idx.SearchSlots(idx.Slots(query, nil), topK)
}

// slotMatch is the best alternative of one slot for one contact.
type slotMatch struct {
	score  float64
	term   string
	fields [numFields]bool
}

type docAccumulator struct {
	score  float64
	fields [numFields]bool
	terms  map[string]struct{}
}

// SearchSlots scores contacts against pre-built slots. Each slot adds the
// best of its alternatives to a contact's score, so expansions never count
// twice. Results are ordered by score, then name match, then contact id.
func (idx *LexicalIndex) SearchSlots(slots []Slot, topK int) []LexicalHit {
	if len(slots) == 0 || len(idx.ids) == 0 || topK <= 0 {
		return []LexicalHit{}
	}

	docs := make(map[int32]*docAccumulator)

	for _, slot := range slots {
		// An expansion never weighs more than an indexed query token, so a
		// rare synonym cannot outrank the exact term.
		maxIDF := 0.0
		if idx.Contains(slot.Token) {
			maxIDF = idx.idf(slot.Token)
		}

		best := make(map[int32]*slotMatch)
		for _, alt := range slot.Alternatives {
			for doc, m := range idx.scoreTerm(alt, maxIDF) {
				if cur, ok := best[doc]; !ok || m.score > cur.score ||
					(m.score == cur.score && m.term < cur.term) {
					best[doc] = m
				}
			}
		}

		for doc, m := range best {
			acc, ok := docs[doc]
			if !ok {
				acc = &docAccumulator{terms: make(map[string]struct{})}
				docs[doc] = acc
			}
			acc.score += m.score
			acc.terms[m.term] = struct{}{}
			for f, hit := range m.fields {
				if hit {
					acc.fields[f] = true
				}
			}
		}
	}

	hits := make([]LexicalHit, 0, len(docs))
	for doc, acc := range docs {
		hit := LexicalHit{
			ContactID:   idx.ids[doc],
			Score:       acc.score,
			NameMatched: acc.fields[FieldName],
		}
		for _, f := range AllFields {
			if acc.fields[f] {
				hit.MatchedFields = append(hit.MatchedFields, f)
			}
		}
		for term := range acc.terms {
			hit.MatchedTerms = append(hit.MatchedTerms, term)
		}
		sort.Strings(hit.MatchedTerms)
		hits = append(hits, hit)
	}

	sort.Slice(hits, func(i, j int) bool {
		return lexicalLess(hits[i], hits[j])
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// lexicalLess orders by higher score, then name-field match, then smaller id.
func lexicalLess(a, b LexicalHit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.NameMatched != b.NameMatched {
		return a.NameMatched
	}
	return a.ContactID < b.ContactID
}

// scoreTerm computes the BM25F contribution of one alternative for every
// contact containing it: field term frequencies are length-normalized,
// weighted, summed, and then saturated once. A positive maxIDF caps the
// term's idf.
func (idx *LexicalIndex) scoreTerm(alt Alternative, maxIDF float64) map[int32]*slotMatch {
	list, ok := idx.postings[alt.Term]
	if !ok {
		return nil
	}

	idf := idx.idf(alt.Term)
	if maxIDF > 0 && idf > maxIDF {
		idf = maxIDF
	}
	k1, b := idx.cfg.K1, idx.cfg.B

	weighted := make(map[int32]float64)
	fields := make(map[int32]*[numFields]bool)
	for _, p := range list {
		w := idx.cfg.Weights.Weight(p.field)
		if w <= 0 {
			continue
		}
		norm := 1.0
		if avg := idx.avgLen[p.field]; avg > 0 {
			norm = 1 - b + b*float64(idx.fieldLen[p.doc][p.field])/avg
		}
		weighted[p.doc] += w * float64(p.tf) / norm

		fs, ok := fields[p.doc]
		if !ok {
			fs = &[numFields]bool{}
			fields[p.doc] = fs
		}
		fs[p.field] = true
	}

	out := make(map[int32]*slotMatch, len(weighted))
	for doc, tf := range weighted {
		out[doc] = &slotMatch{
			score:  alt.Weight * idf * tf * (k1 + 1) / (tf + k1),
			term:   alt.Term,
			fields: *fields[doc],
		}
	}
	return out
}

// idf is the BM25 inverse document frequency, counted over contacts.
func (idx *LexicalIndex) idf(term string) float64 {
	n := float64(len(idx.ids))
	df := 0.0
	last := int32(-1)
	for _, p := range idx.postings[term] {
		if p.doc != last {
			df++
			last = p.doc
		}
	}
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}
