package store

import "sort"

// maxDictionaryDistance is the largest edit distance the delete dictionary
// is built for. Query-time bounds never exceed it.
const maxDictionaryDistance = 2

// TypoMatch is a vocabulary term within the edit bound of a query term.
type TypoMatch struct {
	Term     string
	Distance int
}

// TypoDictionary finds vocabulary terms near a query term without scanning
// the vocabulary. Every term is stored under each string reachable from it
// by up to two deletions; a query generates its own deletions and only
// the colliding terms are verified with a real edit distance.
type TypoDictionary struct {
	vocab   map[string]struct{}
	deletes map[string][]string
}

// NewTypoDictionary builds the delete dictionary for terms.
func NewTypoDictionary(terms []string) *TypoDictionary {
	d := &TypoDictionary{
		vocab:   make(map[string]struct{}, len(terms)),
		deletes: make(map[string][]string, len(terms)*8),
	}

	for _, term := range terms {
		if _, ok := d.vocab[term]; ok {
			continue
		}
		d.vocab[term] = struct{}{}
		for del := range deletesOf(term, maxDictionaryDistance) {
			d.deletes[del] = append(d.deletes[del], term)
		}
	}

	return d
}

// MaxDistance returns the edit bound applied to a query term:
// two for terms of length four or more, one for shorter terms.
func MaxDistance(term string) int {
	if len([]rune(term)) >= 4 {
		return 2
	}
	return 1
}

// Contains reports whether term is in the vocabulary.
func (d *TypoDictionary) Contains(term string) bool {
	_, ok := d.vocab[term]
	return ok
}

// Lookup returns the vocabulary terms within MaxDistance(term) edits of
// term, excluding term itself, ordered by distance then term.
func (d *TypoDictionary) Lookup(term string) []TypoMatch {
	maxDist := MaxDistance(term)
	seen := make(map[string]struct{})
	var matches []TypoMatch

	for del := range deletesOf(term, maxDist) {
		for _, candidate := range d.deletes[del] {
			if candidate == term {
				continue
			}
			if _, ok := seen[candidate]; ok {
				continue
			}
			seen[candidate] = struct{}{}
			if dist := editDistance(term, candidate, maxDist); dist <= maxDist {
				matches = append(matches, TypoMatch{Term: candidate, Distance: dist})
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Term < matches[j].Term
	})
	return matches
}

// Closest returns the corrections of term: nothing when term is itself in
// the vocabulary, otherwise every Lookup match at the smallest distance.
func (d *TypoDictionary) Closest(term string) []TypoMatch {
	if d.Contains(term) {
		return nil
	}
	matches := d.Lookup(term)
	for i, m := range matches {
		if m.Distance > matches[0].Distance {
			return matches[:i]
		}
	}
	return matches
}

// Size returns the number of delete keys held.
func (d *TypoDictionary) Size() int {
	return len(d.deletes)
}

// deletesOf returns term and every string obtained from it by removing up
// to maxDist runes.
func deletesOf(term string, maxDist int) map[string]struct{} {
	out := map[string]struct{}{term: {}}
	frontier := []string{term}

	for depth := 0; depth < maxDist; depth++ {
		var next []string
		for _, s := range frontier {
			runes := []rune(s)
			if len(runes) <= 1 {
				continue
			}
			for i := range runes {
				del := string(runes[:i]) + string(runes[i+1:])
				if _, ok := out[del]; ok {
					continue
				}
				out[del] = struct{}{}
				next = append(next, del)
			}
		}
		frontier = next
	}

	return out
}

// editDistance returns the optimal string alignment distance between a
// and b (insertions, deletions, substitutions and adjacent transpositions).
// Returns limit+1 as soon as the distance is known to exceed limit.
func editDistance(a, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)
	if abs(len(ra)-len(rb)) > limit {
		return limit + 1
	}

	prev2 := make([]int, len(rb)+1)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				cur[j] = min(cur[j], prev2[j-2]+1)
			}
			rowMin = min(rowMin, cur[j])
		}
		if rowMin > limit {
			return limit + 1
		}
		prev2, prev, cur = prev, cur, prev2
	}

	return prev[len(rb)]
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
