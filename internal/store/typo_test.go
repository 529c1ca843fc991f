package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"google", "google", 0},
		{"gogle", "google", 1},
		{"googel", "google", 1}, // transposition
		{"gooogle", "google", 1},
		{"microsft", "microsoft", 1},
		{"mircosoft", "microsoft", 1},
		{"enginer", "engineer", 1},
		{"engneer", "engineer", 1},
		{"amzon", "amazon", 1},
		{"abc", "xyz", 3},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, min(tt.want, 3), editDistance(tt.a, tt.b, 2+1))
		})
	}
}

func TestEditDistance_StopsAtLimit(t *testing.T) {
	assert.Equal(t, 2, editDistance("kitten", "sitting", 1))
}

func TestMaxDistance(t *testing.T) {
	assert.Equal(t, 1, MaxDistance("bob"))
	assert.Equal(t, 2, MaxDistance("john"))
	assert.Equal(t, 1, MaxDistance("é"))
}

func TestTypoDictionary_Lookup(t *testing.T) {
	// Given: a small vocabulary
	d := NewTypoDictionary([]string{"google", "goggles", "apple", "bob", "rob", "microsoft"})

	// When: looking up misspellings
	got := d.Lookup("gogle")

	// Then: close terms come back ordered by distance
	require.NotEmpty(t, got)
	assert.Equal(t, TypoMatch{Term: "google", Distance: 1}, got[0])
	for _, m := range got {
		assert.LessOrEqual(t, m.Distance, 2)
	}
}

func TestTypoDictionary_ShortTermsUseDistanceOne(t *testing.T) {
	d := NewTypoDictionary([]string{"bob", "rob", "bo", "robert"})

	got := d.Lookup("bob")

	terms := make([]string, 0, len(got))
	for _, m := range got {
		terms = append(terms, m.Term)
		assert.Equal(t, 1, m.Distance)
	}
	assert.ElementsMatch(t, []string{"rob", "bo"}, terms)
}

func TestTypoDictionary_ExcludesExactAndFarTerms(t *testing.T) {
	d := NewTypoDictionary([]string{"google", "amazon"})

	assert.True(t, d.Contains("google"))
	assert.Empty(t, d.Lookup("google"))
	assert.Empty(t, d.Lookup("asdfjkl"))
}

func TestTypoDictionary_Closest(t *testing.T) {
	d := NewTypoDictionary([]string{"boston", "notion", "chase", "chloe", "chen", "bob", "rob"})

	tests := []struct {
		name string
		term string
		want []TypoMatch
	}{
		{"nearest only", "boton", []TypoMatch{{Term: "boston", Distance: 1}}},
		{"farther match dropped", "chse", []TypoMatch{{Term: "chase", Distance: 1}}},
		{"indexed term kept as is", "chase", nil},
		{"ties kept in term order", "cob", []TypoMatch{{Term: "bob", Distance: 1}, {Term: "rob", Distance: 1}}},
		{"nothing near", "zzzzzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Closest(tt.term)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
