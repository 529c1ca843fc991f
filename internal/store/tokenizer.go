package store

import (
	"strings"
	"unicode"
)

// Tokenize lowercases text and splits it into runs of letters, digits and
// '@'. The '@' is kept so email-like tokens stay whole; a leading or
// trailing '@' is trimmed. Punctuation-only input yields an empty slice.
func Tokenize(text string) []string {
	tokens := []string{}
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		tok := strings.Trim(current.String(), "@")
		if tok != "" {
			tokens = append(tokens, tok)
		}
		current.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '@' {
			current.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// NormalizeQuery returns the canonical form of a query: its tokens joined
// by single spaces. Queries that normalize equal are the same query.
func NormalizeQuery(text string) string {
	return strings.Join(Tokenize(text), " ")
}

// UniqueTokens returns the tokens of text without duplicates, first
// occurrence order preserved.
func UniqueTokens(text string) []string {
	tokens := Tokenize(text)
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
