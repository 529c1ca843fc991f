package reason

import "github.com/Aman-CERP/rolodex/internal/store"

// seniorityKeywords maps title words and phrases to a numeric level.
// A position's level is the highest level among the keywords it contains.
var seniorityKeywords = map[string]int{
	"ceo": 100, "chief executive": 100, "founder": 100, "co founder": 100, "cofounder": 100,
	"president": 95, "chairman": 95,
	"cto": 90, "cfo": 90, "coo": 90, "cmo": 90, "chief": 90,
	"general partner": 90, "managing partner": 90,
	"evp": 88, "executive vice president": 88,
	"svp": 87, "senior vice president": 87,
	"vp": 85, "vice president": 85,
	"partner": 80,
	"senior director": 78,
	"director": 75, "head of": 75,
	"principal": 70, "distinguished": 70,
	"senior manager": 65, "sr manager": 65,
	"manager": 60, "lead": 60,
	"senior": 50, "sr": 50,
	"staff": 45,
	"engineer": 40, "developer": 40, "analyst": 40, "designer": 40,
	"scientist": 40, "researcher": 40,
	"associate": 35,
	"coordinator": 30,
	"assistant": 25,
	"intern": 20,
}

// seniorityPhrases is seniorityKeywords tokenized once.
var seniorityPhrases = func() map[string][]string {
	out := make(map[string][]string, len(seniorityKeywords))
	for k := range seniorityKeywords {
		out[k] = store.Tokenize(k)
	}
	return out
}()

// SeniorityLevel scores a position title: the highest level among the
// keywords it contains. Keywords match whole words, so "Director" is not
// mistaken for "cto", and a keyword inside a longer matching one is
// ignored, so "Senior Vice President" scores as itself rather than as
// "president". Unknown titles score 0.
func SeniorityLevel(position string) int {
	tokens := store.Tokenize(position)
	if len(tokens) == 0 {
		return 0
	}

	type span struct{ start, end, level int }
	var spans []span
	for k, phrase := range seniorityPhrases {
		for i := 0; i+len(phrase) <= len(tokens); i++ {
			if containsPhrase(tokens[i:i+len(phrase)], phrase) {
				spans = append(spans, span{i, i + len(phrase), seniorityKeywords[k]})
			}
		}
	}

	level := 0
	for _, s := range spans {
		shadowed := false
		for _, o := range spans {
			if o.end-o.start > s.end-s.start && o.start <= s.start && s.end <= o.end {
				shadowed = true
				break
			}
		}
		if !shadowed {
			level = max(level, s.level)
		}
	}
	return level
}

// containsPhrase reports whether phrase occurs as a contiguous run in tokens.
func containsPhrase(tokens, phrase []string) bool {
	return phraseIndex(tokens, phrase) >= 0
}
