package reason

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/rolodex/configs"
	"github.com/Aman-CERP/rolodex/internal/store"
)

// Industry maps query terms such as "fintech" to well-known companies.
type Industry struct {
	Terms     []string `yaml:"terms"`
	Companies []string `yaml:"companies"`
}

// LoadIndustries parses an industry table.
func LoadIndustries(data []byte) ([]Industry, error) {
	var table struct {
		Industries []Industry `yaml:"industries"`
	}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse industries: %w", err)
	}
	for i, ind := range table.Industries {
		if len(ind.Terms) == 0 || len(ind.Companies) == 0 {
			return nil, fmt.Errorf("industry %d: terms and companies are required", i)
		}
	}
	return table.Industries, nil
}

// rankPhrases request ordering by seniority.
var rankPhrases = []string{
	"most senior", "senior most", "highest level", "highest ranking",
	"most experienced", "top",
}

// singularNouns after a rank phrase ask for exactly one contact.
var singularNouns = map[string]bool{"person": true, "one": true, "contact": true, "individual": true}

// ignoredWords never become position keywords even when a title uses them.
var ignoredWords = map[string]bool{
	"of": true, "and": true, "the": true, "at": true, "in": true, "for": true,
	"to": true, "a": true, "an": true, "with": true, "or": true, "on": true,
}

// RuleProvider is a local, deterministic filter provider. It expands
// industry terms to the address book's companies, recognizes companies
// and title words named in the query, and detects seniority requests.
type RuleProvider struct {
	industries []compiledIndustry
}

type compiledIndustry struct {
	terms     [][]string
	companies [][]string
}

// NewRuleProvider creates a rule provider over the embedded industry table.
func NewRuleProvider() (*RuleProvider, error) {
	industries, err := LoadIndustries(configs.Industries)
	if err != nil {
		return nil, err
	}
	return NewRuleProviderWithIndustries(industries), nil
}

// NewRuleProviderWithIndustries creates a rule provider over industries.
func NewRuleProviderWithIndustries(industries []Industry) *RuleProvider {
	p := &RuleProvider{}
	for _, ind := range industries {
		var ci compiledIndustry
		for _, t := range ind.Terms {
			if toks := store.Tokenize(t); len(toks) > 0 {
				ci.terms = append(ci.terms, toks)
			}
		}
		for _, c := range ind.Companies {
			if toks := store.Tokenize(c); len(toks) > 0 {
				ci.companies = append(ci.companies, toks)
			}
		}
		p.industries = append(p.industries, ci)
	}
	return p
}

// Name identifies the provider.
func (p *RuleProvider) Name() string { return "rules" }

// ExtractFilter derives a filter from query. It returns nil when the query
// names no industry, company, title word or seniority request.
func (p *RuleProvider) ExtractFilter(ctx context.Context, query string, rc Context, _ time.Duration) (*Filter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := store.Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	used := make([]bool, len(tokens))
	mark := func(start, n int) {
		for i := start; i < start+n && i < len(tokens); i++ {
			used[i] = true
		}
	}

	companyTokens := make([][]string, len(rc.Companies))
	for i, c := range rc.Companies {
		companyTokens[i] = store.Tokenize(c)
	}

	f := &Filter{}
	var summary []string

	for _, ind := range p.industries {
		hit := false
		for _, term := range ind.terms {
			if at := phraseIndex(tokens, term); at >= 0 {
				mark(at, len(term))
				hit = true
			}
		}
		if !hit {
			continue
		}
		for i, ct := range companyTokens {
			for _, known := range ind.companies {
				if containsPhrase(ct, known) {
					f.Companies = append(f.Companies, rc.Companies[i])
					break
				}
			}
		}
		summary = append(summary, "industry")
	}

	for i, ct := range companyTokens {
		if len(ct) == 0 {
			continue
		}
		if at := phraseIndex(tokens, ct); at >= 0 {
			mark(at, len(ct))
			f.Companies = append(f.Companies, rc.Companies[i])
		}
	}

	p.extractRanking(tokens, used, f)
	if f.RankBySeniority {
		summary = append(summary, "ranked by seniority")
	}

	vocab := map[string]bool{}
	for _, pos := range rc.Positions {
		for _, t := range store.Tokenize(pos) {
			if !ignoredWords[t] {
				vocab[t] = true
			}
		}
	}
	for i, tok := range tokens {
		if used[i] {
			continue
		}
		switch {
		case vocab[tok]:
			f.PositionKeywords = append(f.PositionKeywords, tok)
		case strings.HasSuffix(tok, "s") && vocab[strings.TrimSuffix(tok, "s")]:
			f.PositionKeywords = append(f.PositionKeywords, strings.TrimSuffix(tok, "s"))
		}
	}

	f.Companies = normalize(f.Companies)
	f.PositionKeywords = normalize(f.PositionKeywords)
	if f.IsEmpty() {
		return nil, nil
	}

	if len(f.Companies) > 0 {
		summary = append(summary, fmt.Sprintf("%d companies", len(f.Companies)))
	}
	if len(f.PositionKeywords) > 0 {
		summary = append(summary, "titles: "+strings.Join(f.PositionKeywords, ", "))
	}
	f.Summary = strings.Join(summary, "; ")
	return f, nil
}

// extractRanking detects seniority requests and result limits: "top 3"
// ranks and limits to three, "most senior person" limits to one.
func (p *RuleProvider) extractRanking(tokens []string, used []bool, f *Filter) {
	for _, phrase := range rankPhrases {
		pt := store.Tokenize(phrase)
		at := phraseIndex(tokens, pt)
		if at < 0 {
			continue
		}
		end := at + len(pt)

		if phrase == "top" {
			if end >= len(tokens) {
				continue
			}
			n, err := strconv.Atoi(tokens[end])
			if err != nil || n <= 0 {
				continue
			}
			f.Limit = intPtr(n)
			end++
		}

		f.RankBySeniority = true
		for i := at; i < end; i++ {
			used[i] = true
		}
		if f.Limit == nil && end < len(tokens) && singularNouns[tokens[end]] {
			f.Limit = intPtr(1)
		}
	}
}

// phraseIndex returns the first position of phrase in tokens, or -1.
func phraseIndex(tokens, phrase []string) int {
	if len(phrase) == 0 {
		return -1
	}
outer:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, t := range phrase {
			if tokens[i+j] != t {
				continue outer
			}
		}
		return i
	}
	return -1
}
