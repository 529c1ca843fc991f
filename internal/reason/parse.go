package reason

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// filterResponse is the JSON object language-model providers are asked
// to return.
type filterResponse struct {
	MatchingCompanies        []string `json:"matching_companies"`
	MatchingPositionKeywords []string `json:"matching_position_keywords"`
	MatchingNameKeywords     []string `json:"matching_name_keywords"`
	RequiresRanking          bool     `json:"requires_ranking"`
	RankingCriteria          string   `json:"ranking_criteria"`
	LimitResults             *int     `json:"limit_results"`
	Summary                  string   `json:"summary"`
}

// ParseFilter decodes a provider response strictly: unknown fields, wrong
// types, trailing data and negative limits are all errors. Surrounding
// markdown code fences are tolerated. Ranking is honored only for the
// "seniority" criterion.
func ParseFilter(raw string) (*Filter, error) {
	body := strings.TrimSpace(stripFences(raw))
	if body == "" {
		return nil, fmt.Errorf("empty response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()

	var resp filterResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode filter: unexpected data after object")
	}

	f := &Filter{
		Companies:        normalize(resp.MatchingCompanies),
		PositionKeywords: normalize(resp.MatchingPositionKeywords),
		NameKeywords:     normalize(resp.MatchingNameKeywords),
		Summary:          strings.TrimSpace(resp.Summary),
	}
	if resp.RequiresRanking {
		criteria := strings.ToLower(strings.TrimSpace(resp.RankingCriteria))
		f.RankBySeniority = criteria == "" || criteria == "seniority"
	}
	if resp.LimitResults != nil {
		switch n := *resp.LimitResults; {
		case n < 0:
			return nil, fmt.Errorf("decode filter: negative limit %d", n)
		case n > 0:
			f.Limit = intPtr(n)
		}
	}
	return f, nil
}

// stripFences removes a ```json ... ``` wrapper if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

// systemPrompt renders the instructions shared by language-model providers.
func systemPrompt(rc Context) string {
	companies, _ := json.Marshal(rc.Companies)
	positions, _ := json.Marshal(rc.Positions)

	return fmt.Sprintf(`You are a search assistant with deep knowledge of companies, industries and job roles.

The user's address book contains these companies:
%s

And these job positions:
%s

The user asks a natural language question about their network. Use your knowledge of which industry each company is in to identify matching contacts.

Return a JSON object with exactly these fields:
- "matching_companies": company names from the list above that match the query. Leave empty unless the query is about an industry or a specific company.
- "matching_position_keywords": keywords to look for in position titles, e.g. ["engineer", "manager"]
- "matching_name_keywords": keywords to look for in names, only when a specific person is asked for
- "requires_ranking": true if the user asks for "most senior", "highest level", "top N" and similar
- "ranking_criteria": "seniority" when requires_ranking is true
- "limit_results": number of results when the user asks for one person or "top N", otherwise null
- "summary": a short description of what the user is looking for

Return ONLY valid JSON, no other text.`, companies, positions)
}
