// Package reason implements the Tier-3 reasoning fallback: providers that
// turn a query plus a summary of the address book into a structured filter.
package reason

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/rolodex/internal/store"
)

const (
	// DefaultTimeout bounds one ExtractFilter call.
	DefaultTimeout = 5 * time.Second

	// DefaultContextLimit caps the distinct companies and positions sent to
	// a provider.
	DefaultContextLimit = 200
)

// Provider extracts structured filter criteria from a query. A nil filter
// with a nil error means the provider found nothing to filter on.
// Implementations must honor timeout themselves, not only the caller.
type Provider interface {
	Name() string
	ExtractFilter(ctx context.Context, query string, rc Context, timeout time.Duration) (*Filter, error)
}

// Context is the compact address book summary given to a provider.
type Context struct {
	Companies []string `json:"companies"`
	Positions []string `json:"positions"`
}

// BuildContext collects the distinct non-empty companies and positions of
// contacts, sorted and truncated to limit each.
func BuildContext(contacts []store.Contact, limit int) Context {
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	companies := map[string]struct{}{}
	positions := map[string]struct{}{}
	for _, c := range contacts {
		if v := strings.TrimSpace(c.Company); v != "" {
			companies[v] = struct{}{}
		}
		if v := strings.TrimSpace(c.Position); v != "" {
			positions[v] = struct{}{}
		}
	}
	return Context{
		Companies: sortedKeys(companies, limit),
		Positions: sortedKeys(positions, limit),
	}
}

func sortedKeys(m map[string]struct{}, limit int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Filter is the structured result of a reasoning call. Nil slices and a
// nil Limit mean the criterion is absent.
type Filter struct {
	Companies        []string `json:"companies,omitempty"`
	PositionKeywords []string `json:"position_keywords,omitempty"`
	NameKeywords     []string `json:"name_keywords,omitempty"`
	RankBySeniority  bool     `json:"rank_by_seniority,omitempty"`
	Limit            *int     `json:"limit,omitempty"`
	Summary          string   `json:"summary,omitempty"`
}

// HasCriteria reports whether the filter restricts by company, position or name.
func (f *Filter) HasCriteria() bool {
	return f != nil && (len(f.Companies) > 0 || len(f.PositionKeywords) > 0 || len(f.NameKeywords) > 0)
}

// IsEmpty reports whether the filter changes nothing.
func (f *Filter) IsEmpty() bool {
	return f == nil || (!f.HasCriteria() && !f.RankBySeniority && f.Limit == nil)
}

// Match reports whether c satisfies any criterion: a company, position
// keyword or name keyword occurring case-insensitively in the matching
// field. A filter without criteria matches every contact.
func (f *Filter) Match(c store.Contact) bool {
	if !f.HasCriteria() {
		return true
	}
	return containsAny(c.Company, f.Companies) ||
		containsAny(c.Position, f.PositionKeywords) ||
		containsAny(c.FullName, f.NameKeywords)
}

func containsAny(field string, needles []string) bool {
	if field == "" {
		return false
	}
	field = strings.ToLower(field)
	for _, n := range needles {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && strings.Contains(field, n) {
			return true
		}
	}
	return false
}

// normalize trims, drops empty and duplicate values (case-insensitively)
// and returns nil for an empty result so absence stays typed.
func normalize(values []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func intPtr(n int) *int { return &n }
