// Package eval measures search quality against a labeled query set.
//
// Golden queries are data-driven, loaded from YAML. The default set is
// embedded from configs/golden.yaml and labeled against the fixture
// address book configs/contacts.json, so queries can be changed without
// touching the harness.
package eval

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/rolodex/configs"
)

// Query categories.
const (
	CategoryExact    = "exact"
	CategoryTypo     = "typo"
	CategorySemantic = "semantic"
	CategoryComplex  = "complex"
	CategoryEdgeCase = "edge_case"
)

// GoldenQuery is one labeled query.
type GoldenQuery struct {
	ID       string `yaml:"id" json:"id"`
	Query    string `yaml:"query" json:"query"`
	Category string `yaml:"category" json:"category"`

	// ExpectedIDs are the relevant contacts in preferred order.
	ExpectedIDs []string `yaml:"expected_ids" json:"expected_ids,omitempty"`

	// ExpectedCount, when set, is the exact number of results.
	ExpectedCount *int `yaml:"expected_count" json:"expected_count,omitempty"`
}

type goldenFile struct {
	Queries []GoldenQuery `yaml:"queries"`
}

// LoadGolden parses a golden query file.
func LoadGolden(r io.Reader) ([]GoldenQuery, error) {
	var f goldenFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return []GoldenQuery{}, nil
		}
		return nil, fmt.Errorf("failed to parse golden queries: %w", err)
	}

	seen := make(map[string]bool, len(f.Queries))
	for i, q := range f.Queries {
		if q.ID == "" {
			return nil, fmt.Errorf("golden query %d: missing id", i)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("golden query %s: duplicate id", q.ID)
		}
		seen[q.ID] = true
		if len(q.ExpectedIDs) == 0 && q.ExpectedCount == nil {
			return nil, fmt.Errorf("golden query %s: needs expected_ids or expected_count", q.ID)
		}
		if q.ExpectedCount != nil && *q.ExpectedCount < 0 {
			return nil, fmt.Errorf("golden query %s: negative expected_count", q.ID)
		}
	}
	if f.Queries == nil {
		f.Queries = []GoldenQuery{}
	}
	return f.Queries, nil
}

var (
	goldenOnce sync.Once
	goldenData []GoldenQuery
	goldenErr  error
)

// DefaultGolden returns the embedded query set. Parsed once; callers get a
// copy of the slice.
func DefaultGolden() ([]GoldenQuery, error) {
	goldenOnce.Do(func() {
		goldenData, goldenErr = LoadGolden(bytes.NewReader(configs.Golden))
	})
	if goldenErr != nil {
		return nil, goldenErr
	}
	out := make([]GoldenQuery, len(goldenData))
	copy(out, goldenData)
	return out, nil
}
