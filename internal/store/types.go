package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Field identifies an indexed contact attribute.
type Field uint8

const (
	FieldName Field = iota
	FieldCompany
	FieldPosition
	FieldEmail

	numFields
)

// AllFields lists the lexical fields in display order.
var AllFields = []Field{FieldName, FieldCompany, FieldPosition, FieldEmail}

// String returns the field's wire name.
func (f Field) String() string {
	switch f {
	case FieldName:
		return "name"
	case FieldCompany:
		return "company"
	case FieldPosition:
		return "position"
	case FieldEmail:
		return "email"
	default:
		return "unknown"
	}
}

// MarshalText encodes the field by name so JSON and YAML outputs are readable.
func (f Field) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText parses a field name.
func (f *Field) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "name":
		*f = FieldName
	case "company":
		*f = FieldCompany
	case "position":
		*f = FieldPosition
	case "email":
		*f = FieldEmail
	default:
		return fmt.Errorf("unknown field %q", text)
	}
	return nil
}

// Contact is one address-book entry owned by a single user.
// Empty strings mean the attribute is absent.
type Contact struct {
	ID          string `json:"id" yaml:"id"`
	FullName    string `json:"full_name" yaml:"full_name"`
	Company     string `json:"company,omitempty" yaml:"company,omitempty"`
	Position    string `json:"position,omitempty" yaml:"position,omitempty"`
	Email       string `json:"email,omitempty" yaml:"email,omitempty"`
	ConnectedOn string `json:"connected_on,omitempty" yaml:"connected_on,omitempty"` // YYYY-MM-DD
	Notes       string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Value returns the raw text of a lexical field.
func (c Contact) Value(f Field) string {
	switch f {
	case FieldName:
		return c.FullName
	case FieldCompany:
		return c.Company
	case FieldPosition:
		return c.Position
	case FieldEmail:
		return c.Email
	default:
		return ""
	}
}

// FieldWeights holds the per-field multipliers of the lexical score.
type FieldWeights struct {
	Name     float64 `yaml:"name" json:"name"`
	Company  float64 `yaml:"company" json:"company"`
	Position float64 `yaml:"position" json:"position"`
	Email    float64 `yaml:"email" json:"email"`
}

// DefaultFieldWeights returns name=3.0, company=2.0, position=1.5, email=0.5.
func DefaultFieldWeights() FieldWeights {
	return FieldWeights{Name: 3.0, Company: 2.0, Position: 1.5, Email: 0.5}
}

// Weight returns the weight for f.
func (w FieldWeights) Weight(f Field) float64 {
	switch f {
	case FieldName:
		return w.Name
	case FieldCompany:
		return w.Company
	case FieldPosition:
		return w.Position
	case FieldEmail:
		return w.Email
	default:
		return 0
	}
}

// LexicalConfig configures BM25F scoring.
type LexicalConfig struct {
	Weights FieldWeights
	K1      float64 // term frequency saturation (default 1.2)
	B       float64 // length normalization (default 0.75)
}

// DefaultLexicalConfig returns the standard BM25 parameters and field weights.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{
		Weights: DefaultFieldWeights(),
		K1:      1.2,
		B:       0.75,
	}
}

// LexicalHit is one Tier-1 result.
type LexicalHit struct {
	ContactID     string
	Score         float64
	MatchedFields []Field  // in AllFields order
	MatchedTerms  []string // indexed terms that scored, sorted
	NameMatched   bool
}

// LexicalStats describes an index for diagnostics.
type LexicalStats struct {
	Documents  int
	Terms      int
	Postings   int
	DeleteKeys int
}

// VectorHit is one Tier-2 result.
type VectorHit struct {
	ContactID  string
	Distance   float32
	Similarity float64 // 1 - cosine distance, clamped to [0,1]
}

// VectorIndexConfig configures the HNSW graph.
type VectorIndexConfig struct {
	Dimensions    int
	M             int     // max neighbors per node (default 16)
	EfSearch      int     // candidates considered per search (default 64)
	MinSimilarity float64 // hits below this similarity are dropped
	Seed          int64   // level generation seed, fixed for reproducible graphs
}

// DefaultVectorIndexConfig returns settings for address-book sized graphs.
func DefaultVectorIndexConfig(dimensions int) VectorIndexConfig {
	return VectorIndexConfig{
		Dimensions:    dimensions,
		M:             16,
		EfSearch:      64,
		MinSimilarity: 0.35,
		Seed:          1,
	}
}

// ErrZeroVector is returned by VectorIndex.Add for a vector with no
// direction. Such a vector is not inserted.
var ErrZeroVector = errors.New("zero vector")

// ErrDimensionMismatch indicates a vector of the wrong length.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// ContactStore persists contacts and per-user index versions.
type ContactStore interface {
	// SaveUser replaces the stored contact set of userID and records version.
	SaveUser(ctx context.Context, userID string, contacts []Contact, version uint64) error

	// LoadUser returns the stored contacts and version of userID.
	// A user with nothing stored yields (nil, 0, nil).
	LoadUser(ctx context.Context, userID string) ([]Contact, uint64, error)

	// Users lists every user with stored contacts, sorted.
	Users(ctx context.Context) ([]string, error)

	// Close releases resources.
	Close() error
}
