// Package index owns the per-user contact indexes. Every mutation builds a
// complete new Snapshot off to the side and publishes it atomically, so a
// search always sees one consistent version of a user's address book.
package index

import (
	"sort"
	"time"

	"github.com/Aman-CERP/rolodex/internal/reason"
	"github.com/Aman-CERP/rolodex/internal/store"
)

// Snapshot is one immutable, versioned index of a user's contacts.
// All fields are read-only after publish.
type Snapshot struct {
	UserID  string
	Version uint64

	// Contacts is sorted by id.
	Contacts []store.Contact

	Lexical *store.LexicalIndex

	// Vector is nil when no embedder is configured.
	Vector *store.VectorIndex

	// Summary lists the distinct companies and positions, the context
	// handed to the reasoning provider.
	Summary reason.Context

	Stats   BuildStats
	BuiltAt time.Time

	byID       map[string]int
	embeddings map[string]embedding
}

// embedding remembers the text a vector was computed from, so an unchanged
// contact keeps its vector across rebuilds.
type embedding struct {
	model  string
	text   string
	vector []float32
}

// BuildStats describes how a snapshot was built.
type BuildStats struct {
	Contacts int `json:"contacts"`

	// Embedded counts contacts with a vector, Reused those whose vector
	// came from the previous version.
	Embedded int `json:"embedded"`
	Reused   int `json:"reused"`

	// Unembedded counts contacts left lexical-only after embedding failed.
	Unembedded int `json:"unembedded"`

	EmbedDuration   time.Duration `json:"embed_duration"`
	IndexDuration   time.Duration `json:"index_duration"`
	PersistDuration time.Duration `json:"persist_duration"`
}

// Len returns the number of contacts.
func (s *Snapshot) Len() int {
	return len(s.Contacts)
}

// Contact returns the contact with id.
func (s *Snapshot) Contact(id string) (store.Contact, bool) {
	i, ok := s.byID[id]
	if !ok {
		return store.Contact{}, false
	}
	return s.Contacts[i], true
}

// HasVectors reports whether Tier-2 can run against this snapshot.
func (s *Snapshot) HasVectors() bool {
	return s.Vector != nil && s.Vector.Len() > 0
}

// cloneContacts copies and sorts contacts by id, keeping the last entry
// for a duplicated id.
func cloneContacts(contacts []store.Contact) []store.Contact {
	byID := make(map[string]store.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}
	out := make([]store.Contact, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
