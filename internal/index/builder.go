package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/Aman-CERP/rolodex/internal/embed"
	"github.com/Aman-CERP/rolodex/internal/reason"
	"github.com/Aman-CERP/rolodex/internal/store"
)

// BuilderConfig configures snapshot construction.
type BuilderConfig struct {
	Lexical store.LexicalConfig

	// Vector configures the HNSW graph. Dimensions is taken from the
	// embedder.
	Vector store.VectorIndexConfig

	// ContextLimit caps the companies and positions in Snapshot.Summary.
	ContextLimit int
}

// DefaultBuilderConfig returns the standard lexical and vector settings.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Lexical:      store.DefaultLexicalConfig(),
		Vector:       store.DefaultVectorIndexConfig(0),
		ContextLimit: reason.DefaultContextLimit,
	}
}

// Builder turns a contact set into a Snapshot.
type Builder struct {
	cfg    BuilderConfig
	batch  *embed.BatchEmbedder
	logger *slog.Logger
}

// NewBuilder creates a builder. A nil batch embedder builds lexical-only
// snapshots.
func NewBuilder(cfg BuilderConfig, batch *embed.BatchEmbedder, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{cfg: cfg, batch: batch, logger: logger}
}

// Build indexes contacts, which must already be sorted by id, as version
// of userID. Vectors of contacts unchanged since prev are reused. Build
// fails only when ctx is cancelled; embedding failures leave the affected
// contacts lexical-only.
func (b *Builder) Build(ctx context.Context, userID string, version uint64, contacts []store.Contact,
	prev *Snapshot, progress embed.ProgressFunc) (*Snapshot, error) {
	snap := &Snapshot{
		UserID:   userID,
		Version:  version,
		Contacts: contacts,
		byID:     make(map[string]int, len(contacts)),
	}
	for i, c := range contacts {
		snap.byID[c.ID] = i
	}

	if b.batch != nil {
		embedStart := time.Now()
		vi, embeddings, stats, err := b.buildVectors(ctx, contacts, prev, progress)
		if err != nil {
			return nil, err
		}
		snap.Vector = vi
		snap.embeddings = embeddings
		snap.Stats = stats
		snap.Stats.EmbedDuration = time.Since(embedStart)
	}

	indexStart := time.Now()
	snap.Lexical = store.BuildLexicalIndex(contacts, b.cfg.Lexical)
	snap.Summary = reason.BuildContext(contacts, b.cfg.ContextLimit)
	snap.Stats.IndexDuration = time.Since(indexStart)
	snap.Stats.Contacts = len(contacts)
	snap.BuiltAt = time.Now()

	return snap, nil
}

// BuildVectorIndex embeds every contact through batch and inserts the
// vectors into a new HNSW graph. Contacts whose batch failed are left out
// and counted in BuildStats.Unembedded.
func BuildVectorIndex(ctx context.Context, batch *embed.BatchEmbedder, contacts []store.Contact,
	cfg store.VectorIndexConfig, logger *slog.Logger) (*store.VectorIndex, BuildStats, error) {
	b := NewBuilder(BuilderConfig{Vector: cfg}, batch, logger)
	vi, _, stats, err := b.buildVectors(ctx, contacts, nil, nil)
	return vi, stats, err
}

func (b *Builder) buildVectors(ctx context.Context, contacts []store.Contact, prev *Snapshot,
	progress embed.ProgressFunc) (*store.VectorIndex, map[string]embedding, BuildStats, error) {
	var stats BuildStats

	embedder := b.batch.Embedder()
	model := embedder.ModelName()
	cfg := b.cfg.Vector
	cfg.Dimensions = embedder.Dimensions()
	vi := store.NewVectorIndex(cfg)
	embeddings := make(map[string]embedding, len(contacts))

	add := func(id string, e embedding) bool {
		if err := vi.Add(id, e.vector); err != nil {
			stats.Unembedded++
			b.logger.Warn("vector_insert_failed",
				slog.String("contact_id", id),
				slog.String("error", err.Error()))
			return false
		}
		embeddings[id] = e
		stats.Embedded++
		return true
	}

	var pending []int
	var texts []string
	for i, c := range contacts {
		text := embed.ContactText(c)
		if text == "" {
			continue
		}
		if prev != nil {
			if e, ok := prev.embeddings[c.ID]; ok && e.model == model && e.text == text {
				if add(c.ID, e) {
					stats.Reused++
				}
				continue
			}
		}
		pending = append(pending, i)
		texts = append(texts, text)
	}

	vectors, _, err := b.batch.EmbedAll(ctx, texts, progress)
	if err != nil {
		return nil, nil, BuildStats{}, err
	}

	for j, i := range pending {
		if vectors[j] == nil {
			stats.Unembedded++
			continue
		}
		add(contacts[i].ID, embedding{model: model, text: texts[j], vector: vectors[j]})
	}

	if stats.Unembedded > 0 {
		b.logger.Warn("contacts_left_lexical_only",
			slog.Int("count", stats.Unembedded),
			slog.Int("total", len(contacts)))
	}

	return vi, embeddings, stats, nil
}
