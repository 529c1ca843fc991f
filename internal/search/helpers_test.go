package search

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rolodex/configs"
	"github.com/Aman-CERP/rolodex/internal/cache"
	"github.com/Aman-CERP/rolodex/internal/embed"
	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
	"github.com/Aman-CERP/rolodex/internal/index"
	"github.com/Aman-CERP/rolodex/internal/logging"
	"github.com/Aman-CERP/rolodex/internal/reason"
	"github.com/Aman-CERP/rolodex/internal/store"
)

const testUser = "alice"

// fixtureContacts returns the embedded 60-contact address book.
func fixtureContacts(t *testing.T) []store.Contact {
	t.Helper()
	contacts, err := index.DecodeContacts(bytes.NewReader(configs.Contacts))
	require.NoError(t, err)
	return contacts
}

// newTestRegistry builds a registry; a nil embedder leaves it lexical-only.
func newTestRegistry(t *testing.T, e embed.Embedder) *index.Registry {
	t.Helper()
	var batch *embed.BatchEmbedder
	if e != nil {
		var err error
		batch, err = embed.NewBatchEmbedder(e, embed.BatchConfig{
			BatchSize: 16,
			Workers:   2,
			Retry:     rerrors.RetryConfig{MaxRetries: 0},
		}, logging.Discard())
		require.NoError(t, err)
		t.Cleanup(batch.Release)
	}
	builder := index.NewBuilder(index.DefaultBuilderConfig(), batch, logging.Discard())
	return index.NewRegistry(builder, index.WithLogger(logging.Discard()))
}

type engineSetup struct {
	embedder      embed.Embedder // used to build vectors
	queryEmbedder embed.Embedder // used at query time, defaults to embedder
	reasoner      reason.Provider
	cacheSize     int
	config        *Config
	opts          []EngineOption
}

// newTestEngine indexes contacts for testUser and returns the engine.
func newTestEngine(t *testing.T, contacts []store.Contact, s engineSetup) *Engine {
	t.Helper()

	reg := newTestRegistry(t, s.embedder)
	if contacts != nil {
		_, err := reg.Upsert(context.Background(), testUser, contacts)
		require.NoError(t, err)
	}

	cfg := DefaultConfig()
	if s.config != nil {
		cfg = *s.config
	}

	opts := []EngineOption{WithLogger(logging.Discard()), WithCache(cache.New[*Response](s.cacheSize))}
	qe := s.queryEmbedder
	if qe == nil {
		qe = s.embedder
	}
	if qe != nil {
		opts = append(opts, WithEmbedder(qe))
	}
	if s.reasoner != nil {
		opts = append(opts, WithReasoner(s.reasoner))
	}
	opts = append(opts, s.opts...)

	e, err := NewEngine(reg, cfg, opts...)
	require.NoError(t, err)
	return e
}

func resultIDs(resp *Response) []string {
	ids := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		ids[i] = r.Contact.ID
	}
	return ids
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// failingQueryEmbedder builds vectors normally but fails every query embed.
type failingQueryEmbedder struct {
	*embed.StaticEmbedder
}

func (f *failingQueryEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, rerrors.ProviderUnavailable("static", errors.New("connection refused"))
}

// stallingEmbedder ignores ctx and blocks each query embed for delay.
type stallingEmbedder struct {
	*embed.StaticEmbedder
	delay time.Duration
}

func (s *stallingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	time.Sleep(s.delay)
	return s.StaticEmbedder.Embed(context.Background(), text)
}

// stubProvider returns a fixed filter or error and counts calls.
type stubProvider struct {
	mu     sync.Mutex
	filter *reason.Filter
	err    error
	calls  int
	onCall func()
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) ExtractFilter(ctx context.Context, _ string, _ reason.Context, _ time.Duration) (*reason.Filter, error) {
	p.mu.Lock()
	p.calls++
	onCall := p.onCall
	p.mu.Unlock()
	if onCall != nil {
		onCall()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.filter, p.err
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// recordingObserver implements Observer for testing.
type recordingObserver struct {
	mu    sync.Mutex
	tiers []string
}

func (o *recordingObserver) ObserveSearch(tier string, _, _ bool, _ int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tiers = append(o.tiers, tier)
}

func intPtr(n int) *int { return &n }
