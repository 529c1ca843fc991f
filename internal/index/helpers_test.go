package index

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rolodex/internal/embed"
	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
	"github.com/Aman-CERP/rolodex/internal/logging"
	"github.com/Aman-CERP/rolodex/internal/store"
	"github.com/Aman-CERP/rolodex/internal/ui"
)

// flakyEmbedder wraps the static embedder, failing any batch that contains
// a text with failOn, and counting the texts it embeds.
type flakyEmbedder struct {
	*embed.StaticEmbedder
	failOn   string
	embedded atomic.Int64
}

func newFlakyEmbedder(failOn string) *flakyEmbedder {
	return &flakyEmbedder{StaticEmbedder: embed.NewStaticEmbedder(64), failOn: failOn}
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if f.failOn != "" && strings.Contains(t, f.failOn) {
			return nil, errors.New("provider exploded")
		}
	}
	f.embedded.Add(int64(len(texts)))
	return f.StaticEmbedder.EmbedBatch(ctx, texts)
}

// newTestBatch returns a single-item, no-retry batch embedder so a failing
// contact only affects itself.
func newTestBatch(t *testing.T, e embed.Embedder) *embed.BatchEmbedder {
	t.Helper()
	batch, err := embed.NewBatchEmbedder(e, embed.BatchConfig{
		BatchSize: 1,
		Workers:   2,
		Retry:     rerrors.RetryConfig{MaxRetries: 0},
	}, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(batch.Release)
	return batch
}

func newTestRegistry(t *testing.T, e embed.Embedder, opts ...Option) *Registry {
	t.Helper()
	var batch *embed.BatchEmbedder
	if e != nil {
		batch = newTestBatch(t, e)
	}
	builder := NewBuilder(DefaultBuilderConfig(), batch, logging.Discard())
	return NewRegistry(builder, append([]Option{WithLogger(logging.Discard())}, opts...)...)
}

func sampleContacts() []store.Contact {
	return []store.Contact{
		{ID: "c1", FullName: "John Smith", Company: "Google", Position: "Software Engineer"},
		{ID: "c2", FullName: "Jane Doe", Company: "Stripe", Position: "Product Manager"},
		{ID: "c3", FullName: "Michael Chen", Company: "Goldman Sachs", Position: "Vice President"},
	}
}

// recordingRenderer implements ui.Renderer for testing.
type recordingRenderer struct {
	mu       sync.Mutex
	progress []ui.ProgressEvent
	errors   []ui.ErrorEvent
	stats    *ui.CompletionStats
}

func (r *recordingRenderer) Start(context.Context) error { return nil }

func (r *recordingRenderer) UpdateProgress(event ui.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, event)
}

func (r *recordingRenderer) AddError(event ui.ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, event)
}

func (r *recordingRenderer) Complete(stats ui.CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = &stats
}

func (r *recordingRenderer) Stop() error { return nil }

func (r *recordingRenderer) stages() []ui.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ui.Stage
	for _, e := range r.progress {
		if len(out) == 0 || out[len(out)-1] != e.Stage {
			out = append(out, e.Stage)
		}
	}
	return out
}
