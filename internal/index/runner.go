package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/rolodex/internal/embed"
	"github.com/Aman-CERP/rolodex/internal/store"
	"github.com/Aman-CERP/rolodex/internal/ui"
)

// RunnerConfig configures one import.
type RunnerConfig struct {
	// UserID owns the imported contacts.
	UserID string

	// Source is a JSON file path, or "-" for stdin. Ignored when Contacts
	// is set.
	Source string

	// Contacts, when non-nil, is imported instead of reading Source.
	Contacts []store.Contact

	// Replace discards the user's existing contacts instead of merging.
	Replace bool
}

// RunnerResult contains the outcome of an import.
type RunnerResult struct {
	UserID     string        `json:"user_id"`
	Contacts   int           `json:"contacts"`
	Version    uint64        `json:"version"`
	Embedded   int           `json:"embedded"`
	Unembedded int           `json:"unembedded"`
	Warnings   int           `json:"warnings"`
	Duration   time.Duration `json:"duration_ns"`
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Renderer for progress display (required).
	Renderer ui.Renderer

	// Registry receives the contacts (required).
	Registry *Registry

	// Embedder is reported in the summary. Optional.
	Embedder embed.Embedder

	Logger *slog.Logger
}

// Runner imports a contact file into the registry with progress reporting.
type Runner struct {
	renderer ui.Renderer
	registry *Registry
	embedder embed.Embedder
	logger   *slog.Logger
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		renderer: deps.Renderer,
		registry: deps.Registry,
		embedder: deps.Embedder,
		logger:   logger,
	}, nil
}

// Run loads, indexes and publishes the contacts described by cfg.
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (*RunnerResult, error) {
	start := time.Now()

	// Stage 1: load
	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLoading, Message: cfg.Source})
	contacts := cfg.Contacts
	if contacts == nil {
		loaded, err := LoadContactsFile(cfg.Source)
		if err != nil {
			return nil, err
		}
		contacts = loaded
	}
	loadDuration := time.Since(start)
	warnings := r.checkContacts(contacts)

	// Stage 2: embed and index
	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEmbedding, Total: len(contacts)})
	progress := func(done, total int) {
		r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEmbedding, Current: done, Total: total})
	}

	mutate := r.registry.Upsert
	if cfg.Replace {
		mutate = r.registry.Replace
	}
	version, err := mutate(ctx, cfg.UserID, contacts, WithProgress(progress))
	if err != nil {
		return nil, err
	}

	snap, err := r.registry.Snapshot(cfg.UserID)
	if err != nil {
		return nil, err
	}
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageIndexing,
		Current: snap.Len(),
		Total:   snap.Len(),
		Message: fmt.Sprintf("version %d", version),
	})

	duration := time.Since(start)
	stats := ui.CompletionStats{
		User:       cfg.UserID,
		Contacts:   snap.Len(),
		Version:    version,
		Embedded:   snap.Stats.Embedded,
		Reused:     snap.Stats.Reused,
		Unembedded: snap.Stats.Unembedded,
		Duration:   duration,
		Warnings:   warnings,
		Stages: ui.StageTimings{
			Load:    loadDuration,
			Embed:   snap.Stats.EmbedDuration,
			Index:   snap.Stats.IndexDuration,
			Persist: snap.Stats.PersistDuration,
		},
	}
	if r.embedder != nil {
		stats.Embedder = ui.EmbedderInfo{
			Model:      r.embedder.ModelName(),
			Dimensions: r.embedder.Dimensions(),
		}
	}
	r.renderer.Complete(stats)

	r.logger.Info("import_complete",
		slog.String("user_id", cfg.UserID),
		slog.Int("contacts", snap.Len()),
		slog.Uint64("version", version),
		slog.Int("warnings", warnings),
		slog.Int64("duration_ms", duration.Milliseconds()))

	return &RunnerResult{
		UserID:     cfg.UserID,
		Contacts:   snap.Len(),
		Version:    version,
		Embedded:   snap.Stats.Embedded,
		Unembedded: snap.Stats.Unembedded,
		Warnings:   warnings,
		Duration:   duration,
	}, nil
}

// checkContacts reports contacts that will index poorly. It never rejects.
func (r *Runner) checkContacts(contacts []store.Contact) int {
	warnings := 0
	seen := make(map[string]struct{}, len(contacts))
	for i, c := range contacts {
		item := c.ID
		if item == "" {
			item = fmt.Sprintf("#%d", i)
		}
		if c.FullName == "" {
			warnings++
			r.renderer.AddError(ui.ErrorEvent{Item: item, Err: fmt.Errorf("contact has no name"), IsWarn: true})
		}
		if c.ID == "" {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			warnings++
			r.renderer.AddError(ui.ErrorEvent{Item: item, Err: fmt.Errorf("duplicate id, last entry wins"), IsWarn: true})
		}
		seen[c.ID] = struct{}{}
	}
	return warnings
}
