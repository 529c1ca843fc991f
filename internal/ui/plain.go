package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// PlainRenderer writes one line per event, for pipes and CI logs.
type PlainRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

func (r *PlainRenderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error { return nil }

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error { return nil }

// UpdateProgress prints "[TAG] current/total - note", or "[TAG] note" when
// the total is unknown. Message takes precedence over CurrentItem.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	note := event.Message
	if note == "" {
		note = event.CurrentItem
	}
	switch {
	case event.Total > 0:
		r.printf("[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, note)
	case note != "":
		r.printf("[%s] %s\n", event.Stage.Icon(), note)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	level := "ERROR"
	if event.IsWarn {
		level = "WARN"
	}
	if event.Item == "" {
		r.printf("%s: %v\n", level, event.Err)
		return
	}
	r.printf("%s: %s: %v\n", level, event.Item, event.Err)
}

// Complete prints the import summary.
func (r *PlainRenderer) Complete(st CompletionStats) {
	round := func(d time.Duration) time.Duration { return d.Round(time.Millisecond) }

	var b strings.Builder
	fmt.Fprintf(&b, "Imported %d contacts for %s (version %d) in %s\n", st.Contacts, st.User, st.Version, round(st.Duration))
	if st.Errors > 0 || st.Warnings > 0 {
		fmt.Fprintf(&b, "  %d errors, %d warnings\n", st.Errors, st.Warnings)
	}
	if st.Unembedded > 0 {
		fmt.Fprintf(&b, "  %d contacts are searchable by keyword only\n", st.Unembedded)
	}

	var stages []string
	if d := st.Stages.Load; d > 0 {
		stages = append(stages, "load "+round(d).String())
	}
	if d := st.Stages.Embed; d > 0 {
		embed := "embed " + round(d).String()
		if st.Embedded > 0 {
			embed += fmt.Sprintf(" (%d embedded at %.1f/s, %d reused)", st.Embedded, float64(st.Embedded)/d.Seconds(), st.Reused)
		}
		stages = append(stages, embed)
	}
	if d := st.Stages.Index; d > 0 {
		stages = append(stages, "index "+round(d).String())
	}
	if d := st.Stages.Persist; d > 0 {
		stages = append(stages, "persist "+round(d).String())
	}
	if len(stages) > 0 {
		fmt.Fprintf(&b, "  stages: %s\n", strings.Join(stages, ", "))
	}

	if st.Embedder.Model != "" {
		fmt.Fprintf(&b, "  embedder: %s (%d dims)\n", st.Embedder.Model, st.Embedder.Dimensions)
	}
	r.printf("%s", b.String())
}

var _ Renderer = (*PlainRenderer)(nil)
