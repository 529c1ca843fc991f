// Package ui renders contact import progress, either as a live terminal
// view or as plain log lines for pipes and CI.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is one step of an import.
type Stage int

const (
	StageLoading Stage = iota
	StageEmbedding
	StageIndexing
	StagePersisting
	StageComplete
)

var stageNames = [...]struct{ name, tag, short string }{
	StageLoading:    {"Loading", "LOAD", "Load"},
	StageEmbedding:  {"Embedding", "EMBED", "Embed"},
	StageIndexing:   {"Indexing", "INDEX", "Index"},
	StagePersisting: {"Persisting", "PERSIST", "Persist"},
	StageComplete:   {"Complete", "DONE", "Done"},
}

func (s Stage) valid() bool { return s >= 0 && int(s) < len(stageNames) }

// String returns the stage name, e.g. "Embedding".
func (s Stage) String() string {
	if !s.valid() {
		return "Unknown"
	}
	return stageNames[s].name
}

// Icon returns the upper-case tag used by plain output, e.g. "EMBED".
func (s Stage) Icon() string {
	if !s.valid() {
		return "???"
	}
	return stageNames[s].tag
}

// pipeline lists the stages shown in the live view's stage strip.
var pipeline = []Stage{StageLoading, StageEmbedding, StageIndexing, StagePersisting}

// ProgressEvent reports how far the current stage has got.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentItem string
	Message     string
}

// ErrorEvent is a problem with one contact, or with the import when Item
// is empty. Warnings do not fail the import.
type ErrorEvent struct {
	Item   string
	Err    error
	IsWarn bool
}

// StageTimings holds the wall time spent in each stage.
type StageTimings struct {
	Load    time.Duration
	Embed   time.Duration
	Index   time.Duration
	Persist time.Duration
}

// EmbedderInfo names the embedding model used by the build.
type EmbedderInfo struct {
	Model      string
	Dimensions int
}

// CompletionStats summarises a finished import.
type CompletionStats struct {
	User       string
	Contacts   int
	Version    uint64
	Embedded   int // embedded by this build
	Reused     int // vector carried over from the previous version
	Unembedded int // lexical only
	Duration   time.Duration
	Errors     int
	Warnings   int
	Stages     StageTimings
	Embedder   EmbedderInfo
}

// Renderer displays an import.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Source     string // shown in the header, usually the input file
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithForcePlain selects plain output even on a terminal.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables colors in the live view.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithSource sets the header source label.
func WithSource(source string) ConfigOption {
	return func(c *Config) { c.Source = source }
}

// NewConfig returns a Config writing to output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks the live view for interactive terminals and plain
// output for everything else.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	if tui, err := NewTUIRenderer(cfg); err == nil {
		return tui
	}
	return NewPlainRenderer(cfg)
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor reports whether NO_COLOR is set, whatever its value.
func DetectNoColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

var ciEnv = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS", "BUILDKITE"}

// DetectCI reports whether a well-known CI variable is set.
func DetectCI() bool {
	for _, v := range ciEnv {
		if _, ok := os.LookupEnv(v); ok {
			return true
		}
	}
	return false
}
