package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/Aman-CERP/rolodex/internal/cache"
	"github.com/Aman-CERP/rolodex/internal/config"
	"github.com/Aman-CERP/rolodex/internal/embed"
	"github.com/Aman-CERP/rolodex/internal/index"
	"github.com/Aman-CERP/rolodex/internal/logging"
	"github.com/Aman-CERP/rolodex/internal/metrics"
	"github.com/Aman-CERP/rolodex/internal/reason"
	"github.com/Aman-CERP/rolodex/internal/search"
	"github.com/Aman-CERP/rolodex/internal/server"
	"github.com/Aman-CERP/rolodex/internal/store"
	"github.com/Aman-CERP/rolodex/internal/telemetry"
)

// telemetryDBName is the query telemetry database inside the data dir.
const telemetryDBName = "telemetry.db"

// loadConfig loads --config when given, else the project config of the
// working directory.
func loadConfig() (*config.Config, error) {
	if global.configFile != "" {
		return config.LoadFile(global.configFile)
	}
	return config.Load(".")
}

// cliLogger is the logger for short-lived commands: the debug logger when
// --debug is set, warnings to errOut otherwise.
func cliLogger(errOut io.Writer) *slog.Logger {
	if global.debug {
		return slog.Default()
	}
	return logging.New(errOut, "warn")
}

func searchConfig(cfg *config.Config) search.Config {
	s := cfg.Search
	return search.Config{
		DefaultTopK:       s.DefaultTopK,
		MaxTopK:           s.MaxTopK,
		MaxQueryLength:    s.MaxQueryLength,
		LexicalWeight:     s.LexicalWeight,
		SemanticWeight:    s.SemanticWeight,
		LexicalScale:      s.LexicalScale,
		MinLexicalResults: s.MinLexicalResults,
		Tier2Threshold:    s.Tier2Threshold,
		Tier3Confidence:   s.Tier3Confidence,
		CandidatePool:     s.CandidatePool,
		EmbedTimeout:      cfg.Embeddings.Timeout,
		ReasonTimeout:     cfg.Reasoning.Timeout,
		ExpandQueries:     s.ExpandQueries,
	}
}

func builderConfig(cfg *config.Config) index.BuilderConfig {
	vector := store.DefaultVectorIndexConfig(cfg.Embeddings.Dimensions)
	vector.M = cfg.Vector.M
	vector.EfSearch = cfg.Vector.EfSearch
	vector.MinSimilarity = cfg.Vector.MinSimilarity

	return index.BuilderConfig{
		Lexical: store.LexicalConfig{
			Weights: store.FieldWeights(cfg.Lexical.Weights),
			K1:      cfg.Lexical.K1,
			B:       cfg.Lexical.B,
		},
		Vector:       vector,
		ContextLimit: cfg.Reasoning.ContextLimit,
	}
}

func embedConfig(cfg *config.Config) embed.Config {
	e := cfg.Embeddings
	return embed.Config{
		Provider:   embed.ProviderType(e.Provider),
		Model:      e.Model,
		BaseURL:    e.BaseURL,
		APIKey:     e.APIKey(),
		Dimensions: e.Dimensions,
		CacheSize:  e.CacheSize,
	}
}

func batchConfig(cfg *config.Config) embed.BatchConfig {
	b := embed.DefaultBatchConfig()
	b.BatchSize = cfg.Embeddings.BatchSize
	b.Workers = cfg.Embeddings.Workers
	b.Timeout = cfg.Embeddings.BuildTimeout
	return b
}

func reasonConfig(cfg *config.Config) reason.Config {
	r := cfg.Reasoning
	return reason.Config{
		Provider: r.Provider,
		Model:    r.Model,
		BaseURL:  r.BaseURL,
		APIKey:   r.APIKey(),
		Guard: reason.GuardConfig{
			Timeout:      r.Timeout,
			MaxFailures:  r.MaxFailures,
			ResetTimeout: r.ResetTimeout,
		},
	}
}

func serverConfig(cfg *config.Config) server.Config {
	s := cfg.Server
	return server.Config{
		Addr:            s.Addr,
		ReadTimeout:     s.ReadTimeout,
		WriteTimeout:    s.WriteTimeout,
		ShutdownTimeout: s.ShutdownTimeout,
		MaxBodyBytes:    s.MaxBodyBytes,
	}
}

// appOptions selects the optional components of an app.
type appOptions struct {
	// storePath opens the SQLite contact store and restores every user
	// from it. Empty keeps the registry in memory.
	storePath string

	// telemetryPath records query telemetry to SQLite. Empty disables it.
	telemetryPath string

	// prometheus registers Prometheus collectors, with runtime metrics.
	prometheus bool
}

// persistentOptions opens the configured contact store when persistence
// is enabled.
func persistentOptions(cfg *config.Config) appOptions {
	if !cfg.Storage.Persist {
		return appOptions{}
	}
	return appOptions{storePath: cfg.Storage.ContactDBPath()}
}

// app bundles the components one command needs.
type app struct {
	embedder     embed.Embedder
	batch        *embed.BatchEmbedder
	reasoner     reason.Provider
	contacts     *store.SQLiteContactStore
	registry     *index.Registry
	engine       *search.Engine
	metrics      *metrics.Metrics
	queryMetrics *telemetry.QueryMetrics
	restored     int

	closers []func() error
}

// newApp builds the embedder, reasoner, registry and engine described by
// cfg. The caller must Close the app.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (a *app, err error) {
	a = &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	if a.embedder, err = embed.NewEmbedder(embedConfig(cfg)); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.embedder.Close)

	if a.batch, err = embed.NewBatchEmbedder(a.embedder, batchConfig(cfg), logger); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { a.batch.Release(); return nil })

	if a.reasoner, err = reason.NewProvider(reasonConfig(cfg), logger); err != nil {
		return nil, err
	}

	regOpts := []index.Option{index.WithLogger(logger)}
	if opts.storePath != "" {
		if a.contacts, err = store.NewSQLiteContactStore(opts.storePath); err != nil {
			return nil, fmt.Errorf("open contact store: %w", err)
		}
		a.closers = append(a.closers, a.contacts.Close)
		regOpts = append(regOpts, index.WithContactStore(a.contacts))
	}
	a.registry = index.NewRegistry(index.NewBuilder(builderConfig(cfg), a.batch, logger), regOpts...)

	engineOpts := []search.EngineOption{
		search.WithLogger(logger),
		search.WithEmbedder(a.embedder),
		search.WithCache(cache.New[*search.Response](cfg.Cache.Size)),
	}
	if a.reasoner != nil {
		engineOpts = append(engineOpts, search.WithReasoner(a.reasoner))
	}
	if cfg.Search.ExpandQueries {
		engineOpts = append(engineOpts, search.WithQueryExpander(search.NewQueryExpander()))
	}
	if opts.prometheus {
		a.metrics = metrics.New(true)
		engineOpts = append(engineOpts, search.WithObserver(a.metrics))
	}
	if opts.telemetryPath != "" {
		ms, err := telemetry.OpenSQLiteMetricsStore(opts.telemetryPath)
		if err != nil {
			// Telemetry is best-effort.
			logger.Warn("telemetry_disabled", slog.String("error", err.Error()))
		} else {
			a.queryMetrics = telemetry.NewQueryMetrics(ms)
			a.closers = append(a.closers, ms.Close, a.queryMetrics.Close)
			engineOpts = append(engineOpts, search.WithMetrics(a.queryMetrics))
		}
	}

	if a.engine, err = search.NewEngine(a.registry, searchConfig(cfg), engineOpts...); err != nil {
		return nil, err
	}

	if a.contacts != nil {
		if a.restored, err = a.registry.Restore(ctx); err != nil {
			return nil, fmt.Errorf("restore indexes: %w", err)
		}
	}
	return a, nil
}

// Close releases every component in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// withDataLock runs fn while holding the data dir lock, so only one
// process writes the contact store at a time.
func withDataLock(cfg *config.Config, fn func() error) error {
	if !cfg.Storage.Persist {
		return fn()
	}
	lock := store.NewDirLock(cfg.Storage.DataDir)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()
	return fn()
}

func telemetryPath(cfg *config.Config) string {
	if !cfg.Storage.Persist {
		return ""
	}
	return filepath.Join(cfg.Storage.DataDir, telemetryDBName)
}
