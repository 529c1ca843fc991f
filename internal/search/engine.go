package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/Aman-CERP/rolodex/internal/cache"
	"github.com/Aman-CERP/rolodex/internal/embed"
	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
	"github.com/Aman-CERP/rolodex/internal/index"
	"github.com/Aman-CERP/rolodex/internal/reason"
	"github.com/Aman-CERP/rolodex/internal/store"
	"github.com/Aman-CERP/rolodex/internal/telemetry"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine answers contact searches over the snapshots of a registry.
type Engine struct {
	registry *index.Registry
	embedder embed.Embedder  // nil disables Tier-2
	reasoner reason.Provider // nil disables Tier-3
	cache    *cache.Cache[*Response]
	router   *Router
	fusion   *Fusion
	expander *QueryExpander
	metrics  *telemetry.QueryMetrics
	observer Observer
	config   Config
	logger   *slog.Logger
}

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithEmbedder enables Tier-2 with the embedder used to build the vector
// indexes. Query vectors must come from the same model.
func WithEmbedder(e embed.Embedder) EngineOption {
	return func(en *Engine) {
		en.embedder = e
	}
}

// WithReasoner enables Tier-3.
func WithReasoner(p reason.Provider) EngineOption {
	return func(e *Engine) {
		e.reasoner = p
	}
}

// WithCache sets the response cache. Without it nothing is cached.
func WithCache(c *cache.Cache[*Response]) EngineOption {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithQueryExpander replaces the default expander.
func WithQueryExpander(exp *QueryExpander) EngineOption {
	return func(e *Engine) {
		e.expander = exp
	}
}

// WithMetrics sets an optional query metrics collector.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithObserver sets an optional per-search observer.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a search engine over registry.
func NewEngine(registry *index.Registry, config Config, opts ...EngineOption) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: registry is required", ErrNilDependency)
	}
	config = config.withDefaults()

	e := &Engine{
		registry: registry,
		router: NewRouter(RouterConfig{
			MinLexicalResults: config.MinLexicalResults,
			Tier2Threshold:    config.Tier2Threshold,
			Tier3Confidence:   config.Tier3Confidence,
			LexicalScale:      config.LexicalScale,
		}),
		fusion: NewFusion(FusionConfig{
			LexicalWeight:  config.LexicalWeight,
			SemanticWeight: config.SemanticWeight,
			LexicalScale:   config.LexicalScale,
		}),
		expander: NewQueryExpander(),
		config:   config,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Registry returns the registry the engine searches.
func (e *Engine) Registry() *index.Registry {
	return e.registry
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// CacheStats returns the response cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// UpsertContacts inserts or replaces contacts of user and returns the new
// index version.
func (e *Engine) UpsertContacts(ctx context.Context, user string, contacts []store.Contact, opts ...index.BuildOption) (uint64, error) {
	version, err := e.registry.Upsert(ctx, user, contacts, opts...)
	if err != nil {
		return 0, err
	}
	e.logger.Info("contacts_upserted",
		slog.String("user", user),
		slog.Int("count", len(contacts)),
		slog.Uint64("version", version))
	return version, nil
}

// DeleteContact removes one contact of user and returns the index version.
func (e *Engine) DeleteContact(ctx context.Context, user, id string) (uint64, error) {
	version, err := e.registry.Delete(ctx, user, id)
	if err != nil {
		return 0, err
	}
	e.logger.Info("contact_deleted",
		slog.String("user", user),
		slog.String("id", id),
		slog.Uint64("version", version))
	return version, nil
}

// Explain returns the scoring breakdown of a result.
func (e *Engine) Explain(r Result) Explanation {
	return Explain(r)
}

// Search runs query against the current index of user and returns at most
// topK results. topK <= 0 uses DefaultTopK. Only an unknown user or a
// cancelled context produce an error; failing tiers degrade the response.
func (e *Engine) Search(ctx context.Context, user, query string, topK int) (*Response, error) {
	start := time.Now()

	resp, err := e.search(ctx, user, query, e.clampTopK(topK))
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	resp.LatencyMs = float64(elapsed.Microseconds()) / 1000
	e.record(user, query, resp, elapsed)
	return resp, nil
}

func (e *Engine) search(ctx context.Context, user, query string, topK int) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap, err := e.registry.Snapshot(user)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Results:  []Result{},
		TierUsed: TierLexical,
		Version:  snap.Version,
		Route:    []State{StateReceived},
	}

	if len(query) > e.config.MaxQueryLength {
		inputErr := rerrors.InputError(
			fmt.Sprintf("query is %d bytes, limit is %d", len(query), e.config.MaxQueryLength), nil)
		e.logger.Warn("query_rejected", slog.String("user", user), slog.String("error", inputErr.Error()))
		return resp, nil
	}

	plan := e.router.Classify(query)
	if plan.Query == "" {
		return resp, nil
	}

	if hit, ok := e.cache.Get(user, snap.Version, plan.Query, topK); ok {
		cached := hit.Value.clone()
		cached.CacheHit = true
		cached.Route = []State{StateReceived, StateCached}
		return cached, nil
	}
	resp.Route = append(resp.Route, StateClassified)

	// Tier-1 always runs.
	var extra func(string) []string
	if e.config.ExpandQueries && e.expander != nil {
		extra = e.expander.Expand
	}
	lexical := snap.Lexical.SearchSlots(snap.Lexical.Slots(plan.Query, extra), e.config.CandidatePool)
	planned := TierLexical

	// Boosts and the query embedding see the typo-corrected query.
	corrected, _ := snap.Lexical.Correct(plan.Query)

	var vector []store.VectorHit
	if need, why := e.router.NeedsSemantic(plan, lexical); need && e.embedder != nil && snap.HasVectors() {
		planned = TierSemantic
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := query
		if corrected != plan.Query {
			text = corrected
		}
		hits, err := e.semantic(ctx, snap, text)
		switch {
		case err == nil:
			vector = hits
			resp.TierUsed = TierSemantic
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			resp.Degraded = true
			e.logger.Warn("tier2_degraded",
				slog.String("user", user),
				slog.String("trigger", why),
				slog.String("error", err.Error()))
		}
	}

	fused := e.fusion.Fuse(lexical, vector)
	e.fusion.ApplyBoosts(fused, corrected, snap.Contact)

	top := 0.0
	if len(fused) > 0 {
		top = fused[0].Score
	}

	var results []Result
	if need, why := e.router.NeedsReasoning(plan, top, len(fused)); need && e.reasoner != nil {
		planned = TierReasoning
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		filter, err := e.reasoner.ExtractFilter(ctx, query, snap.Summary, e.config.ReasonTimeout)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			resp.Degraded = true
			e.logger.Warn("tier3_degraded",
				slog.String("user", user),
				slog.String("provider", e.reasoner.Name()),
				slog.String("trigger", why),
				slog.String("code", rerrors.GetCode(err)),
				slog.String("error", err.Error()))
		case !filter.IsEmpty():
			resp.TierUsed = TierReasoning
			resp.Filter = filter
			results = e.filtered(snap, filter, fused)
		}
	}
	if results == nil {
		results = e.materialize(snap, fused)
	}
	if len(results) > topK {
		results = results[:topK]
	}
	resp.Results = results

	resp.Route = append(resp.Route, plannedState(planned), StateFused)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !resp.Degraded {
		e.cache.Put(user, snap.Version, plan.Query, topK, resp.clone())
	}
	return resp, nil
}

// semantic embeds text under the Tier-2 deadline and searches the vector
// index. Misspelled tokens arrive already corrected against the lexical
// vocabulary. The deadline holds even if the embedder ignores ctx.
func (e *Engine) semantic(ctx context.Context, snap *index.Snapshot, query string) ([]store.VectorHit, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.EmbedTimeout)
	defer cancel()

	type result struct {
		vec []float32
		err error
	}
	ch := make(chan result, 1)
	go func() {
		vec, err := e.embedder.Embed(ctx, strings.TrimSpace(query))
		ch <- result{vec, err}
	}()

	select {
	case <-ctx.Done():
		return nil, rerrors.ProviderTimeout(e.embedder.ModelName(), ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return snap.Vector.Search(r.vec, e.config.CandidatePool)
	}
}

// materialize turns fused results into API results.
func (e *Engine) materialize(snap *index.Snapshot, fused []*FusedResult) []Result {
	out := make([]Result, 0, len(fused))
	for _, r := range fused {
		c, ok := snap.Contact(r.ContactID)
		if !ok {
			continue
		}
		out = append(out, newResult(c, r, reason.SeniorityLevel(c.Position)))
	}
	return out
}

// filtered applies a Tier-3 filter over the whole snapshot.
func (e *Engine) filtered(snap *index.Snapshot, filter *reason.Filter, fused []*FusedResult) []Result {
	selected := ApplyFilter(filter, snap.Contacts, fused)
	out := make([]Result, 0, len(selected))
	for _, s := range selected {
		r := newResult(s.Contact, s.FusedResult, s.SeniorityLevel)
		r.Scores[TierReasoning] = s.Score
		out = append(out, r)
	}
	return out
}

func newResult(c store.Contact, r *FusedResult, seniority int) Result {
	scores := make(map[Tier]float64, 3)
	if r.InLexical {
		scores[TierLexical] = r.Lexical
	}
	if r.InSemantic {
		scores[TierSemantic] = r.Semantic
	}
	return Result{
		Contact:        c,
		Score:          r.Score,
		Scores:         scores,
		MatchedFields:  r.MatchedFields,
		MatchedTerms:   r.MatchedTerms,
		Boosts:         r.Boosts,
		SeniorityLevel: seniority,
		NameMatched:    r.NameMatched,
	}
}

func plannedState(t Tier) State {
	switch t {
	case TierSemantic:
		return StateTier2
	case TierReasoning:
		return StateTier3
	default:
		return StateTier1
	}
}

func (e *Engine) clampTopK(k int) int {
	if k <= 0 {
		return e.config.DefaultTopK
	}
	if k > e.config.MaxTopK {
		return e.config.MaxTopK
	}
	return k
}

// record feeds telemetry and the observer. Never blocks the search.
func (e *Engine) record(user, query string, resp *Response, latency time.Duration) {
	tier := resp.TierUsed.telemetryTier()
	if e.metrics != nil {
		e.metrics.Record(telemetry.QueryEvent{
			User:        user,
			Query:       query,
			Tier:        tier,
			ResultCount: len(resp.Results),
			Latency:     latency,
			CacheHit:    resp.CacheHit,
			Degraded:    resp.Degraded,
			Timestamp:   time.Now(),
		})
	}
	if e.observer != nil {
		label := string(tier)
		if resp.CacheHit {
			label = string(telemetry.TierCached)
		}
		e.observer.ObserveSearch(label, resp.CacheHit, resp.Degraded, len(resp.Results), latency)
	}

	e.logger.Debug("search_completed",
		slog.String("user", user),
		slog.String("tier", resp.TierUsed.String()),
		slog.Int("results", len(resp.Results)),
		slog.Bool("cache_hit", resp.CacheHit),
		slog.Bool("degraded", resp.Degraded),
		slog.Duration("latency", latency))
}

// clone deep-copies r, so a caller may modify the copy without touching
// a cached value.
func (r *Response) clone() *Response {
	c := *r
	c.Results = make([]Result, len(r.Results))
	for i, res := range r.Results {
		c.Results[i] = res.clone()
	}
	c.Route = slices.Clone(r.Route)
	if r.Filter != nil {
		f := *r.Filter
		f.Companies = slices.Clone(f.Companies)
		f.PositionKeywords = slices.Clone(f.PositionKeywords)
		f.NameKeywords = slices.Clone(f.NameKeywords)
		if f.Limit != nil {
			limit := *f.Limit
			f.Limit = &limit
		}
		c.Filter = &f
	}
	return &c
}

func (r Result) clone() Result {
	r.Scores = maps.Clone(r.Scores)
	r.MatchedFields = slices.Clone(r.MatchedFields)
	r.MatchedTerms = slices.Clone(r.MatchedTerms)
	r.Boosts = slices.Clone(r.Boosts)
	return r
}
