package eval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/Aman-CERP/rolodex/internal/search"
)

// Harness defaults.
const (
	DefaultTopK        = 10
	DefaultConcurrency = 4

	mrrDepth       = 10
	precisionDepth = 5
)

// Searcher is the part of the search engine the harness drives.
type Searcher interface {
	Search(ctx context.Context, user, query string, topK int) (*search.Response, error)
}

// QueryResult captures the outcome of a single golden query.
type QueryResult struct {
	Query          GoldenQuery   `json:"query"`
	Passed         bool          `json:"passed"`
	Duration       time.Duration `json:"duration_ns"`
	ReturnedIDs    []string      `json:"returned_ids"`
	TierUsed       search.Tier   `json:"tier_used"`
	Degraded       bool          `json:"degraded,omitempty"`
	ReciprocalRank float64       `json:"reciprocal_rank"`
	PrecisionAt5   float64       `json:"precision_at_5"`
	Error          string        `json:"error,omitempty"`
}

// Metric is a mean over the N queries it applies to. Value is 0 when N is 0.
type Metric struct {
	Value float64 `json:"value"`
	N     int     `json:"n"`
}

// CategoryStats is the pass rate of one query category.
type CategoryStats struct {
	Passed   int     `json:"passed"`
	Total    int     `json:"total"`
	PassRate float64 `json:"pass_rate"`
}

// Report is the result of a full evaluation run.
type Report struct {
	Timestamp     time.Time                `json:"timestamp"`
	User          string                   `json:"user"`
	Queries       []QueryResult            `json:"queries"`
	MRR           Metric                   `json:"mrr_at_10"`
	PrecisionAt5  Metric                   `json:"precision_at_5"`
	CountAccuracy Metric                   `json:"count_accuracy"`
	MeanLatency   time.Duration            `json:"mean_latency_ns"`
	P95Latency    time.Duration            `json:"p95_latency_ns"`
	Categories    map[string]CategoryStats `json:"categories"`
	ZeroResults   []string                 `json:"zero_results"`
	Errors        int                      `json:"errors"`
}

// Option configures a Run.
type Option func(*runConfig)

type runConfig struct {
	topK        int
	concurrency int
	logger      *slog.Logger
}

// WithTopK sets the result depth requested per query.
func WithTopK(k int) Option {
	return func(c *runConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithConcurrency bounds the number of queries in flight.
func WithConcurrency(n int) Option {
	return func(c *runConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLogger sets the logger used for per-query failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Run executes every query against s as user and scores the results.
// A failing query is recorded in its QueryResult and does not stop the
// run; only cancellation of ctx does.
func Run(ctx context.Context, s Searcher, user string, queries []GoldenQuery, opts ...Option) (*Report, error) {
	if s == nil {
		return nil, fmt.Errorf("eval: nil searcher")
	}
	cfg := runConfig{topK: DefaultTopK, concurrency: DefaultConcurrency, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.topK < mrrDepth {
		cfg.topK = mrrDepth
	}

	results := make([]QueryResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = runOne(gctx, s, user, q, cfg)
			if results[i].Error != "" {
				cfg.logger.Warn("eval_query_failed",
					slog.String("id", q.ID),
					slog.String("error", results[i].Error))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return buildReport(user, results), nil
}

func runOne(ctx context.Context, s Searcher, user string, q GoldenQuery, cfg runConfig) QueryResult {
	r := QueryResult{Query: q, ReturnedIDs: []string{}}

	start := time.Now()
	resp, err := s.Search(ctx, user, q.Query, cfg.topK)
	r.Duration = time.Since(start)
	if err != nil {
		r.Error = err.Error()
		return r
	}

	for _, res := range resp.Results {
		r.ReturnedIDs = append(r.ReturnedIDs, res.Contact.ID)
	}
	r.TierUsed = resp.TierUsed
	r.Degraded = resp.Degraded

	r.Passed = true
	if len(q.ExpectedIDs) > 0 {
		r.ReciprocalRank = ReciprocalRank(r.ReturnedIDs, q.ExpectedIDs, mrrDepth)
		r.PrecisionAt5 = PrecisionAt(r.ReturnedIDs, q.ExpectedIDs, precisionDepth)
		if r.ReciprocalRank == 0 {
			r.Passed = false
		}
	}
	if q.ExpectedCount != nil && len(r.ReturnedIDs) != *q.ExpectedCount {
		r.Passed = false
	}
	return r
}

func buildReport(user string, results []QueryResult) *Report {
	rep := &Report{
		Timestamp:   time.Now(),
		User:        user,
		Queries:     results,
		Categories:  make(map[string]CategoryStats),
		ZeroResults: []string{},
	}

	var rr, p5, counts, latencies []float64
	for _, r := range results {
		q := r.Query

		cs := rep.Categories[q.Category]
		cs.Total++
		if r.Passed {
			cs.Passed++
		}
		rep.Categories[q.Category] = cs

		if r.Error != "" {
			rep.Errors++
		} else {
			latencies = append(latencies, float64(r.Duration))
			if len(r.ReturnedIDs) == 0 {
				rep.ZeroResults = append(rep.ZeroResults, q.ID)
			}
		}

		if len(q.ExpectedIDs) > 0 {
			rr = append(rr, r.ReciprocalRank)
			p5 = append(p5, r.PrecisionAt5)
		}
		if q.ExpectedCount != nil {
			hit := 0.0
			if r.Error == "" && len(r.ReturnedIDs) == *q.ExpectedCount {
				hit = 1
			}
			counts = append(counts, hit)
		}
	}

	for name, cs := range rep.Categories {
		if cs.Total > 0 {
			cs.PassRate = float64(cs.Passed) / float64(cs.Total)
		}
		rep.Categories[name] = cs
	}

	rep.MRR = mean(rr)
	rep.PrecisionAt5 = mean(p5)
	rep.CountAccuracy = mean(counts)
	if len(latencies) > 0 {
		sort.Float64s(latencies)
		rep.MeanLatency = time.Duration(stat.Mean(latencies, nil))
		rep.P95Latency = time.Duration(stat.Quantile(0.95, stat.Empirical, latencies, nil))
	}
	sort.Strings(rep.ZeroResults)
	return rep
}

func mean(xs []float64) Metric {
	if len(xs) == 0 {
		return Metric{}
	}
	return Metric{Value: stat.Mean(xs, nil), N: len(xs)}
}

// ReciprocalRank is 1/rank of the first returned id that is relevant
// within the top depth results, or 0.
func ReciprocalRank(returned, relevant []string, depth int) float64 {
	set := toSet(relevant)
	for i, id := range returned {
		if i >= depth {
			break
		}
		if set[id] {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// PrecisionAt is the number of relevant ids in the top depth results over
// min(depth, len(relevant)), so a query with fewer relevant contacts than
// depth can still reach 1.
func PrecisionAt(returned, relevant []string, depth int) float64 {
	denom := min(depth, len(relevant))
	if denom == 0 {
		return 0
	}
	set := toSet(relevant)
	hits := 0
	for i, id := range returned {
		if i >= depth {
			break
		}
		if set[id] {
			hits++
			delete(set, id)
		}
	}
	return float64(hits) / float64(denom)
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
