package telemetry

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Kind groups daily counters.
type Kind string

const (
	KindTier    Kind = "tier"
	KindLatency Kind = "latency"
	KindOutcome Kind = "outcome"
)

// Outcome counter keys.
const (
	OutcomeTotal      = "total"
	OutcomeCacheHit   = "cache_hit"
	OutcomeDegraded   = "degraded"
	OutcomeZeroResult = "zero_result"
)

// Store persists flushed telemetry. Counts are deltas to add.
type Store interface {
	AddDaily(date string, kind Kind, counts map[string]int64) error
	AddTerms(counts map[string]int64) error
	AddZeroResults(rs []ZeroResult) error
	Close() error
}

// Config bounds the in-memory state of a QueryMetrics.
type Config struct {
	TopTerms      int           // distinct terms tracked, least recently used evicted
	ZeroResults   int           // recent zero-result searches kept
	RepeatWindow  int           // recent queries remembered for repeat detection
	FlushInterval time.Duration // zero disables background flushing
}

// DefaultConfig returns the collector defaults.
func DefaultConfig() Config {
	return Config{
		TopTerms:      100,
		ZeroResults:   100,
		RepeatWindow:  500,
		FlushInterval: time.Minute,
	}
}

const dateLayout = "2006-01-02"

// counters maps a kind to per-key counts.
type counters map[Kind]map[string]int64

func (c counters) inc(kind Kind, key string) {
	m := c[kind]
	if m == nil {
		m = make(map[string]int64)
		c[kind] = m
	}
	m[key]++
}

// pending is everything recorded since the last flush.
type pending struct {
	daily map[string]counters // by date
	terms map[string]int64
	zero  []ZeroResult
}

func newPending() pending {
	return pending{daily: make(map[string]counters), terms: make(map[string]int64)}
}

// Snapshot is a copy of the in-memory statistics.
type Snapshot struct {
	Since           time.Time               `json:"since"`
	TotalQueries    int64                   `json:"total_queries"`
	CacheHits       int64                   `json:"cache_hits"`
	Degraded        int64                   `json:"degraded"`
	ZeroResultCount int64                   `json:"zero_result_count"`
	Repeats         int64                   `json:"repeats"`
	Tiers           map[Tier]int64          `json:"tiers"`
	Latency         map[LatencyBucket]int64 `json:"latency"`
	TopTerms        []TermCount             `json:"top_terms"`
	ZeroResults     []ZeroResult            `json:"zero_results"` // newest first
}

// RepeatRate is the share of searches that repeated a recent query of the
// same user.
func (s Snapshot) RepeatRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.Repeats) / float64(s.TotalQueries)
}

// ZeroResultRate is the share of searches that found nothing.
func (s Snapshot) ZeroResultRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries)
}

// QueryMetrics collects search telemetry in memory and periodically adds
// it to a Store. It is safe for concurrent use.
type QueryMetrics struct {
	mu      sync.Mutex
	cfg     Config
	now     func() time.Time
	since   time.Time
	total   counters
	terms   *lru.Cache[string, int64]
	recent  *lru.Cache[string, struct{}]
	repeats int64
	zero    []ZeroResult // oldest first
	pending pending

	store  Store
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

// NewQueryMetrics creates a collector with DefaultConfig. A nil store keeps
// everything in memory.
func NewQueryMetrics(store Store) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultConfig())
}

// NewQueryMetricsWithConfig creates a collector with cfg, filling
// non-positive bounds from DefaultConfig.
func NewQueryMetricsWithConfig(store Store, cfg Config) *QueryMetrics {
	d := DefaultConfig()
	if cfg.TopTerms <= 0 {
		cfg.TopTerms = d.TopTerms
	}
	if cfg.ZeroResults <= 0 {
		cfg.ZeroResults = d.ZeroResults
	}
	if cfg.RepeatWindow <= 0 {
		cfg.RepeatWindow = d.RepeatWindow
	}

	terms, _ := lru.New[string, int64](cfg.TopTerms)
	recent, _ := lru.New[string, struct{}](cfg.RepeatWindow)
	m := &QueryMetrics{
		cfg:     cfg,
		now:     time.Now,
		since:   time.Now(),
		total:   make(counters),
		terms:   terms,
		recent:  recent,
		pending: newPending(),
		store:   store,
	}

	if store != nil && cfg.FlushInterval > 0 {
		m.stop, m.done = make(chan struct{}), make(chan struct{})
		go m.flushEvery(cfg.FlushInterval)
	}
	return m
}

func (m *QueryMetrics) flushEvery(interval time.Duration) {
	defer close(m.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = m.Flush()
		case <-m.stop:
			return
		}
	}
}

// Record adds one search. It never touches the store.
func (m *QueryMetrics) Record(ev QueryEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = m.now()
	}
	tier := ev.Tier
	if ev.CacheHit {
		tier = TierCached
	}
	bucket := BucketFor(ev.Latency)
	terms := Terms(ev.Query)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	day := m.pending.daily[ev.Timestamp.Format(dateLayout)]
	if day == nil {
		day = make(counters)
		m.pending.daily[ev.Timestamp.Format(dateLayout)] = day
	}
	for _, c := range []counters{m.total, day} {
		c.inc(KindTier, string(tier))
		c.inc(KindLatency, string(bucket))
		c.inc(KindOutcome, OutcomeTotal)
		if ev.CacheHit {
			c.inc(KindOutcome, OutcomeCacheHit)
		}
		if ev.Degraded {
			c.inc(KindOutcome, OutcomeDegraded)
		}
		if ev.ResultCount == 0 {
			c.inc(KindOutcome, OutcomeZeroResult)
		}
	}

	for _, t := range terms {
		n, _ := m.terms.Peek(t)
		m.terms.Add(t, n+1)
		m.pending.terms[t]++
	}

	if ev.ResultCount == 0 {
		zr := ZeroResult{User: ev.User, Query: ev.Query, At: ev.Timestamp}
		m.zero = append(m.zero, zr)
		if len(m.zero) > m.cfg.ZeroResults {
			m.zero = m.zero[len(m.zero)-m.cfg.ZeroResults:]
		}
		if m.store != nil {
			m.pending.zero = append(m.pending.zero, zr)
		}
	}

	key := ev.User + "\x00" + normalizeQuery(ev.Query)
	if m.recent.Contains(key) {
		m.repeats++
	}
	m.recent.Add(key, struct{}{})
}

// Snapshot returns a copy of the in-memory statistics.
func (m *QueryMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	outcome := m.total[KindOutcome]
	s := Snapshot{
		Since:           m.since,
		TotalQueries:    outcome[OutcomeTotal],
		CacheHits:       outcome[OutcomeCacheHit],
		Degraded:        outcome[OutcomeDegraded],
		ZeroResultCount: outcome[OutcomeZeroResult],
		Repeats:         m.repeats,
		Tiers:           make(map[Tier]int64),
		Latency:         make(map[LatencyBucket]int64),
		ZeroResults:     make([]ZeroResult, len(m.zero)),
	}
	for k, n := range m.total[KindTier] {
		s.Tiers[Tier(k)] = n
	}
	for k, n := range m.total[KindLatency] {
		s.Latency[LatencyBucket(k)] = n
	}
	for i, zr := range m.zero {
		s.ZeroResults[len(m.zero)-1-i] = zr
	}
	for _, t := range m.terms.Keys() {
		if n, ok := m.terms.Peek(t); ok {
			s.TopTerms = append(s.TopTerms, TermCount{Term: t, Count: n})
		}
	}
	sort.Slice(s.TopTerms, func(i, j int) bool {
		a, b := s.TopTerms[i], s.TopTerms[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Term < b.Term
	})
	return s
}

// Flush adds everything recorded since the previous flush to the store.
// Without a store it does nothing.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	p := m.pending
	m.pending = newPending()
	m.mu.Unlock()

	dates := make([]string, 0, len(p.daily))
	for d := range p.daily {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates {
		for _, kind := range []Kind{KindTier, KindLatency, KindOutcome} {
			if counts := p.daily[d][kind]; len(counts) > 0 {
				if err := m.store.AddDaily(d, kind, counts); err != nil {
					return err
				}
			}
		}
	}
	if len(p.terms) > 0 {
		if err := m.store.AddTerms(p.terms); err != nil {
			return err
		}
	}
	if len(p.zero) > 0 {
		return m.store.AddZeroResults(p.zero)
	}
	return nil
}

// Close stops background flushing and flushes a final time. Later Records
// are dropped. It does not close the store.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.stop != nil {
		close(m.stop)
		<-m.done
	}
	return m.Flush()
}
