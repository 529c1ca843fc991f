// Package telemetry keeps local search statistics: which tier answered,
// how fast, what people search for and which searches found nothing.
// Nothing leaves the process except through an optional SQLite store.
package telemetry

import (
	"strings"
	"time"
)

// Tier labels the deepest search tier that produced a response.
type Tier string

const (
	TierLexical   Tier = "tier1"
	TierSemantic  Tier = "tier2"
	TierReasoning Tier = "tier3"
	TierCached    Tier = "cached"
)

// QueryEvent is one completed search.
type QueryEvent struct {
	User        string
	Query       string
	Tier        Tier
	ResultCount int
	Latency     time.Duration
	CacheHit    bool
	Degraded    bool
	Timestamp   time.Time
}

// LatencyBucket names a latency histogram bucket by its upper bound.
type LatencyBucket string

// latencyBounds are the exclusive upper bounds of every bucket but the last.
var latencyBounds = []struct {
	upper  time.Duration
	bucket LatencyBucket
}{
	{10 * time.Millisecond, "lt10ms"},
	{50 * time.Millisecond, "lt50ms"},
	{100 * time.Millisecond, "lt100ms"},
	{500 * time.Millisecond, "lt500ms"},
}

// BucketSlow holds every latency of 500ms or more.
const BucketSlow LatencyBucket = "ge500ms"

// Buckets lists the histogram buckets, fastest first.
func Buckets() []LatencyBucket {
	out := make([]LatencyBucket, 0, len(latencyBounds)+1)
	for _, b := range latencyBounds {
		out = append(out, b.bucket)
	}
	return append(out, BucketSlow)
}

// BucketFor returns the bucket d falls into.
func BucketFor(d time.Duration) LatencyBucket {
	for _, b := range latencyBounds {
		if d < b.upper {
			return b.bucket
		}
	}
	return BucketSlow
}

// Terms returns the lowercased words of query that are worth counting:
// three bytes or longer, trimmed of surrounding punctuation.
func Terms(query string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, `.,;:!?"'()`)
		if len(w) >= 3 {
			out = append(out, w)
		}
	}
	return out
}

// normalizeQuery collapses case and whitespace for repeat detection.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// TermCount is a search term and how often it was used.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// ZeroResult is a search that found no contacts.
type ZeroResult struct {
	User  string    `json:"user"`
	Query string    `json:"query"`
	At    time.Time `json:"at"`
}
