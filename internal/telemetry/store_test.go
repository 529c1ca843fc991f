package telemetry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteMetricsStore {
	t.Helper()
	s, err := OpenSQLiteMetricsStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteMetricsStore_Daily(t *testing.T) {
	// Given: tier counts over three days, one day written twice
	s := openTestStore(t)
	require.NoError(t, s.AddDaily("2026-05-01", KindTier, map[string]int64{"tier1": 2, "tier2": 1}))
	require.NoError(t, s.AddDaily("2026-05-01", KindTier, map[string]int64{"tier1": 3}))
	require.NoError(t, s.AddDaily("2026-05-02", KindTier, map[string]int64{"tier3": 1}))
	require.NoError(t, s.AddDaily("2026-05-03", KindTier, map[string]int64{"tier1": 10}))
	require.NoError(t, s.AddDaily("2026-05-01", KindLatency, map[string]int64{"tier1": 99}))

	// When: summing the first two days
	got, err := s.TierCounts("2026-05-01", "2026-05-02")

	// Then: counts accumulate within the range and kinds stay apart
	require.NoError(t, err)
	assert.Equal(t, map[Tier]int64{TierLexical: 5, TierSemantic: 1, TierReasoning: 1}, got)

	none, err := s.Daily(KindOutcome, "2026-01-01", "2026-12-31")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteMetricsStore_Terms(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.AddTerms(map[string]int64{"google": 2, "stripe": 2, "engineer": 1}))
	require.NoError(t, s.AddTerms(map[string]int64{"engineer": 4}))
	require.NoError(t, s.AddTerms(nil))

	top, err := s.TopTerms(2)
	require.NoError(t, err)
	assert.Equal(t, []TermCount{{"engineer", 5}, {"google", 2}}, top)
}

func TestSQLiteMetricsStore_ZeroResults(t *testing.T) {
	s := openTestStore(t)
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	var batch []ZeroResult
	for i := 0; i < MaxZeroResults+5; i++ {
		batch = append(batch, ZeroResult{User: "alice", Query: "q" + string(rune('a'+i%26)), At: at.Add(time.Duration(i) * time.Second)})
	}
	require.NoError(t, s.AddZeroResults(batch))

	got, err := s.ZeroResults(MaxZeroResults * 2)
	require.NoError(t, err)
	assert.Len(t, got, MaxZeroResults)
	newest := batch[len(batch)-1]
	assert.Equal(t, newest.Query, got[0].Query, "newest first")
	assert.True(t, newest.At.Equal(got[0].At), "time round-trips")
}

func TestOpenSQLiteMetricsStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "telemetry.db")

	s, err := OpenSQLiteMetricsStore(path)
	require.NoError(t, err)
	m := NewQueryMetricsWithConfig(s, Config{})
	m.Record(QueryEvent{User: "alice", Query: "Jane Doe", Tier: TierLexical, ResultCount: 1, Timestamp: day1})
	m.Record(QueryEvent{User: "alice", Query: "zzz", Tier: TierSemantic, Timestamp: day1})
	require.NoError(t, m.Close())
	require.NoError(t, s.Close())

	s, err = OpenSQLiteMetricsStore(path)
	require.NoError(t, err)
	defer s.Close()

	tiers, err := s.TierCounts("2026-05-01", "2026-05-01")
	require.NoError(t, err)
	assert.Equal(t, map[Tier]int64{TierLexical: 1, TierSemantic: 1}, tiers)

	outcome, err := s.Daily(KindOutcome, "2026-05-01", "2026-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(2), outcome[OutcomeTotal])

	zero, err := s.ZeroResults(10)
	require.NoError(t, err)
	require.Len(t, zero, 1)
	assert.Equal(t, "zzz", zero[0].Query)
}
