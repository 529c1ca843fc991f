package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/rolodex/internal/index"
	"github.com/Aman-CERP/rolodex/internal/telemetry"
	"github.com/Aman-CERP/rolodex/internal/ui"
)

func TestIndexThenSearch(t *testing.T) {
	// Given: the fixture indexed for alice in one process
	dir := isolate(t)
	fixture := writeFixture(t, dir)

	out, err := execute(t, "index", fixture, "--user", "alice", "--json")
	require.NoError(t, err)
	var result index.RunnerResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "alice", result.UserID)
	assert.Equal(t, 60, result.Contacts)
	assert.Equal(t, uint64(1), result.Version)

	// When: searching from a fresh process
	out, err = execute(t, "search", "John", "Smith", "--user", "alice", "--json")

	// Then: the index was restored from the contact store
	require.NoError(t, err)
	var resp struct {
		Query   string `json:"query"`
		Version uint64 `json:"version"`
		Results []struct {
			Contact struct {
				ID string `json:"id"`
			} `json:"contact"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "John Smith", resp.Query)
	assert.Equal(t, uint64(1), resp.Version)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "c001", resp.Results[0].Contact.ID)
}

func TestIndex_MergeAndReplace(t *testing.T) {
	dir := isolate(t)
	fixture := writeFixture(t, dir)
	_, err := execute(t, "index", fixture, "--user", "alice", "--no-tui")
	require.NoError(t, err)

	extra := filepath.Join(dir, "extra.json")
	require.NoError(t, os.WriteFile(extra, []byte(`[{"id":"x1","full_name":"Zed Quill","company":"Acme"}]`), 0o644))

	// merging adds to the stored book
	out, err := execute(t, "index", extra, "--user", "alice", "--json")
	require.NoError(t, err)
	var merged index.RunnerResult
	require.NoError(t, json.Unmarshal([]byte(out), &merged))
	assert.Equal(t, 61, merged.Contacts)
	assert.Equal(t, uint64(2), merged.Version)

	// replacing keeps only the file's contacts
	out, err = execute(t, "index", extra, "--user", "alice", "--replace", "--json")
	require.NoError(t, err)
	var replaced index.RunnerResult
	require.NoError(t, json.Unmarshal([]byte(out), &replaced))
	assert.Equal(t, 1, replaced.Contacts)
	assert.Equal(t, uint64(3), replaced.Version)
}

func TestIndex_InvalidFile(t *testing.T) {
	dir := isolate(t)
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"id":`), 0o644))

	_, err := execute(t, "index", bad, "--user", "alice", "--no-tui")
	assert.Error(t, err)
}

func TestSearch_UnknownUser(t *testing.T) {
	isolate(t)

	_, err := execute(t, "search", "john", "--user", "nobody")
	assert.Error(t, err)
}

func TestExplain_ShowsScoring(t *testing.T) {
	dir := isolate(t)
	_, err := execute(t, "index", writeFixture(t, dir), "--user", "alice", "--no-tui")
	require.NoError(t, err)

	out, err := execute(t, "explain", "John Smith", "--user", "alice", "-k", "3")

	require.NoError(t, err)
	assert.Contains(t, out, `results for "John Smith"`)
	assert.Contains(t, out, "Route: ")
	assert.Contains(t, out, "scores: tier1=")
	assert.Contains(t, out, "[c001]")
}

func TestStatus_ListsStoredUsers(t *testing.T) {
	dir := isolate(t)
	fixture := writeFixture(t, dir)
	for _, user := range []string{"bob", "alice"} {
		_, err := execute(t, "index", fixture, "--user", user, "--no-tui")
		require.NoError(t, err)
	}

	out, err := execute(t, "status", "--json")
	require.NoError(t, err)

	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.Len(t, info.Users, 2)
	assert.Equal(t, "alice", info.Users[0].User)
	assert.Equal(t, 60, info.Users[0].Contacts)
	assert.Equal(t, uint64(1), info.Users[0].Version)
	assert.Positive(t, info.StoreSize)
	assert.Equal(t, "ready", info.EmbedderStatus)
	assert.Equal(t, "rules", info.Reasoning)
}

func TestStatus_EmptyStore(t *testing.T) {
	isolate(t)

	out, err := execute(t, "status")

	require.NoError(t, err)
	assert.Contains(t, out, "Users:    0")
}

func TestStatus_ReportsTelemetry(t *testing.T) {
	// Given: telemetry recorded by an earlier server run
	dir := isolate(t)
	ms, err := telemetry.OpenSQLiteMetricsStore(filepath.Join(dir, "data", telemetryDBName))
	require.NoError(t, err)
	m := telemetry.NewQueryMetricsWithConfig(ms, telemetry.Config{})
	m.Record(telemetry.QueryEvent{User: "alice", Query: "google engineer", Tier: telemetry.TierLexical, ResultCount: 3})
	m.Record(telemetry.QueryEvent{User: "alice", Query: "google engineer", Tier: telemetry.TierLexical, ResultCount: 3, CacheHit: true})
	m.Record(telemetry.QueryEvent{User: "alice", Query: "asdfjkl", Tier: telemetry.TierSemantic})
	require.NoError(t, m.Close())
	require.NoError(t, ms.Close())

	// When: reading status
	out, err := execute(t, "status", "--json")
	require.NoError(t, err)

	// Then: the query summary is included
	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.NotNil(t, info.Queries)
	assert.Equal(t, 7, info.Queries.Days)
	assert.Equal(t, int64(3), info.Queries.Total)
	assert.Equal(t, int64(1), info.Queries.CacheHits)
	assert.Equal(t, int64(1), info.Queries.ZeroResults)
	assert.Equal(t, map[string]int64{"tier1": 1, "cached": 1, "tier2": 1}, info.Queries.Tiers)
	assert.Equal(t, "engineer", info.Queries.TopTerms[0].Term, "ties sort by term")
	assert.Equal(t, []string{"asdfjkl"}, info.Queries.RecentMisses)
}
