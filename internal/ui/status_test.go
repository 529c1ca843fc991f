package ui

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStatus() StatusInfo {
	return StatusInfo{
		StorePath: "/var/lib/rolodex/contacts.db",
		StoreSize: 3 * 1024 * 1024,
		Users: []UserStatus{
			{User: "bob", Contacts: 12, Version: 4},
			{User: "alice", Contacts: 60, Version: 2, LastUpdated: time.Now().Add(-2 * time.Hour)},
		},
		EmbedderModel:  "text-embedding-3-small",
		EmbedderStatus: "ready",
		Reasoning:      "rules",
	}
}

func TestStatusInfo_TotalContacts(t *testing.T) {
	assert.Equal(t, 72, sampleStatus().TotalContacts())
	assert.Equal(t, 0, StatusInfo{}.TotalContacts())
}

func TestStatusRenderer_Render(t *testing.T) {
	// Given: a no-color status renderer
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	// When: rendering status info
	require.NoError(t, r.Render(sampleStatus()))

	// Then: output contains store, users and components
	output := buf.String()
	assert.Contains(t, output, "Contact Store: /var/lib/rolodex/contacts.db")
	assert.Contains(t, output, "3.0 MB")
	assert.Contains(t, output, "Contacts: 72")
	assert.Contains(t, output, "2 hours ago")
	assert.Contains(t, output, "text-embedding-3-small")
	assert.Contains(t, output, "Reasoning: rules")
	assert.NotContains(t, output, "Queries")
	assert.NotContains(t, output, "\x1b[")

	// Then: users are sorted by name
	assert.Less(t, strings.Index(output, "alice"), strings.Index(output, "bob"))
}

func TestStatusRenderer_Render_Queries(t *testing.T) {
	// Given: status with recorded telemetry
	info := sampleStatus()
	info.Queries = &QueryStatus{
		Days:         7,
		Total:        12,
		CacheHits:    3,
		ZeroResults:  2,
		Tiers:        map[string]int64{"tier2": 1, "cached": 3, "tier1": 8},
		TopTerms:     []TermStat{{"google", 4}, {"engineer", 3}},
		RecentMisses: []string{"asdfjkl", "zzz"},
	}
	buf := &bytes.Buffer{}

	// When: rendering
	require.NoError(t, NewStatusRenderer(buf, true).Render(info))

	// Then: the query section is shown with tiers sorted by name
	out := buf.String()
	assert.Contains(t, out, "Queries (last 7 days): 12, 3 cached, 2 without results")
	assert.Contains(t, out, "tiers:  cached 3 · tier1 8 · tier2 1")
	assert.Contains(t, out, "terms:  google (4), engineer (3)")
	assert.Contains(t, out, "misses: asdfjkl, zzz")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	// Given: status renderer
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, false)

	// When: rendering as JSON
	require.NoError(t, r.RenderJSON(sampleStatus()))

	// Then: output is valid JSON with snake_case keys
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "/var/lib/rolodex/contacts.db", parsed["store_path"])
	assert.Equal(t, "ready", parsed["embedder_status"])
	users, ok := parsed["users"].([]any)
	require.True(t, ok)
	assert.Len(t, users, 2)
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"just now", now.Add(-10 * time.Second), "just now"},
		{"one minute", now.Add(-90 * time.Second), "1 minute ago"},
		{"minutes", now.Add(-5 * time.Minute), "5 minutes ago"},
		{"hours", now.Add(-3 * time.Hour), "3 hours ago"},
		{"one day", now.Add(-30 * time.Hour), "1 day ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatTime(tt.t))
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{1024 * 1024 * 1024, "1.0 GB"},
		{5 * 1024 * 1024 * 1024 * 1024, "5.0 TB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatBytes(tt.bytes))
		})
	}
}
