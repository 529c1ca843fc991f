package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// UserStatus describes one user's stored address book.
type UserStatus struct {
	User        string    `json:"user"`
	Contacts    int       `json:"contacts"`
	Version     uint64    `json:"version"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
}

// TermStat is a search term and its use count.
type TermStat struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// QueryStatus summarises recorded search telemetry.
type QueryStatus struct {
	Days         int              `json:"days"`
	Total        int64            `json:"total"`
	CacheHits    int64            `json:"cache_hits"`
	ZeroResults  int64            `json:"zero_results"`
	Tiers        map[string]int64 `json:"tiers"`
	TopTerms     []TermStat       `json:"top_terms,omitempty"`
	RecentMisses []string         `json:"recent_misses,omitempty"`
}

// StatusInfo is everything `rolodex status` reports.
type StatusInfo struct {
	StorePath string       `json:"store_path"`
	StoreSize int64        `json:"store_size"`
	Users     []UserStatus `json:"users"`

	EmbedderModel  string `json:"embedder_model,omitempty"`
	EmbedderStatus string `json:"embedder_status"` // ready, disabled or error
	Reasoning      string `json:"reasoning"`       // provider name or disabled

	Queries *QueryStatus `json:"queries,omitempty"`
}

// TotalContacts sums contacts across users.
func (s StatusInfo) TotalContacts() int {
	n := 0
	for _, u := range s.Users {
		n += u.Contacts
	}
	return n
}

// StatusRenderer prints a StatusInfo.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render prints a human-readable report. Users are listed by name.
func (r *StatusRenderer) Render(info StatusInfo) error {
	var b strings.Builder
	line := func(format string, args ...any) { fmt.Fprintf(&b, format+"\n", args...) }

	line("%s\n", r.styles.Header.Render("Contact Store: "+info.StorePath))
	line("  Size:     %s", FormatBytes(info.StoreSize))
	line("  Users:    %d", len(info.Users))
	line("  Contacts: %d", info.TotalContacts())

	users := append([]UserStatus(nil), info.Users...)
	sort.Slice(users, func(i, j int) bool { return users[i].User < users[j].User })
	if len(users) > 0 {
		line("")
	}
	for _, u := range users {
		row := fmt.Sprintf("    %-20s %6d contacts  v%d", u.User, u.Contacts, u.Version)
		if !u.LastUpdated.IsZero() {
			row += "  " + r.styles.Dim.Render(formatTime(u.LastUpdated))
		}
		line("%s", row)
	}

	line("")
	line("  Embedder:  %s", r.status(info.EmbedderStatus))
	if info.EmbedderModel != "" {
		line("    Model:   %s", info.EmbedderModel)
	}
	line("  Reasoning: %s", r.status(info.Reasoning))

	if q := info.Queries; q != nil {
		line("")
		line("  Queries (last %d days): %d, %d cached, %d without results", q.Days, q.Total, q.CacheHits, q.ZeroResults)
		if len(q.Tiers) > 0 {
			tiers := make([]string, 0, len(q.Tiers))
			for t := range q.Tiers {
				tiers = append(tiers, t)
			}
			sort.Strings(tiers)
			for i, t := range tiers {
				tiers[i] = fmt.Sprintf("%s %d", t, q.Tiers[t])
			}
			line("    tiers:  %s", strings.Join(tiers, " · "))
		}
		if len(q.TopTerms) > 0 {
			terms := make([]string, len(q.TopTerms))
			for i, t := range q.TopTerms {
				terms[i] = fmt.Sprintf("%s (%d)", t.Term, t.Count)
			}
			line("    terms:  %s", strings.Join(terms, ", "))
		}
		if len(q.RecentMisses) > 0 {
			line("    misses: %s", strings.Join(q.RecentMisses, ", "))
		}
	}

	_, err := io.WriteString(r.out, b.String())
	return err
}

// RenderJSON prints info as indented JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func (r *StatusRenderer) status(s string) string {
	switch s {
	case "ready":
		return r.styles.Success.Render(s)
	case "disabled":
		return r.styles.Warning.Render(s)
	case "error":
		return r.styles.Error.Render(s)
	}
	return s
}

// formatTime renders t relative to now for the last week, absolute after.
func formatTime(t time.Time) string {
	ago := time.Since(t)
	unit := func(n int, name string) string {
		if n == 1 {
			return "1 " + name + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, name)
	}
	switch {
	case ago < time.Minute:
		return "just now"
	case ago < time.Hour:
		return unit(int(ago.Minutes()), "minute")
	case ago < 24*time.Hour:
		return unit(int(ago.Hours()), "hour")
	case ago < 7*24*time.Hour:
		return unit(int(ago.Hours()/24), "day")
	}
	return t.Format("2006-01-02 15:04")
}

// FormatBytes renders n with a binary unit, e.g. "1.5 KB".
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	value, suffix := float64(n)/unit, "KB"
	for _, next := range []string{"MB", "GB", "TB"} {
		if value < unit {
			break
		}
		value, suffix = value/unit, next
	}
	return fmt.Sprintf("%.1f %s", value, suffix)
}
