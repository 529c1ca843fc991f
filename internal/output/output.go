// Package output provides consistent CLI output formatting for search
// results and evaluation reports.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/rolodex/internal/eval"
	"github.com/Aman-CERP/rolodex/internal/search"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// SearchResults prints a response in human-readable form. With explain
// set, each result is followed by its scoring breakdown.
func (w *Writer) SearchResults(query string, resp *search.Response, explain bool) {
	header := fmt.Sprintf("Found %d results for %q (%s, %.1fms", len(resp.Results), query, resp.TierUsed, resp.LatencyMs)
	if resp.CacheHit {
		header += ", cached"
	}
	if resp.Degraded {
		header += ", degraded"
	}
	w.Status("🔍", header+")")

	if explain && len(resp.Route) > 0 {
		route := make([]string, len(resp.Route))
		for i, s := range resp.Route {
			route[i] = string(s)
		}
		w.Status("", "Route: "+strings.Join(route, " → "))
	}
	if explain && resp.Filter != nil && resp.Filter.Summary != "" {
		w.Status("", "Filter: "+resp.Filter.Summary)
	}
	w.Newline()

	for i, r := range resp.Results {
		w.Statusf("", "%d. %s (score: %.3f)", i+1, contactLine(r), r.Score)
		if explain {
			w.explanation(search.Explain(r))
		}
	}
}

func (w *Writer) explanation(ex search.Explanation) {
	tiers := make([]search.Tier, 0, len(ex.Scores))
	for t := range ex.Scores {
		tiers = append(tiers, t)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })

	scores := make([]string, len(tiers))
	for i, t := range tiers {
		scores[i] = fmt.Sprintf("%s=%.3f", t, ex.Scores[t])
	}
	fields := make([]string, len(ex.MatchedFields))
	for i, f := range ex.MatchedFields {
		fields[i] = f.String()
	}

	w.Status("", "      scores: "+strings.Join(scores, " "))
	if len(fields) > 0 {
		w.Statusf("", "      matched: %s [%s]", strings.Join(fields, ","), strings.Join(ex.MatchedTerms, ","))
	}
	if len(ex.Boosts) > 0 {
		w.Status("", "      boosts: "+strings.Join(ex.Boosts, ","))
	}
	w.Statusf("", "      seniority: %d", ex.SeniorityLevel)
}

func contactLine(r search.Result) string {
	c := r.Contact
	parts := []string{c.FullName}
	switch {
	case c.Position != "" && c.Company != "":
		parts = append(parts, c.Position+" @ "+c.Company)
	case c.Company != "":
		parts = append(parts, c.Company)
	case c.Position != "":
		parts = append(parts, c.Position)
	}
	return fmt.Sprintf("%s [%s]", strings.Join(parts, " · "), c.ID)
}

// EvalReport prints an evaluation report and its gate verdict.
func (w *Writer) EvalReport(rep *eval.Report, gate eval.GateResult) {
	w.Statusf("📊", "Evaluated %d queries for %q", len(rep.Queries), rep.User)
	w.Newline()
	w.Statusf("", "MRR@10          %.3f  (n=%d)", rep.MRR.Value, rep.MRR.N)
	w.Statusf("", "Precision@5     %.3f  (n=%d)", rep.PrecisionAt5.Value, rep.PrecisionAt5.N)
	w.Statusf("", "Count accuracy  %.3f  (n=%d)", rep.CountAccuracy.Value, rep.CountAccuracy.N)
	w.Statusf("", "Latency         mean %s  p95 %s", roundDuration(rep.MeanLatency), roundDuration(rep.P95Latency))
	w.Newline()

	names := make([]string, 0, len(rep.Categories))
	for name := range rep.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cs := rep.Categories[name]
		w.Statusf("", "%-10s %d/%d  (%.0f%%)", name, cs.Passed, cs.Total, cs.PassRate*100)
	}

	var failed []string
	for _, q := range rep.Queries {
		if !q.Passed {
			failed = append(failed, q.Query.ID)
		}
	}
	if len(failed) > 0 {
		w.Newline()
		w.Warning("Failed queries: " + strings.Join(failed, ", "))
	}

	w.Newline()
	if gate.Passed {
		w.Success("Quality gate passed")
		return
	}
	w.Error("Quality gate failed")
	for _, f := range gate.Failures {
		w.Status("", "- "+f)
	}
}

func roundDuration(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond)
	default:
		return d.Round(time.Microsecond)
	}
}
