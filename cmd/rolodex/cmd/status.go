package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/rolodex/internal/config"
	"github.com/Aman-CERP/rolodex/internal/embed"
	"github.com/Aman-CERP/rolodex/internal/reason"
	"github.com/Aman-CERP/rolodex/internal/store"
	"github.com/Aman-CERP/rolodex/internal/telemetry"
	"github.com/Aman-CERP/rolodex/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show contact store health and status",
		Long: `Display information about the contact store including:
  - Store location and size
  - Users with their contact counts, index versions and last update
  - Embedder status (provider model)
  - Reasoning provider
  - Search telemetry of the last 7 days, when the server has recorded any`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runStatus(cmd.Context(), cmd, cfg, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, cfg *config.Config, jsonOutput bool) error {
	info := ui.StatusInfo{
		StorePath:      cfg.Storage.ContactDBPath(),
		EmbedderStatus: "ready",
		Reasoning:      reasoningStatus(cfg.Reasoning.Provider),
	}

	if !cfg.Storage.Persist {
		info.StorePath = "(in memory)"
	} else if fileExists(info.StorePath) {
		users, size, err := storeStatus(ctx, info.StorePath)
		if err != nil {
			return err
		}
		info.Users = users
		info.StoreSize = size
	}
	if path := telemetryPath(cfg); path != "" && fileExists(path) {
		q, err := queryStatus(path, time.Now())
		if err != nil {
			return err
		}
		info.Queries = q
	}

	e, err := embed.NewEmbedder(embedConfig(cfg))
	if err != nil {
		info.EmbedderStatus = "error"
	} else {
		info.EmbedderModel = e.ModelName()
		_ = e.Close()
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

// storeStatus reads per-user stats and the on-disk size, WAL included.
func storeStatus(ctx context.Context, path string) ([]ui.UserStatus, int64, error) {
	s, err := store.NewSQLiteContactStore(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open contact store: %w", err)
	}
	defer s.Close()

	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, 0, err
	}
	users := make([]ui.UserStatus, len(stats))
	for i, st := range stats {
		users[i] = ui.UserStatus{
			User:        st.User,
			Contacts:    st.Contacts,
			Version:     st.Version,
			LastUpdated: st.UpdatedAt,
		}
	}

	var size int64
	for _, p := range []string{path, path + "-wal"} {
		if fi, err := os.Stat(p); err == nil {
			size += fi.Size()
		}
	}
	return users, size, nil
}

// telemetryDays is the window of daily counters status reports.
const telemetryDays = 7

// queryStatus summarises the telemetry recorded by `rolodex serve`.
func queryStatus(path string, now time.Time) (*ui.QueryStatus, error) {
	ms, err := telemetry.OpenSQLiteMetricsStore(path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry: %w", err)
	}
	defer ms.Close()

	const layout = "2006-01-02"
	from, to := now.AddDate(0, 0, 1-telemetryDays).Format(layout), now.Format(layout)

	outcome, err := ms.Daily(telemetry.KindOutcome, from, to)
	if err != nil {
		return nil, err
	}
	tiers, err := ms.Daily(telemetry.KindTier, from, to)
	if err != nil {
		return nil, err
	}
	terms, err := ms.TopTerms(5)
	if err != nil {
		return nil, err
	}
	misses, err := ms.ZeroResults(5)
	if err != nil {
		return nil, err
	}

	q := &ui.QueryStatus{
		Days:        telemetryDays,
		Total:       outcome[telemetry.OutcomeTotal],
		CacheHits:   outcome[telemetry.OutcomeCacheHit],
		ZeroResults: outcome[telemetry.OutcomeZeroResult],
		Tiers:       tiers,
	}
	for _, t := range terms {
		q.TopTerms = append(q.TopTerms, ui.TermStat{Term: t.Term, Count: t.Count})
	}
	for _, m := range misses {
		q.RecentMisses = append(q.RecentMisses, m.Query)
	}
	return q, nil
}

func reasoningStatus(provider string) string {
	switch p := strings.ToLower(provider); p {
	case "", reason.ProviderNone:
		return "disabled"
	default:
		return p
	}
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
