package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/rolodex/internal/config"
	"github.com/Aman-CERP/rolodex/internal/output"
	"github.com/Aman-CERP/rolodex/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	user    string
	limit   int
	json    bool
	explain bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a user's contacts",
		Long: `Search a user's stored contacts.

Names, companies, titles and emails are matched lexically with typo
tolerance. Weak matches fall through to semantic search, and questions
like "VPs at fintech companies" to the reasoning filter.`,
		Example: `  rolodex search "john smith" --user alice
  rolodex search "engineers at google" --user alice -k 5
  rolodex search "fintech vps" --user alice --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runSearch(cmd.Context(), cmd, cfg, strings.Join(args, " "), opts)
		},
	}

	addSearchFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show the route taken and per-result scoring")

	return cmd
}

// newExplainCmd is search with --explain always on.
func newExplainCmd() *cobra.Command {
	opts := searchOptions{explain: true}

	cmd := &cobra.Command{
		Use:   "explain <query>",
		Short: "Search and show why each contact matched",
		Long: `Run a search and print the route through the tiers, the reasoning
filter if one was extracted, and for every result the matched fields and
terms, per-tier scores, boosts and seniority level.`,
		Example: `  rolodex explain "senior engineers at stripe" --user alice`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runSearch(cmd.Context(), cmd, cfg, strings.Join(args, " "), opts)
		},
	}

	addSearchFlags(cmd, &opts)

	return cmd
}

func addSearchFlags(cmd *cobra.Command, opts *searchOptions) {
	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "User whose contacts to search (required)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "k", 0, "Maximum number of results (default: search.default_top_k)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("user")
}

// searchOutput is the JSON shape of a CLI search.
type searchOutput struct {
	Query string `json:"query"`
	*search.Response
	Explanations []search.Explanation `json:"explanations,omitempty"`
}

func runSearch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, query string, opts searchOptions) error {
	logger := cliLogger(cmd.ErrOrStderr())
	slog.Debug("search_started", slog.String("query", query), slog.Int("limit", opts.limit))

	a, err := newApp(ctx, cfg, logger, persistentOptions(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	resp, err := a.engine.Search(ctx, opts.user, query, opts.limit)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if opts.json {
		so := searchOutput{Query: query, Response: resp}
		if opts.explain {
			so.Explanations = make([]search.Explanation, len(resp.Results))
			for i, r := range resp.Results {
				so.Explanations[i] = search.Explain(r)
			}
		}
		return out.JSON(so)
	}

	out.SearchResults(query, resp, opts.explain)
	return nil
}
