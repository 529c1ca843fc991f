package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/rolodex/configs"
	"github.com/Aman-CERP/rolodex/internal/config"
	"github.com/Aman-CERP/rolodex/internal/eval"
	"github.com/Aman-CERP/rolodex/internal/index"
	"github.com/Aman-CERP/rolodex/internal/output"
	"github.com/Aman-CERP/rolodex/internal/store"
)

// evalUser owns the fixture address book during an evaluation.
const evalUser = "eval"

// ErrGateFailed is returned when an evaluation misses its thresholds.
var ErrGateFailed = errors.New("quality gate failed")

type evalOptions struct {
	golden      string
	contacts    string
	category    string
	topK        int
	concurrency int
	json        bool
	thresholds  eval.Thresholds
}

func newEvalCmd() *cobra.Command {
	opts := evalOptions{thresholds: eval.DefaultThresholds()}

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run the golden query set and check quality thresholds",
		Long: `Evaluate search quality against labeled queries.

The fixture address book is indexed in memory and every golden query is
run against it. The report covers MRR@10, precision@5, count accuracy
and latency, overall and per category. The command exits non-zero when a
threshold is missed.

Without flags the embedded fixture and golden set are used.`,
		Example: `  rolodex eval
  rolodex eval --category typo
  rolodex eval --golden queries.yaml --contacts book.json --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runEval(cmd.Context(), cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.golden, "golden", "", "Golden query YAML file (default: embedded set)")
	cmd.Flags().StringVar(&opts.contacts, "contacts", "", "Contact JSON file the queries are labeled against (default: embedded fixture)")
	cmd.Flags().StringVar(&opts.category, "category", "", "Only run queries of this category")
	cmd.Flags().IntVarP(&opts.topK, "limit", "k", eval.DefaultTopK, "Results requested per query")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", eval.DefaultConcurrency, "Queries in flight")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output the report as JSON")
	cmd.Flags().Float64Var(&opts.thresholds.MinMRR, "min-mrr", opts.thresholds.MinMRR, "Minimum MRR@10")
	cmd.Flags().Float64Var(&opts.thresholds.MinPrecisionAt5, "min-precision", opts.thresholds.MinPrecisionAt5, "Minimum precision@5")
	cmd.Flags().Float64Var(&opts.thresholds.MinCountAccuracy, "min-count-accuracy", opts.thresholds.MinCountAccuracy, "Minimum count accuracy")
	cmd.Flags().DurationVar(&opts.thresholds.MaxMeanLatency, "max-latency", opts.thresholds.MaxMeanLatency, "Mean latency must stay below this")

	return cmd
}

// evalOutput is the JSON shape of an evaluation.
type evalOutput struct {
	Report *eval.Report    `json:"report"`
	Gate   eval.GateResult `json:"gate"`
}

func runEval(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts evalOptions) error {
	logger := cliLogger(cmd.ErrOrStderr())

	queries, err := loadGoldenQueries(opts.golden, opts.category)
	if err != nil {
		return err
	}
	contacts, err := loadFixture(opts.contacts)
	if err != nil {
		return err
	}

	// The fixture never touches the contact store.
	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	start := time.Now()
	if _, err := a.engine.UpsertContacts(ctx, evalUser, contacts); err != nil {
		return fmt.Errorf("index fixture: %w", err)
	}
	logger.Debug("eval_fixture_indexed",
		slog.Int("contacts", len(contacts)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	report, err := eval.Run(ctx, a.engine, evalUser, queries,
		eval.WithTopK(opts.topK),
		eval.WithConcurrency(opts.concurrency),
		eval.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	gate := eval.Gate(report, opts.thresholds)

	out := output.New(cmd.OutOrStdout())
	if opts.json {
		if err := out.JSON(evalOutput{Report: report, Gate: gate}); err != nil {
			return err
		}
	} else {
		out.EvalReport(report, gate)
	}

	if !gate.Passed {
		return ErrGateFailed
	}
	return nil
}

func loadGoldenQueries(path, category string) ([]eval.GoldenQuery, error) {
	var (
		queries []eval.GoldenQuery
		err     error
	)
	if path == "" {
		queries, err = eval.DefaultGolden()
	} else {
		var f *os.File
		if f, err = os.Open(path); err != nil {
			return nil, fmt.Errorf("open golden set: %w", err)
		}
		defer f.Close()
		queries, err = eval.LoadGolden(f)
	}
	if err != nil {
		return nil, err
	}

	if category == "" {
		return queries, nil
	}
	filtered := queries[:0:0]
	for _, q := range queries {
		if q.Category == category {
			filtered = append(filtered, q)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no golden queries in category %q", category)
	}
	return filtered, nil
}

func loadFixture(path string) ([]store.Contact, error) {
	if path == "" {
		return index.DecodeContacts(bytes.NewReader(configs.Contacts))
	}
	return index.LoadContactsFile(path)
}
