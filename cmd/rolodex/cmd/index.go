package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/rolodex/internal/config"
	"github.com/Aman-CERP/rolodex/internal/index"
	"github.com/Aman-CERP/rolodex/internal/output"
	"github.com/Aman-CERP/rolodex/internal/ui"
)

type indexOptions struct {
	user    string
	replace bool
	noTUI   bool
	json    bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <contacts.json>",
		Short: "Import a contact file for a user",
		Long: `Import a JSON array of contacts and build the user's indexes.

Contacts are merged by id into the user's stored address book; use
--replace to discard contacts missing from the file. Pass "-" to read
from stdin.`,
		Example: `  rolodex index contacts.json --user alice
  cat export.json | rolodex index - --user alice --replace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runIndex(ctx, cmd, cfg, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "User that owns the contacts (required)")
	cmd.Flags().BoolVar(&opts.replace, "replace", false, "Replace the stored address book instead of merging")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the import result as JSON")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, cfg *config.Config, source string, opts indexOptions) error {
	logger := cliLogger(cmd.ErrOrStderr())

	return withDataLock(cfg, func() error {
		a, err := newApp(ctx, cfg, logger, persistentOptions(cfg))
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		rendererOut := cmd.OutOrStdout()
		if opts.json {
			rendererOut = cmd.ErrOrStderr()
		}
		renderer := ui.NewRenderer(ui.NewConfig(rendererOut,
			ui.WithForcePlain(opts.noTUI || opts.json),
			ui.WithNoColor(ui.DetectNoColor()),
			ui.WithSource(source),
		))
		if err := renderer.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = renderer.Stop() }()

		runner, err := index.NewRunner(index.RunnerDependencies{
			Renderer: renderer,
			Registry: a.registry,
			Embedder: a.embedder,
			Logger:   logger,
		})
		if err != nil {
			return err
		}

		result, err := runner.Run(ctx, index.RunnerConfig{
			UserID:  opts.user,
			Source:  source,
			Replace: opts.replace,
		})
		if err != nil {
			renderer.AddError(ui.ErrorEvent{Item: source, Err: err})
			return err
		}
		if opts.json {
			return output.New(cmd.OutOrStdout()).JSON(result)
		}
		return nil
	})
}
