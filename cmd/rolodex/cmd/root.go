// Package cmd implements the rolodex command line.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/rolodex/internal/logging"
	"github.com/Aman-CERP/rolodex/internal/profiling"
	"github.com/Aman-CERP/rolodex/pkg/version"
)

// globalOptions holds the persistent flags. Cobra resets them to their
// defaults each time NewRootCmd binds them.
type globalOptions struct {
	debug      bool
	configFile string
	profile    profiling.Paths
}

var global globalOptions

// runState is what the pre-run hook starts and the post-run hook stops.
var runState struct {
	closeLog func()
	profiler *profiling.Session
}

const rootLong = `Rolodex answers free-form questions about a contact list.

A query is matched lexically first (BM25F with typo tolerance). When that
is not confident enough it falls through to semantic vector search, and
then to a reasoning filter for questions like "VPs at fintech companies".

Get started:
  rolodex index contacts.json --user me
  rolodex search "john at google" --user me`

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "rolodex",
		Short:             "Hybrid search over personal address books",
		Long:              rootLong,
		Version:           version.Version,
		SilenceUsage:      true,
		PersistentPreRunE: before,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return after()
		},
	}
	root.SetVersionTemplate("rolodex version {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.BoolVar(&global.debug, "debug", false, "Write debug logs to "+logging.DefaultLogPath())
	pf.StringVar(&global.configFile, "config", "", "Config file used instead of .rolodex.yaml")
	pf.StringVar(&global.profile.CPU, "profile-cpu", "", "Write a CPU profile to `file`")
	pf.StringVar(&global.profile.Heap, "profile-mem", "", "Write a heap profile to `file`")
	pf.StringVar(&global.profile.Trace, "profile-trace", "", "Write an execution trace to `file`")

	root.AddCommand(
		newServeCmd(),
		newIndexCmd(),
		newSearchCmd(),
		newExplainCmd(),
		newEvalCmd(),
		newStatusCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func before(*cobra.Command, []string) error {
	if global.debug {
		logger, closeLog, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("debug logging: %w", err)
		}
		runState.closeLog = closeLog
		slog.SetDefault(logger)
		slog.Debug("debug_logging_started",
			slog.String("file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}

	if global.profile.Enabled() {
		s, err := profiling.Start(global.profile)
		if err != nil {
			return err
		}
		runState.profiler = s
	}
	return nil
}

// after flushes profiles first so the log records their errors.
func after() error {
	var errs []error
	if s := runState.profiler; s != nil {
		runState.profiler = nil
		errs = append(errs, s.Stop())
	}
	if closeLog := runState.closeLog; closeLog != nil {
		runState.closeLog = nil
		slog.Debug("debug_logging_stopped")
		closeLog()
	}
	return errors.Join(errs...)
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}
