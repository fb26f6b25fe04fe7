// Package cmd provides the CLI commands for corpusrank.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/corpusrank/internal/logging"
	"github.com/Aman-CERP/corpusrank/internal/profiling"
	"github.com/Aman-CERP/corpusrank/pkg/version"
)

// Global flags
var (
	debugMode  bool
	configDir  string
	profileCPU string
	profileMem string
)

var (
	profile        *profiling.Session
	loggingCleanup func()
)

// NewRootCmd creates the root command for the corpusrank CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpusrank",
		Short: "Ranked retrieval over a local document corpus",
		Long: `corpusrank indexes a directory of markdown, text and PDF documents and
answers queries with passages ranked by semantic similarity, BM25, recency
and source quality. It can also estimate how well the corpus covers a topic
or a whole outline.

Start with 'corpusrank index' in the corpus directory.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("corpusrank version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging (mirrored to stderr)")
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Project directory holding .corpusrank.yaml (default: current directory)")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write heap profile to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newHybridCmd())
	cmd.AddCommand(newCoverageCmd())
	cmd.AddCommand(newOutlineCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging configures file logging and starts profiling
// when requested. serve never mirrors logs to stderr.
func startProfilingAndLogging(cmd *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	if cmd.Name() == "serve" {
		logCfg = logging.StderrOff(logCfg)
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("version", version.Version))

	if opts := (profiling.Options{CPUPath: profileCPU, HeapPath: profileMem}); opts.Enabled() {
		if profile, err = profiling.Start(opts); err != nil {
			return err
		}
	}
	return nil
}

// stopProfilingAndLogging flushes profiles and closes the log file.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	err := profile.Stop()
	profile = nil
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	if err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	return nil
}

// Execute runs the root command. Post-run hooks are skipped when a command
// fails, so logging and profiling are also closed here.
func Execute() error {
	err := NewRootCmd().Execute()
	_ = stopProfilingAndLogging(nil, nil)
	return err
}
