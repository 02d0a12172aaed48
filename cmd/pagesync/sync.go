package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-pagesync/cmd/pagesync/internal/bootstrap"
	"github.com/goliatone/go-pagesync/internal/commands"
	synccmd "github.com/goliatone/go-pagesync/internal/commands/sync"
	"github.com/goliatone/go-pagesync/internal/report"
	pagesync "github.com/goliatone/go-pagesync/internal/sync"
)

// ErrEntriesFailed is returned when a run completes with failed entries.
var ErrEntriesFailed = errors.New("pagesync: one or more entries failed")

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Publish changed manifest entries to WordPress",
		Long: `Sync loads the manifest, fetches every listed Markdown source and publishes
the entries whose content fingerprint changed since the last run.

Examples:
  # Regular run using a config file
  pagesync sync -c pagesync.yaml

  # Republish everything
  pagesync sync -c pagesync.yaml --force

  # Show what would change and write a Markdown report
  pagesync sync -c pagesync.yaml --dry-run --report -`,
		Args: cobra.NoArgs,
		RunE: runSyncCmd,
	}

	cmd.Flags().StringP("manifest", "m", "", "Manifest location overriding source_url")
	cmd.Flags().BoolP("force", "f", false, "Republish every entry regardless of fingerprints")
	cmd.Flags().Bool("dry-run", false, "Resolve and render pages without writing anything")
	cmd.Flags().Bool("flush-each-entry", false, "Persist fingerprints after every publish")
	cmd.Flags().StringP("report", "r", "", "Write a Markdown report to this path (- for stdout)")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics in textfile format to this path")

	return cmd
}

type syncFlags struct {
	manifest       string
	force          bool
	dryRun         bool
	flushEachEntry bool
	report         string
	metricsFile    string
}

func readSyncFlags(cmd *cobra.Command) (syncFlags, error) {
	var flags syncFlags
	var err error
	if flags.manifest, err = cmd.Flags().GetString("manifest"); err != nil {
		return flags, err
	}
	if flags.force, err = cmd.Flags().GetBool("force"); err != nil {
		return flags, err
	}
	if flags.dryRun, err = cmd.Flags().GetBool("dry-run"); err != nil {
		return flags, err
	}
	if flags.flushEachEntry, err = cmd.Flags().GetBool("flush-each-entry"); err != nil {
		return flags, err
	}
	if flags.report, err = cmd.Flags().GetString("report"); err != nil {
		return flags, err
	}
	if flags.metricsFile, err = cmd.Flags().GetString("metrics-file"); err != nil {
		return flags, err
	}
	return flags, nil
}

func runSyncCmd(cmd *cobra.Command, _ []string) error {
	flags, err := readSyncFlags(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runSync(ctx, cmd, flags)
}

func runSync(ctx context.Context, cmd *cobra.Command, flags syncFlags) error {
	module, err := moduleBuilder(bootstrap.Options{
		ConfigPath: persistentString(cmd, "config"),
		LogWriter:  cmd.ErrOrStderr(),
		Verbose:    persistentBool(cmd, "verbose"),
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	manifestURL := strings.TrimSpace(flags.manifest)
	if manifestURL == "" {
		manifestURL = module.Config.SourceURL
	}

	var result *pagesync.Result
	handler := synccmd.NewSyncManifestHandler(
		module.Runner,
		commands.CommandLogger(module.LoggerProvider, "sync"),
		func(r *pagesync.Result) { result = r },
		commands.WithTimeout[synccmd.SyncManifestCommand](0),
	)

	runErr := handler.Execute(ctx, synccmd.SyncManifestCommand{
		ManifestURL:    manifestURL,
		Force:          flags.force,
		DryRun:         flags.dryRun,
		FlushEachEntry: flags.flushEachEntry,
	})

	if result != nil {
		printSummary(cmd.OutOrStdout(), result)
		if err := writeReport(cmd.OutOrStdout(), flags.report, result); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}

	metricsFile := strings.TrimSpace(flags.metricsFile)
	if metricsFile == "" {
		metricsFile = strings.TrimSpace(module.Config.MetricsFile)
	}
	if metricsFile != "" && module.Metrics != nil {
		if err := module.Metrics.WriteTextfile(metricsFile); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("write metrics: %w", err))
		}
	}

	if runErr != nil {
		return runErr
	}
	if result != nil && result.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrEntriesFailed, result.Failed, len(result.Entries))
	}
	return nil
}

func printSummary(w io.Writer, result *pagesync.Result) {
	mode := ""
	if result.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "sync %s%s: %d created, %d updated, %d unchanged, %d skipped, %d failed in %s\n",
		result.RunID, mode,
		result.Created, result.Updated, result.Unchanged, result.Skipped, result.Failed,
		result.Duration().Round(time.Millisecond),
	)
	for _, entry := range result.Entries {
		if entry.Err == nil {
			continue
		}
		fmt.Fprintf(w, "  %s [%s] %v\n", entry.Slug, entry.State, entry.Err)
	}
}

func writeReport(stdout io.Writer, path string, result *pagesync.Result) error {
	path = strings.TrimSpace(path)
	switch path {
	case "":
		return nil
	case "-":
		return report.NewMarkdownWriter(stdout).Write(result)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.NewMarkdownWriter(file).Write(result); err != nil {
		_ = file.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return file.Close()
}
