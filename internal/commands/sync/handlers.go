package synccmd

import (
	"context"
	"errors"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-pagesync/internal/commands"
	"github.com/goliatone/go-pagesync/internal/logging"
	pagesync "github.com/goliatone/go-pagesync/internal/sync"
	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

const syncOperation = "sync.manifest"

// ErrRunnerFactoryRequired is returned when no RunnerFactory is supplied.
var ErrRunnerFactoryRequired = errors.New("sync command: runner factory is required")

var _ command.Commander[SyncManifestCommand] = (*SyncManifestHandler)(nil)

// Runner executes one sync run. *sync.Driver satisfies it.
type Runner interface {
	Run(ctx context.Context) (*pagesync.Result, error)
}

// RunnerFactory builds a Runner configured for msg.
type RunnerFactory func(msg SyncManifestCommand) (Runner, error)

// ResultSink receives the result of every run, including partial results
// returned alongside an error.
type ResultSink func(*pagesync.Result)

// SyncManifestHandler runs manifest syncs via the shared command handler foundation.
type SyncManifestHandler struct {
	inner *commands.Handler[SyncManifestCommand]
}

// NewSyncManifestHandler creates a handler that builds a Runner per message
// and forwards each Result to sink when one is given.
func NewSyncManifestHandler(factory RunnerFactory, logger interfaces.Logger, sink ResultSink, opts ...commands.HandlerOption[SyncManifestCommand]) *SyncManifestHandler {
	baseLogger := commands.EnsureLogger(logger)

	exec := func(ctx context.Context, msg SyncManifestCommand) error {
		if factory == nil {
			return ErrRunnerFactoryRequired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		runner, err := factory(msg)
		if err != nil {
			return err
		}

		result, runErr := runner.Run(ctx)
		if result != nil {
			if sink != nil {
				sink(result)
			}
			logging.WithFields(baseLogger, map[string]any{
				"run_id":          result.RunID,
				"created_count":   result.Created,
				"updated_count":   result.Updated,
				"unchanged_count": result.Unchanged,
				"skipped_count":   result.Skipped,
				"failed_count":    result.Failed,
				"dry_run":         msg.DryRun,
			}).Info("sync.command.manifest.completed")
		}
		return runErr
	}

	handlerOpts := []commands.HandlerOption[SyncManifestCommand]{
		commands.WithLogger[SyncManifestCommand](baseLogger),
		commands.WithOperation[SyncManifestCommand](syncOperation),
		commands.WithMessageFields(func(msg SyncManifestCommand) map[string]any {
			fields := map[string]any{
				"manifest_url": msg.ManifestURL,
			}
			if msg.Force {
				fields["force"] = true
			}
			if msg.DryRun {
				fields["dry_run"] = true
			}
			if msg.FlushEachEntry {
				fields["flush_each_entry"] = true
			}
			return fields
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[SyncManifestCommand](nil)),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &SyncManifestHandler{
		inner: commands.NewHandler(exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[SyncManifestCommand].
func (h *SyncManifestHandler) Execute(ctx context.Context, msg SyncManifestCommand) error {
	return h.inner.Execute(ctx, msg)
}
