package synccmd

import (
	"context"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-pagesync/internal/commands"
	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

// CommandRegistry is the minimal registration contract expected when wiring command handlers.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// CronRegistrar matches the function signature used by go-command registries.
type CronRegistrar func(command.HandlerConfig, any) error

// HandlerSet groups the handlers produced by RegisterSyncCommands.
type HandlerSet struct {
	Sync *SyncManifestHandler
}

// Option customises handler wiring during registration.
type Option func(*options)

type options struct {
	sink            ResultSink
	syncHandlerOpts []commands.HandlerOption[SyncManifestCommand]
}

// WithResultSink forwards every run result to sink.
func WithResultSink(sink ResultSink) Option {
	return func(cfg *options) {
		cfg.sink = sink
	}
}

// WithSyncHandlerOptions forwards options to the SyncManifestHandler constructor.
func WithSyncHandlerOptions(opts ...commands.HandlerOption[SyncManifestCommand]) Option {
	return func(cfg *options) {
		cfg.syncHandlerOpts = append(cfg.syncHandlerOpts, opts...)
	}
}

// RegisterSyncCommands builds the sync handlers and registers them with reg
// when it is non-nil.
func RegisterSyncCommands(reg CommandRegistry, factory RunnerFactory, provider interfaces.LoggerProvider, opts ...Option) (*HandlerSet, error) {
	if factory == nil {
		return nil, ErrRunnerFactoryRequired
	}

	cfg := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	logger := commands.CommandLogger(provider, "sync")
	handler := NewSyncManifestHandler(factory, logger, cfg.sink, cfg.syncHandlerOpts...)

	if reg != nil {
		if err := reg.RegisterCommand(handler); err != nil {
			return nil, err
		}
	}
	return &HandlerSet{Sync: handler}, nil
}

// RegisterSyncCron schedules msg on the registrar using cfg. Scheduled runs
// execute with a background context.
func RegisterSyncCron(reg CronRegistrar, handler *SyncManifestHandler, cfg command.HandlerConfig, msg SyncManifestCommand) error {
	if reg == nil || handler == nil {
		return nil
	}
	return reg(cfg, func() error {
		return handler.Execute(context.Background(), msg)
	})
}
