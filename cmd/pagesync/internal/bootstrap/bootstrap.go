package bootstrap

import (
	"fmt"
	"io"
	"os"
	"strings"

	synccmd "github.com/goliatone/go-pagesync/internal/commands/sync"
	"github.com/goliatone/go-pagesync/internal/fingerprint"
	"github.com/goliatone/go-pagesync/internal/logging"
	"github.com/goliatone/go-pagesync/internal/logging/console"
	"github.com/goliatone/go-pagesync/internal/logging/gologger"
	"github.com/goliatone/go-pagesync/internal/manifest"
	"github.com/goliatone/go-pagesync/internal/markdown"
	"github.com/goliatone/go-pagesync/internal/metrics"
	"github.com/goliatone/go-pagesync/internal/runtimeconfig"
	pagesync "github.com/goliatone/go-pagesync/internal/sync"
	"github.com/goliatone/go-pagesync/internal/wordpress"
	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

const userAgent = "go-pagesync"

// Options captures configuration for CLI bootstraps.
type Options struct {
	// ConfigPath points at a JSON or YAML config file.
	ConfigPath string
	// Config is used instead of ConfigPath when non-nil.
	Config *runtimeconfig.Config
	// LoggerProvider overrides the provider derived from the logging section.
	LoggerProvider interfaces.LoggerProvider
	// LogWriter receives console log output. Defaults to stderr.
	LogWriter io.Writer
	// Verbose lowers the console log level to debug.
	Verbose bool
}

// Module holds the collaborators wired for one CLI invocation.
type Module struct {
	Config         runtimeconfig.Config
	LoggerProvider interfaces.LoggerProvider
	Logger         interfaces.Logger
	Client         *wordpress.Client
	Converter      *markdown.Converter
	Fetcher        *manifest.Fetcher
	Loader         *manifest.Loader
	Store          *fingerprint.FileStore
	Metrics        *metrics.Metrics
}

// BuildModule loads configuration and wires every sync collaborator.
func BuildModule(opts Options) (*Module, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := loggerProvider(cfg, opts)
	if err != nil {
		return nil, err
	}

	client, err := wordpress.NewClient(wordpress.ClientConfig{
		Domain:            cfg.WordPressDomain,
		Username:          cfg.Username,
		AppPassword:       cfg.APIKey,
		Timeout:           cfg.Timeout.Duration,
		UserAgent:         userAgent,
		Logger:            logging.PublisherLogger(provider),
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise wordpress client: %w", err)
	}

	storePath := strings.TrimSpace(cfg.FingerprintFile)
	if storePath == "" {
		if storePath, err = fingerprint.DefaultPath(); err != nil {
			return nil, fmt.Errorf("resolve fingerprint path: %w", err)
		}
	}
	store, err := fingerprint.Open(storePath, fingerprint.WithLogger(logging.SyncLogger(provider)))
	if err != nil {
		return nil, err
	}

	fetcher := manifest.NewFetcher(
		manifest.WithTimeout(cfg.Timeout.Duration),
		manifest.WithUserAgent(userAgent),
	)

	return &Module{
		Config:         cfg,
		LoggerProvider: provider,
		Logger:         logging.SyncLogger(provider),
		Client:         client,
		Converter:      NewConverter(cfg, provider),
		Fetcher:        fetcher,
		Loader:         manifest.NewLoader(fetcher, manifest.WithLogger(logging.ManifestLogger(provider))),
		Store:          store,
		Metrics:        metrics.New(),
	}, nil
}

// Runner builds a sync driver for msg. It satisfies synccmd.RunnerFactory.
func (m *Module) Runner(msg synccmd.SyncManifestCommand) (synccmd.Runner, error) {
	publisher, err := wordpress.NewPublisher(m.Client, m.Converter,
		wordpress.WithPublisherLogger(logging.PublisherLogger(m.LoggerProvider)),
		wordpress.WithStatus(m.Config.Status),
		wordpress.WithDryRun(msg.DryRun),
	)
	if err != nil {
		return nil, err
	}

	driver, err := pagesync.NewDriver(pagesync.Dependencies{
		Manifest:  m.Loader,
		Fetcher:   m.Fetcher,
		Publisher: publisher,
		Store:     m.Store,
		Logger:    m.Logger,
		Metrics:   m.Metrics,
	}, pagesync.Options{
		ManifestURL:      msg.ManifestURL,
		Collection:       m.Config.Collection,
		Force:            msg.Force,
		FlushEachEntry:   msg.FlushEachEntry || m.Config.FlushEachEntry,
		FetchConcurrency: m.Config.FetchConcurrency,
		DryRun:           msg.DryRun,
	})
	if err != nil {
		return nil, err
	}
	return driver, nil
}

// LoadConfig reads the config at path without requiring credentials. An
// empty path yields the defaults with environment overrides applied.
func LoadConfig(path string) (runtimeconfig.Config, error) {
	if strings.TrimSpace(path) == "" {
		return runtimeconfig.DefaultConfig().WithEnv(os.LookupEnv), nil
	}
	return runtimeconfig.ParseFile(path)
}

// NewConverter builds the Markdown converter described by cfg.
func NewConverter(cfg runtimeconfig.Config, provider interfaces.LoggerProvider) *markdown.Converter {
	return markdown.NewConverter(cfg.ParseOptions(), markdown.WithLogger(logging.MarkdownLogger(provider)))
}

// NewLoggerProvider builds the provider named by cfg.Logging.
func NewLoggerProvider(cfg runtimeconfig.Config, writer io.Writer, verbose bool) (interfaces.LoggerProvider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Provider)) {
	case "gologger":
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     level,
			Format:    cfg.Logging.Format,
			AddSource: cfg.Logging.AddSource,
			Focus:     cfg.Logging.Focus,
		})
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		level, err := console.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return nil, err
		}
		if verbose {
			level = console.LevelDebug
		}
		return console.NewProvider(console.Options{Writer: writer, MinLevel: &level}), nil
	}
}

func resolveConfig(opts Options) (runtimeconfig.Config, error) {
	if opts.Config != nil {
		return *opts.Config, nil
	}
	if strings.TrimSpace(opts.ConfigPath) == "" {
		return runtimeconfig.DefaultConfig().WithEnv(os.LookupEnv), nil
	}
	return runtimeconfig.ParseFile(opts.ConfigPath)
}

func loggerProvider(cfg runtimeconfig.Config, opts Options) (interfaces.LoggerProvider, error) {
	if opts.LoggerProvider != nil {
		return opts.LoggerProvider, nil
	}
	provider, err := NewLoggerProvider(cfg, opts.LogWriter, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("initialise logger: %w", err)
	}
	return provider, nil
}
