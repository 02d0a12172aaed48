package runtimeconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-pagesync/internal/markdown"
	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

// TextCodeConfigInvalid tags every configuration error.
const TextCodeConfigInvalid = "CONFIG_INVALID"

var ErrLoggingProviderUnknown = errors.New("pagesync config: logging provider is invalid")
var ErrLoggingLevelInvalid = errors.New("pagesync config: logging level is invalid")
var ErrLoggingFormatInvalid = errors.New("pagesync config: logging format is invalid")
var ErrMarkdownExtensionUnknown = errors.New("pagesync config: markdown extension is unknown")

var collectionPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Config holds the settings for one pagesync installation. The first four
// fields are required; everything else has a default.
type Config struct {
	SourceURL       string `json:"source_url" yaml:"source_url"`
	WordPressDomain string `json:"wordpress_domain" yaml:"wordpress_domain"`
	Username        string `json:"username" yaml:"username"`
	APIKey          string `json:"apikey" yaml:"apikey"`

	Collection        string   `json:"collection" yaml:"collection"`
	FingerprintFile   string   `json:"fingerprint_file" yaml:"fingerprint_file"`
	Timeout           Duration `json:"timeout" yaml:"timeout"`
	FetchConcurrency  int      `json:"fetch_concurrency" yaml:"fetch_concurrency"`
	FlushEachEntry    bool     `json:"flush_each_entry" yaml:"flush_each_entry"`
	Status            string   `json:"status" yaml:"status"`
	RequestsPerSecond float64  `json:"requests_per_second" yaml:"requests_per_second"`
	MetricsFile       string   `json:"metrics_file" yaml:"metrics_file"`

	Markdown MarkdownConfig `json:"markdown" yaml:"markdown"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// MarkdownConfig controls rendering.
type MarkdownConfig struct {
	Extensions []string `json:"extensions" yaml:"extensions"`
	Sanitize   bool     `json:"sanitize" yaml:"sanitize"`
	HardWraps  bool     `json:"hard_wraps" yaml:"hard_wraps"`
	SafeMode   bool     `json:"safe_mode" yaml:"safe_mode"`
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Provider  string   `json:"provider" yaml:"provider"`
	Level     string   `json:"level" yaml:"level"`
	Format    string   `json:"format" yaml:"format"`
	AddSource bool     `json:"add_source" yaml:"add_source"`
	Focus     []string `json:"focus" yaml:"focus"`
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("duration must be a string such as \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// DefaultConfig returns the defaults applied beneath a loaded file.
func DefaultConfig() Config {
	return Config{
		Collection:       "pages",
		Timeout:          Duration{30 * time.Second},
		FetchConcurrency: 4,
		Status:           "publish",
		Markdown: MarkdownConfig{
			Extensions: []string{"gfm", "linkify", "tasklist"},
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
			Format:   "console",
		},
	}
}

// ParseOptions converts the markdown section to renderer options.
func (cfg Config) ParseOptions() interfaces.ParseOptions {
	return interfaces.ParseOptions{
		Extensions: append([]string(nil), cfg.Markdown.Extensions...),
		Sanitize:   cfg.Markdown.Sanitize,
		HardWraps:  cfg.Markdown.HardWraps,
		SafeMode:   cfg.Markdown.SafeMode,
	}
}

// Redacted returns a copy safe to print.
func (cfg Config) Redacted() Config {
	if cfg.APIKey != "" {
		cfg.APIKey = "********"
	}
	return cfg
}

var httpURLRule = validation.By(func(value any) error {
	text, _ := value.(string)
	if text == "" {
		return nil
	}
	parsed, err := url.Parse(text)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return validation.NewError("validation_url_invalid", "must be an http(s) URL")
	}
	return nil
})

// Validate checks required fields and value ranges. Failures carry the
// validation category and the CONFIG_INVALID text code.
func (cfg Config) Validate() error {
	err := validation.ValidateStruct(&cfg,
		validation.Field(&cfg.SourceURL, validation.Required),
		validation.Field(&cfg.WordPressDomain, validation.Required, httpURLRule),
		validation.Field(&cfg.Username, validation.Required),
		validation.Field(&cfg.APIKey, validation.Required),
		validation.Field(&cfg.Collection, validation.Required, validation.Match(collectionPattern)),
		validation.Field(&cfg.FetchConcurrency, validation.Min(1), validation.Max(64)),
		validation.Field(&cfg.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&cfg.Status, validation.Required, validation.In("publish", "draft", "pending", "private", "future")),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "configuration is invalid").WithTextCode(TextCodeConfigInvalid)
	}
	if cfg.Timeout.Duration <= 0 {
		return configError(errors.New("pagesync config: timeout must be positive"))
	}

	provider := normalizeProvider(cfg.Logging.Provider)
	if provider != "" && !isSupportedProvider(provider) {
		return configError(fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider))
	}
	if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
		return configError(fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level))
	}
	if provider == "gologger" {
		if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedFormat(format) {
			return configError(fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format))
		}
	}
	for _, ext := range cfg.Markdown.Extensions {
		if !markdown.KnownExtension(ext) {
			return configError(fmt.Errorf("%w: %s", ErrMarkdownExtensionUnknown, ext))
		}
	}
	return nil
}

func configError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "configuration is invalid").
		WithTextCode(TextCodeConfigInvalid)
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

func isSupportedProvider(provider string) bool {
	switch provider {
	case "console", "gologger":
		return true
	default:
		return false
	}
}

func isSupportedLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json", "console", "pretty":
		return true
	default:
		return false
	}
}
