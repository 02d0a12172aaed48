package manifest

import (
	"context"

	"github.com/goliatone/go-pagesync/internal/logging"
	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

// Loader fetches a manifest document and parses it into entries.
type Loader struct {
	fetcher interfaces.SourceFetcher
	logger  interfaces.Logger
}

var _ interfaces.ManifestLoader = (*Loader)(nil)

// LoaderOption customises a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the loader logger.
func WithLogger(logger interfaces.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logging.Ensure(logger)
	}
}

// NewLoader constructs a Loader reading through fetcher. A nil fetcher falls
// back to NewFetcher().
func NewLoader(fetcher interfaces.SourceFetcher, opts ...LoaderOption) *Loader {
	if fetcher == nil {
		fetcher = NewFetcher()
	}
	l := &Loader{fetcher: fetcher, logger: logging.NoOp()}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Load fetches and parses the manifest at location. Fetch failures carry the
// MANIFEST_FETCH_FAILED text code and decode failures MANIFEST_PARSE_FAILED.
// Entries are returned unvalidated; see ValidateEntry.
func (l *Loader) Load(ctx context.Context, location string) ([]interfaces.ManifestEntry, error) {
	data, err := l.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, wrapManifestFetch(location, err)
	}

	entries, err := Parse(data)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("pagesync.manifest.loaded", "location", location, "entries", len(entries), "bytes", len(data))
	return entries, nil
}
