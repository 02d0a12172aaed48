package sync

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeEntryFetch = "ENTRY_FETCH_FAILED"
	TextCodeFlush      = "FINGERPRINT_FLUSH_FAILED"
	TextCodeCancelled  = "SYNC_CANCELLED"
)

var (
	ErrManifestLoaderRequired = errors.New("sync: manifest loader is required")
	ErrFetcherRequired        = errors.New("sync: source fetcher is required")
	ErrPublisherRequired      = errors.New("sync: page publisher is required")
	ErrStoreRequired          = errors.New("sync: fingerprint store is required")
	ErrManifestURLRequired    = errors.New("sync: manifest location is required")
)

func wrapEntryFetch(source string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, "markdown source could not be fetched").
		WithTextCode(TextCodeEntryFetch).
		WithMetadata(map[string]any{"source": source})
}

func wrapFlush(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, "fingerprints could not be persisted").
		WithTextCode(TextCodeFlush)
}

func wrapCancelled(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "sync run cancelled").
		WithTextCode(TextCodeCancelled)
}
