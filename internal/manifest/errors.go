package manifest

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeManifestFetch = "MANIFEST_FETCH_FAILED"
	TextCodeManifestParse = "MANIFEST_PARSE_FAILED"
	TextCodeEntryInvalid  = "ENTRY_INVALID"
)

// FetchError describes a failed read of a manifest or Markdown source.
// StatusCode is set for HTTP responses outside the 2xx range.
type FetchError struct {
	Location   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.Location, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.Location, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func wrapManifestFetch(location string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, "manifest could not be fetched").
		WithTextCode(TextCodeManifestFetch).
		WithMetadata(map[string]any{"location": location})
}

func newParseError(format string, args ...any) error {
	return goerrors.New(fmt.Sprintf(format, args...), goerrors.CategoryBadInput).
		WithTextCode(TextCodeManifestParse)
}

func wrapParse(err error, message string) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, message).
		WithTextCode(TextCodeManifestParse)
}
