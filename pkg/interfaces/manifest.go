package interfaces

import "context"

// ManifestEntry is one document listed in the remote manifest. Entries are
// immutable for the duration of a run.
type ManifestEntry struct {
	// Key is the map key for map-shaped manifests or the list index.
	Key    string
	Slug   string
	Source string
	Parent string
	Order  int
	// ContentID and Endpoint are only set by legacy manifests that address
	// existing posts or pages by identifier.
	ContentID int
	Endpoint  string
	// DecodeErr is set when the record could not be decoded. The other
	// fields then hold whatever was read before the failure.
	DecodeErr error
}

// Legacy reports whether the entry uses the id-addressed publishing mode.
func (e ManifestEntry) Legacy() bool {
	return e.ContentID > 0 && e.Endpoint != ""
}

// ManifestLoader fetches and parses the manifest for a run.
type ManifestLoader interface {
	Load(ctx context.Context, location string) ([]ManifestEntry, error)
}

// SourceFetcher retrieves the raw bytes of a manifest or Markdown source.
type SourceFetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}
