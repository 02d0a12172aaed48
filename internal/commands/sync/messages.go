package synccmd

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-pagesync/internal/manifest"
)

const syncManifestMessageType = "pagesync.sync.manifest"

// SyncManifestCommand triggers one change-detection run over the manifest at
// ManifestURL.
type SyncManifestCommand struct {
	// ManifestURL locates the manifest (http(s), file:// or a local path).
	ManifestURL string `json:"manifest_url"`
	// Force republishes every entry regardless of stored fingerprints.
	Force bool `json:"force,omitempty"`
	// DryRun renders and resolves pages without writing pages or fingerprints.
	DryRun bool `json:"dry_run,omitempty"`
	// FlushEachEntry persists fingerprints after every successful publish.
	FlushEachEntry bool `json:"flush_each_entry,omitempty"`
}

// Type implements command.Message.
func (SyncManifestCommand) Type() string { return syncManifestMessageType }

// Validate ensures the manifest location is present and readable by the
// manifest fetcher.
func (cmd SyncManifestCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.ManifestURL, validation.Required, validation.By(func(value any) error {
			location := strings.TrimSpace(value.(string))
			if location == "" {
				return validation.NewError("pagesync.sync.manifest_url_required", "manifest url is required")
			}
			if !manifest.SupportedLocation(location) {
				return validation.NewError("pagesync.sync.manifest_url_unsupported", "manifest url must be http(s), file:// or a local path")
			}
			return nil
		})),
	)
}
