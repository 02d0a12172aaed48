package sync

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-pagesync/internal/fingerprint"
	"github.com/goliatone/go-pagesync/internal/logging"
	"github.com/goliatone/go-pagesync/internal/manifest"
	"github.com/goliatone/go-pagesync/internal/metrics"
	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

// DefaultFetchConcurrency bounds the number of sources fetched at once.
const DefaultFetchConcurrency = 4

// Options tune a run.
type Options struct {
	// ManifestURL locates the manifest document.
	ManifestURL string
	// Collection is the REST collection pages are published to.
	Collection string
	// Force republishes every entry regardless of stored fingerprints.
	Force bool
	// FlushEachEntry persists fingerprints after every successful publish.
	FlushEachEntry bool
	// FetchConcurrency bounds parallel source fetches.
	FetchConcurrency int
	// DryRun resolves and renders without writing pages or fingerprints.
	DryRun bool
}

// Dependencies are the collaborators a Driver needs.
type Dependencies struct {
	Manifest  interfaces.ManifestLoader
	Fetcher   interfaces.SourceFetcher
	Publisher interfaces.PagePublisher
	Store     interfaces.FingerprintStore
	Logger    interfaces.Logger
	Metrics   *metrics.Metrics
}

// Driver runs change-detection syncs.
type Driver struct {
	manifest  interfaces.ManifestLoader
	fetcher   interfaces.SourceFetcher
	publisher interfaces.PagePublisher
	store     interfaces.FingerprintStore
	logger    interfaces.Logger
	metrics   *metrics.Metrics
	opts      Options

	now   func() time.Time
	runID func() string
}

// NewDriver validates deps and returns a Driver.
func NewDriver(deps Dependencies, opts Options) (*Driver, error) {
	switch {
	case deps.Manifest == nil:
		return nil, ErrManifestLoaderRequired
	case deps.Fetcher == nil:
		return nil, ErrFetcherRequired
	case deps.Publisher == nil:
		return nil, ErrPublisherRequired
	case deps.Store == nil:
		return nil, ErrStoreRequired
	case strings.TrimSpace(opts.ManifestURL) == "":
		return nil, ErrManifestURLRequired
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = DefaultFetchConcurrency
	}
	return &Driver{
		manifest:  deps.Manifest,
		fetcher:   deps.Fetcher,
		publisher: deps.Publisher,
		store:     deps.Store,
		logger:    logging.Ensure(deps.Logger),
		metrics:   deps.Metrics,
		opts:      opts,
		now:       time.Now,
		runID:     uuid.NewString,
	}, nil
}

type fetched struct {
	data     []byte
	hash     string
	err      error
	duration time.Duration
}

// Run performs one sync. Per-entry failures are reported in the Result and
// never abort the run; manifest, cancellation and persistence failures are
// returned as errors, together with the partial Result when one exists.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	result := &Result{RunID: d.runID(), DryRun: d.opts.DryRun, Started: d.now()}
	ctx = logging.ContextWithFields(ctx, map[string]any{"run_id": result.RunID})
	logger := logging.WithFields(d.logger, map[string]any{"run_id": result.RunID})

	logger.Info("pagesync.sync.started",
		"manifest", d.opts.ManifestURL,
		"force", d.opts.Force,
		"dry_run", d.opts.DryRun,
		"fingerprints", d.store.Len(),
	)

	entries, err := d.manifest.Load(ctx, d.opts.ManifestURL)
	if err != nil {
		logger.Error("pagesync.sync.manifest_failed", "manifest", d.opts.ManifestURL, "error", err)
		d.finish(result, "manifest_failed")
		return nil, err
	}

	problems := manifest.ValidateEntries(entries)
	valid := make([]interfaces.ManifestEntry, 0, len(entries))
	for _, entry := range entries {
		if problem, bad := problems[entry.Key]; bad {
			logging.WithEntryContext(logger, entry.Slug, entry.Source, string(StateInvalid)).
				Warn("pagesync.sync.entry.invalid", "key", entry.Key, "error", problem)
			d.record(result, EntryReport{
				Key:    entry.Key,
				Slug:   entry.Slug,
				Source: entry.Source,
				State:  StateInvalid,
				Err:    problem,
			})
			continue
		}
		if suggested, canonical := manifest.CanonicalSlug(entry.Slug); !canonical {
			logging.WithEntryContext(logger, entry.Slug, entry.Source, "").
				Warn("pagesync.sync.entry.slug_not_canonical", "key", entry.Key, "suggested", suggested)
		}
		valid = append(valid, entry)
	}

	ordered := orderEntries(valid)
	sources := d.fetchAll(ctx, ordered)

	var runErr error
	for i, entry := range ordered {
		if err := ctx.Err(); err != nil {
			runErr = wrapCancelled(err)
			logger.Warn("pagesync.sync.cancelled", "remaining", len(ordered)-i)
			break
		}
		report, err := d.syncEntry(ctx, logger, entry, sources[i])
		d.record(result, report)
		if err != nil {
			runErr = err
			break
		}
	}

	if !d.opts.DryRun {
		if err := d.store.Flush(); err != nil {
			logger.Error("pagesync.sync.flush_failed", "error", err)
			runErr = errors.Join(runErr, wrapFlush(err))
		}
	}

	outcome := "success"
	switch {
	case runErr != nil:
		outcome = "error"
	case result.Failed > 0:
		outcome = "partial"
	}
	d.finish(result, outcome)

	logger.Info("pagesync.sync.completed",
		"created", result.Created,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration_ms", result.Duration().Milliseconds(),
	)
	return result, runErr
}

func (d *Driver) finish(result *Result, outcome string) {
	result.Finished = d.now()
	d.metrics.ObserveRun(outcome, result.Finished, result.Duration())
}

func (d *Driver) record(result *Result, report EntryReport) {
	result.record(report)
	d.metrics.ObserveEntry(string(report.State))
}

// fetchAll reads every source concurrently. The returned slice is aligned
// with entries.
func (d *Driver) fetchAll(ctx context.Context, entries []interfaces.ManifestEntry) []fetched {
	out := make([]fetched, len(entries))
	var g errgroup.Group
	g.SetLimit(d.opts.FetchConcurrency)
	for i, entry := range entries {
		g.Go(func() error {
			started := time.Now()
			data, err := d.fetcher.Fetch(ctx, entry.Source)
			elapsed := time.Since(started)
			d.metrics.ObserveFetch(elapsed)
			if err != nil {
				out[i] = fetched{err: wrapEntryFetch(entry.Source, err), duration: elapsed}
				return nil
			}
			out[i] = fetched{data: data, hash: fingerprint.Compute(data), duration: elapsed}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// syncEntry walks one entry through the state machine. A non-nil error is
// fatal for the run.
func (d *Driver) syncEntry(ctx context.Context, logger interfaces.Logger, entry interfaces.ManifestEntry, source fetched) (EntryReport, error) {
	report := EntryReport{
		Key:      entry.Key,
		Slug:     entry.Slug,
		Source:   entry.Source,
		Duration: source.duration,
	}
	entryLogger := func(state State) interfaces.Logger {
		return logging.WithEntryContext(logger, entry.Slug, entry.Source, string(state))
	}

	if source.err != nil {
		report.State = StateFetchFailed
		report.Err = source.err
		entryLogger(report.State).Warn("pagesync.sync.entry.fetch_failed", "error", source.err)
		return report, nil
	}
	report.State = StateFetched
	report.Hash = source.hash
	entryLogger(report.State).Trace("pagesync.sync.entry.fetched", "bytes", len(source.data), "hash", source.hash)

	if stored, ok := d.store.Get(entry.Source); ok && stored == source.hash && !d.opts.Force {
		report.State = StateUnchanged
		entryLogger(report.State).Debug("pagesync.sync.entry.unchanged")
		return report, nil
	}
	report.State = StateChanged
	entryLogger(report.State).Debug("pagesync.sync.entry.changed", "force", d.opts.Force)

	started := time.Now()
	published, err := d.publisher.Publish(ctx, d.publishRequest(entry, source.data))
	elapsed := time.Since(started)
	report.Duration += elapsed
	if err != nil {
		d.metrics.ObservePublish("failed", elapsed)
		report.State = StatePublishFailed
		report.Err = err
		entryLogger(report.State).Error("pagesync.sync.entry.publish_failed", "error", err)
		return report, nil
	}
	d.metrics.ObservePublish(string(published.Action), elapsed)

	report.State = StatePublished
	report.Action = published.Action
	report.PageID = published.ID
	report.Link = published.Link
	entryLogger(report.State).Info("pagesync.sync.entry.published",
		"action", string(published.Action),
		"page_id", published.ID,
		"link", published.Link,
	)

	if d.opts.DryRun {
		return report, nil
	}

	d.store.Set(entry.Source, source.hash)
	report.State = StateHashUpdated
	if d.opts.FlushEachEntry {
		if err := d.store.Flush(); err != nil {
			entryLogger(report.State).Error("pagesync.sync.flush_failed", "error", err)
			return report, wrapFlush(err)
		}
	}
	return report, nil
}

func (d *Driver) publishRequest(entry interfaces.ManifestEntry, data []byte) interfaces.PublishRequest {
	req := interfaces.PublishRequest{
		Collection: d.opts.Collection,
		Markdown:   string(data),
		Slug:       entry.Slug,
		ParentSlug: entry.Parent,
		Order:      entry.Order,
	}
	if entry.Legacy() {
		req.ContentID = entry.ContentID
		if collection := legacyCollection(entry.Endpoint); collection != "" {
			req.Collection = collection
		}
	}
	return req
}

// legacyCollection extracts the collection from a legacy endpoint such as
// https://example.org/wp-json/wp/v2/posts.
func legacyCollection(endpoint string) string {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return ""
	}
	path := strings.Trim(parsed.Path, "/")
	if idx := strings.LastIndex(path, "wp/v2/"); idx >= 0 {
		path = path[idx+len("wp/v2/"):]
	}
	if path == "" || strings.Contains(path, "/") {
		return ""
	}
	return path
}
