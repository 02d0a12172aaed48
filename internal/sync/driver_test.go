package sync

import (
	"context"
	"errors"
	"slices"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-pagesync/internal/fingerprint"
	"github.com/goliatone/go-pagesync/internal/manifest"
	"github.com/goliatone/go-pagesync/internal/metrics"
	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

type fixture struct {
	manifest  *stubManifest
	fetcher   *stubFetcher
	publisher *stubPublisher
	store     *memoryStore
	metrics   *metrics.Metrics
}

func newFixture(entries []interfaces.ManifestEntry, docs map[string]string) *fixture {
	return &fixture{
		manifest:  &stubManifest{entries: entries},
		fetcher:   newStubFetcher(docs),
		publisher: newStubPublisher(),
		store:     newMemoryStore(),
		metrics:   metrics.New(),
	}
}

func (f *fixture) driver(t *testing.T, opts Options) *Driver {
	t.Helper()
	if opts.ManifestURL == "" {
		opts.ManifestURL = "https://example.org/manifest.json"
	}
	driver, err := NewDriver(Dependencies{
		Manifest:  f.manifest,
		Fetcher:   f.fetcher,
		Publisher: f.publisher,
		Store:     f.store,
		Metrics:   f.metrics,
	}, opts)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	driver.runID = func() string { return "run-1" }
	return driver
}

func handbookEntries() []interfaces.ManifestEntry {
	return []interfaces.ManifestEntry{
		{Key: "0", Slug: "handbook", Source: "https://example.org/handbook.md"},
		{Key: "1", Slug: "getting-started", Source: "https://example.org/start.md", Parent: "handbook", Order: 1},
		{Key: "2", Slug: "faq", Source: "https://example.org/faq.md", Parent: "handbook", Order: 2},
	}
}

func handbookDocs() map[string]string {
	return map[string]string{
		"https://example.org/handbook.md": "# Handbook\n\nWelcome.",
		"https://example.org/start.md":    "# Getting Started\n\nStep one.",
		"https://example.org/faq.md":      "# FAQ\n\nQuestions.",
	}
}

func statesOf(result *Result) map[string]State {
	out := map[string]State{}
	for _, entry := range result.Entries {
		out[entry.Slug] = entry.State
	}
	return out
}

func TestNewDriverRequiresDependencies(t *testing.T) {
	f := newFixture(nil, nil)
	full := Dependencies{Manifest: f.manifest, Fetcher: f.fetcher, Publisher: f.publisher, Store: f.store}
	opts := Options{ManifestURL: "m.json"}

	cases := []struct {
		mutate func(*Dependencies, *Options)
		want   error
	}{
		{func(d *Dependencies, _ *Options) { d.Manifest = nil }, ErrManifestLoaderRequired},
		{func(d *Dependencies, _ *Options) { d.Fetcher = nil }, ErrFetcherRequired},
		{func(d *Dependencies, _ *Options) { d.Publisher = nil }, ErrPublisherRequired},
		{func(d *Dependencies, _ *Options) { d.Store = nil }, ErrStoreRequired},
		{func(_ *Dependencies, o *Options) { o.ManifestURL = " " }, ErrManifestURLRequired},
	}
	for _, tc := range cases {
		deps, o := full, opts
		tc.mutate(&deps, &o)
		if _, err := NewDriver(deps, o); !errors.Is(err, tc.want) {
			t.Fatalf("expected %v, got %v", tc.want, err)
		}
	}

	driver, err := NewDriver(full, opts)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	if driver.opts.FetchConcurrency != DefaultFetchConcurrency {
		t.Fatalf("expected default concurrency, got %d", driver.opts.FetchConcurrency)
	}
}

func TestRunPublishesEverythingOnFirstRun(t *testing.T) {
	f := newFixture(handbookEntries(), handbookDocs())
	result, err := f.driver(t, Options{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.RunID != "run-1" || result.Created != 3 || result.Failed != 0 {
		t.Fatalf("unexpected result %#v", result)
	}
	for slug, state := range statesOf(result) {
		if state != StateHashUpdated {
			t.Fatalf("expected %s to be hash_updated, got %s", slug, state)
		}
	}
	if f.store.flushes != 1 {
		t.Fatalf("expected a single flush, got %d", f.store.flushes)
	}
	want := fingerprint.Compute([]byte(handbookDocs()["https://example.org/faq.md"]))
	if f.store.persisted["https://example.org/faq.md"] != want {
		t.Fatal("expected fingerprint of faq to be persisted")
	}
	if f.publisher.parents["faq"] == 0 {
		t.Fatal("expected faq to resolve the handbook parent created earlier in the run")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(handbookEntries(), handbookDocs())
	driver := f.driver(t, Options{})
	if _, err := driver.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	published := len(f.publisher.calls)

	result, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(f.publisher.calls) != published {
		t.Fatalf("second run must not publish, got %d extra calls", len(f.publisher.calls)-published)
	}
	if result.Unchanged != 3 || result.Published() != 0 {
		t.Fatalf("unexpected second result %#v", result)
	}
}

func TestRunRepublishesOnlyChangedSources(t *testing.T) {
	f := newFixture(handbookEntries(), handbookDocs())
	driver := f.driver(t, Options{})
	if _, err := driver.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	f.publisher.calls = nil
	f.fetcher.docs["https://example.org/faq.md"] = "# FAQ\n\nMore questions."

	result, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := f.publisher.slugs(); !slices.Equal(got, []string{"faq"}) {
		t.Fatalf("expected only faq to be republished, got %v", got)
	}
	if result.Updated != 1 || result.Unchanged != 2 {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestRunPublishFailureLeavesFingerprintStale(t *testing.T) {
	docs := handbookDocs()
	f := newFixture(handbookEntries(), docs)
	faq := "https://example.org/faq.md"
	stale := fingerprint.Compute([]byte("# FAQ\n\nOld answers."))
	for source, doc := range docs {
		f.store.hashes[source] = fingerprint.Compute([]byte(doc))
	}
	f.store.hashes[faq] = stale
	f.store.persisted = map[string]string{faq: stale}
	f.publisher.fail["faq"] = errBoom
	driver := f.driver(t, Options{})

	result, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if statesOf(result)["faq"] != StatePublishFailed || result.Failed != 1 || result.Unchanged != 2 {
		t.Fatalf("expected only faq to fail, got %#v", result)
	}
	if got := f.store.persisted[faq]; got != stale {
		t.Fatalf("expected persisted fingerprint %s to survive, got %s", stale, got)
	}
	if got, _ := f.store.Get(faq); got != stale {
		t.Fatalf("expected in-memory fingerprint %s to survive, got %s", stale, got)
	}

	delete(f.publisher.fail, "faq")
	f.publisher.calls = nil
	if _, err := driver.Run(context.Background()); err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if got := f.publisher.slugs(); !slices.Equal(got, []string{"faq"}) {
		t.Fatalf("expected faq to be retried, got %v", got)
	}
	if got := f.store.persisted[faq]; got != fingerprint.Compute([]byte(docs[faq])) {
		t.Fatalf("expected fresh fingerprint after retry, got %s", got)
	}
}

func TestRunFetchFailureContinues(t *testing.T) {
	f := newFixture(handbookEntries(), handbookDocs())
	f.fetcher.fails["https://example.org/start.md"] = errBoom

	result, err := f.driver(t, Options{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	states := statesOf(result)
	if states["getting-started"] != StateFetchFailed {
		t.Fatalf("expected fetch_failed, got %s", states["getting-started"])
	}
	if states["faq"] != StateHashUpdated || states["handbook"] != StateHashUpdated {
		t.Fatalf("other entries must proceed, got %v", states)
	}
	for _, entry := range result.Entries {
		if entry.State == StateFetchFailed {
			if !goerrors.IsCategory(entry.Err, goerrors.CategoryExternal) {
				t.Fatalf("expected external category, got %v", entry.Err)
			}
			var richErr *goerrors.Error
			if !errors.As(entry.Err, &richErr) || richErr.TextCode != TextCodeEntryFetch {
				t.Fatalf("expected %s, got %v", TextCodeEntryFetch, entry.Err)
			}
		}
	}
}

func TestRunSkipsInvalidEntries(t *testing.T) {
	entries := append(handbookEntries(),
		interfaces.ManifestEntry{Key: "3", Slug: "", Source: "https://example.org/x.md"},
		interfaces.ManifestEntry{Key: "4", Slug: "faq", Source: "https://example.org/faq-copy.md"},
		interfaces.ManifestEntry{Key: "5", Slug: "broken", Source: "https://example.org/broken.md", DecodeErr: errBoom},
	)
	f := newFixture(entries, handbookDocs())

	result, err := f.driver(t, Options{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Skipped != 3 || result.Created != 3 {
		t.Fatalf("unexpected result %#v", result)
	}
	for _, entry := range result.Entries[:3] {
		if entry.State != StateInvalid || !goerrors.IsCategory(entry.Err, goerrors.CategoryValidation) {
			t.Fatalf("expected invalid report first, got %#v", entry)
		}
	}
	if f.fetcher.calls["https://example.org/x.md"] != 0 || f.fetcher.calls["https://example.org/broken.md"] != 0 {
		t.Fatal("invalid entries must not be fetched")
	}
}

func TestRunForceRepublishes(t *testing.T) {
	f := newFixture(handbookEntries(), handbookDocs())
	if _, err := f.driver(t, Options{}).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	f.publisher.calls = nil

	result, err := f.driver(t, Options{Force: true}).Run(context.Background())
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if len(f.publisher.calls) != 3 || result.Updated != 3 {
		t.Fatalf("expected every entry to be republished, got %#v", result)
	}
}

func TestRunPublishesParentsFirst(t *testing.T) {
	entries := []interfaces.ManifestEntry{
		{Key: "0", Slug: "faq", Source: "https://example.org/faq.md", Parent: "handbook"},
		{Key: "1", Slug: "orphan", Source: "https://example.org/start.md", Parent: "missing"},
		{Key: "2", Slug: "handbook", Source: "https://example.org/handbook.md"},
	}
	f := newFixture(entries, handbookDocs())

	if _, err := f.driver(t, Options{}).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := f.publisher.slugs(); !slices.Equal(got, []string{"handbook", "faq", "orphan"}) {
		t.Fatalf("unexpected publish order %v", got)
	}
	if f.publisher.parents["faq"] != f.publisher.pages["handbook"] {
		t.Fatal("expected faq to be attached to handbook")
	}
}

func TestRunFlushEachEntry(t *testing.T) {
	f := newFixture(handbookEntries(), handbookDocs())
	var persistedBeforeFaq int
	f.publisher.onCall = func(req interfaces.PublishRequest) {
		if req.Slug == "faq" {
			persistedBeforeFaq = len(f.store.persisted)
		}
	}

	if _, err := f.driver(t, Options{FlushEachEntry: true}).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if persistedBeforeFaq != 2 {
		t.Fatalf("expected earlier entries to be persisted before faq, got %d", persistedBeforeFaq)
	}
	if f.store.flushes != 4 {
		t.Fatalf("expected one flush per entry plus the final flush, got %d", f.store.flushes)
	}
}

func TestRunDryRunLeavesStoreUntouched(t *testing.T) {
	f := newFixture(handbookEntries(), handbookDocs())
	f.publisher.dryRun = true

	result, err := f.driver(t, Options{DryRun: true}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.DryRun || result.Created != 3 {
		t.Fatalf("unexpected dry run result %#v", result)
	}
	for _, entry := range result.Entries {
		if entry.State != StatePublished {
			t.Fatalf("expected published state in dry run, got %s", entry.State)
		}
	}
	if f.store.Len() != 0 || f.store.flushes != 0 {
		t.Fatal("dry run must not record fingerprints")
	}
}

func TestRunBoundsFetchConcurrency(t *testing.T) {
	entries := make([]interfaces.ManifestEntry, 0, 8)
	docs := map[string]string{}
	for _, slug := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		source := "https://example.org/" + slug + ".md"
		entries = append(entries, interfaces.ManifestEntry{Key: slug, Slug: slug, Source: source})
		docs[source] = "# " + slug
	}
	f := newFixture(entries, docs)
	f.fetcher.gate = make(chan struct{})
	close(f.fetcher.gate)

	result, err := f.driver(t, Options{FetchConcurrency: 2}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Created != 8 {
		t.Fatalf("expected 8 pages, got %#v", result)
	}
	if peak := f.fetcher.peak.Load(); peak < 1 || peak > 2 {
		t.Fatalf("expected at most 2 concurrent fetches, got %d", peak)
	}
}

func TestRunCancellationFlushesCommittedEntries(t *testing.T) {
	f := newFixture(handbookEntries(), handbookDocs())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.publisher.onCall = func(req interfaces.PublishRequest) {
		if req.Slug == "getting-started" {
			cancel()
		}
	}

	result, err := f.driver(t, Options{}).Run(ctx)
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if result == nil || len(result.Entries) != 2 {
		t.Fatalf("expected two processed entries, got %#v", result)
	}
	if len(f.store.persisted) != 2 {
		t.Fatalf("expected committed fingerprints to be flushed, got %v", f.store.persisted)
	}
}

func TestRunManifestFailureIsFatal(t *testing.T) {
	f := newFixture(nil, nil)
	f.manifest.err = errBoom

	result, err := f.driver(t, Options{}).Run(context.Background())
	if !errors.Is(err, errBoom) || result != nil {
		t.Fatalf("expected manifest error, got %v / %#v", err, result)
	}
	if f.store.flushes != 0 {
		t.Fatal("store must not be flushed when the manifest cannot load")
	}
}

func TestRunReportsFlushFailure(t *testing.T) {
	f := newFixture(handbookEntries(), handbookDocs())
	f.store.flushErr = errBoom

	result, err := f.driver(t, Options{}).Run(context.Background())
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected flush error, got %v", err)
	}
	if result == nil || result.Created != 3 {
		t.Fatalf("expected partial result, got %#v", result)
	}
}

func TestRunLegacyEntries(t *testing.T) {
	entries := []interfaces.ManifestEntry{{
		Key:       "0",
		Slug:      "legacy",
		Source:    "https://example.org/handbook.md",
		ContentID: 77,
		Endpoint:  "https://example.org/wp-json/wp/v2/posts",
	}}
	f := newFixture(entries, handbookDocs())

	if _, err := f.driver(t, Options{Collection: "pages"}).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	req := f.publisher.calls[0].req
	if req.ContentID != 77 || req.Collection != "posts" {
		t.Fatalf("unexpected legacy request %#v", req)
	}
}

func TestRunUsesRealManifestValidation(t *testing.T) {
	entries := []interfaces.ManifestEntry{{Key: "0", Slug: "ok", Source: "ftp://example.org/a.md"}}
	f := newFixture(entries, nil)
	result, err := f.driver(t, Options{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if statesOf(result)["ok"] != StateInvalid {
		t.Fatalf("expected unsupported source to be invalid, got %#v", result.Entries)
	}
	if manifest.ValidateEntry(entries[0]) == nil {
		t.Fatal("validation mismatch")
	}
}

func TestLegacyCollection(t *testing.T) {
	cases := []struct {
		endpoint string
		want     string
	}{
		{endpoint: "https://example.org/wp-json/wp/v2/posts", want: "posts"},
		{endpoint: "https://example.org/wp-json/wp/v2/pages/", want: "pages"},
		{endpoint: "https://example.org/wp-json/wp/v2/pages/12", want: ""},
		{endpoint: "", want: ""},
		{endpoint: "docs", want: "docs"},
	}
	for _, tc := range cases {
		if got := legacyCollection(tc.endpoint); got != tc.want {
			t.Errorf("legacyCollection(%q) = %q, want %q", tc.endpoint, got, tc.want)
		}
	}
}
