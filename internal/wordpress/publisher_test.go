package wordpress

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-pagesync/internal/logging"
	"github.com/goliatone/go-pagesync/internal/logging/console"
	"github.com/goliatone/go-pagesync/internal/markdown"
	"github.com/goliatone/go-pagesync/pkg/interfaces"
	"github.com/goliatone/go-pagesync/pkg/testsupport"
)

type capturedEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      *sync.Mutex
	entries *[]capturedEntry
	fields  []any
}

func newCaptureLogger() *captureLogger {
	return &captureLogger{mu: &sync.Mutex{}, entries: &[]capturedEntry{}}
}

func (l *captureLogger) record(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, capturedEntry{level: level, msg: msg, args: append(append([]any{}, l.fields...), args...)})
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) interfaces.Logger { return l }

func (l *captureLogger) WithFields(fields map[string]any) interfaces.Logger {
	next := &captureLogger{mu: l.mu, entries: l.entries, fields: append([]any{}, l.fields...)}
	for k, v := range fields {
		next.fields = append(next.fields, k, v)
	}
	return next
}

func (l *captureLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range *l.entries {
		if entry.level == level && entry.msg == msg {
			return true
		}
	}
	return false
}

func newTestPublisher(t *testing.T, client interfaces.PageClient, opts ...PublisherOption) *Publisher {
	t.Helper()
	publisher, err := NewPublisher(client, markdown.NewConverter(interfaces.ParseOptions{}), opts...)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	return publisher
}

func TestNewPublisherRequiresDependencies(t *testing.T) {
	if _, err := NewPublisher(nil, markdown.NewConverter(interfaces.ParseOptions{})); !errors.Is(err, ErrClientRequired) {
		t.Fatalf("expected ErrClientRequired, got %v", err)
	}
	if _, err := NewPublisher(newStubPageClient(), nil); !errors.Is(err, ErrConverterRequired) {
		t.Fatalf("expected ErrConverterRequired, got %v", err)
	}
}

func TestPublishCreatesMissingPage(t *testing.T) {
	server := testsupport.NewWordPressServer(t, "editor", "app pass")
	parentID := server.Seed("pages", "handbook", 0)
	publisher := newTestPublisher(t, newTestClient(t, server))

	result, err := publisher.Publish(context.Background(), interfaces.PublishRequest{
		Markdown:   "# Getting Started\n\nWelcome aboard.",
		Slug:       "getting-started",
		ParentSlug: "handbook",
		Order:      3,
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.Action != interfaces.PublishActionCreated {
		t.Fatalf("expected created, got %s", result.Action)
	}
	if result.ParentID != parentID || result.Title != "Getting Started" {
		t.Fatalf("unexpected result %#v", result)
	}
	if !strings.HasSuffix(result.Link, "/getting-started/") {
		t.Fatalf("unexpected link %s", result.Link)
	}

	page, ok := server.PageBySlug("pages", "getting-started")
	if !ok {
		t.Fatal("expected page to be created")
	}
	if page.Parent != parentID || page.MenuOrder != 3 || page.Status != DefaultStatus {
		t.Fatalf("unexpected stored page %#v", page)
	}
	if page.Title != "Getting Started" || !strings.Contains(page.Content, "<p>Welcome aboard.</p>") {
		t.Fatalf("unexpected rendered page %#v", page)
	}
	if strings.Contains(page.Content, "<h1") {
		t.Fatalf("title heading should not be part of content: %s", page.Content)
	}

	writes := server.Writes()
	if len(writes) != 1 || writes[0].Path != "/wp-json/wp/v2/pages" {
		t.Fatalf("expected single create write, got %#v", writes)
	}
}

func TestPublishUpdatesExistingPage(t *testing.T) {
	server := testsupport.NewWordPressServer(t, "editor", "app pass")
	server.SeedWithID("pages", 42, "faq")
	publisher := newTestPublisher(t, newTestClient(t, server))

	result, err := publisher.Publish(context.Background(), interfaces.PublishRequest{
		Markdown: "# FAQ\n\nQuestions.",
		Slug:     "faq",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.Action != interfaces.PublishActionUpdated || result.ID != 42 {
		t.Fatalf("unexpected result %#v", result)
	}

	writes := server.Writes()
	if len(writes) != 1 || writes[0].Path != "/wp-json/wp/v2/pages/42" {
		t.Fatalf("expected update of id 42, got %#v", writes)
	}
	if _, hasStatus := writes[0].Body["status"]; hasStatus {
		t.Fatal("update must not change the page status")
	}
	if writes[0].Body["parent"] != float64(0) || writes[0].Body["menu_order"] != float64(0) {
		t.Fatalf("expected explicit parent and order, got %#v", writes[0].Body)
	}
}

func TestPublishUpdatesPageWithNonCanonicalSlug(t *testing.T) {
	server := testsupport.NewWordPressServer(t, "editor", "app pass")
	server.SeedWithID("pages", 101, "about_us")
	publisher := newTestPublisher(t, newTestClient(t, server))

	result, err := publisher.Publish(context.Background(), interfaces.PublishRequest{
		Markdown: "# About\n\nUs.",
		Slug:     "about_us",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.Action != interfaces.PublishActionUpdated || result.ID != 101 {
		t.Fatalf("expected update of page 101, got %#v", result)
	}
	writes := server.Writes()
	if len(writes) != 1 || writes[0].Path != "/wp-json/wp/v2/pages/101" {
		t.Fatalf("expected single update of id 101, got %#v", writes)
	}
	if writes[0].Body["slug"] != "about_us" {
		t.Fatalf("expected slug to be sent as written, got %#v", writes[0].Body["slug"])
	}
}

func TestPublishDraftRerunUpdatesSamePage(t *testing.T) {
	server := testsupport.NewWordPressServer(t, "editor", "app pass")
	client := newTestClient(t, server)

	first, err := newTestPublisher(t, client, WithStatus("draft")).Publish(context.Background(), interfaces.PublishRequest{
		Markdown: "# Roadmap\n\nFirst cut.",
		Slug:     "roadmap",
	})
	if err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	if first.Action != interfaces.PublishActionCreated {
		t.Fatalf("expected created, got %s", first.Action)
	}

	// a new publisher starts with an empty slug cache, like a new run
	second, err := newTestPublisher(t, client, WithStatus("draft")).Publish(context.Background(), interfaces.PublishRequest{
		Markdown: "# Roadmap\n\nSecond cut.",
		Slug:     "roadmap",
	})
	if err != nil {
		t.Fatalf("second Publish: %v", err)
	}
	if second.Action != interfaces.PublishActionUpdated || second.ID != first.ID {
		t.Fatalf("expected update of page %d, got %#v", first.ID, second)
	}
	page, _ := server.PageBySlug("pages", "roadmap")
	if page.Status != "draft" || !strings.Contains(page.Content, "Second cut.") {
		t.Fatalf("unexpected stored page %#v", page)
	}
	if writes := len(server.Writes()); writes != 2 {
		t.Fatalf("expected one create and one update, got %d writes", writes)
	}
}

func TestPublishLogsContextFields(t *testing.T) {
	server := testsupport.NewWordPressServer(t, "editor", "app pass")
	var buf bytes.Buffer
	provider := console.NewProvider(console.Options{Writer: &buf})
	publisher := newTestPublisher(t, newTestClient(t, server),
		WithPublisherLogger(provider.GetLogger("pagesync.publisher")))

	ctx := logging.ContextWithFields(context.Background(), map[string]any{"run_id": "run-7"})
	if _, err := publisher.Publish(ctx, interfaces.PublishRequest{Markdown: "# Intro", Slug: "intro"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !strings.Contains(buf.String(), "pagesync.publisher.published") || !strings.Contains(buf.String(), "run_id=run-7") {
		t.Fatalf("expected run_id on publisher entries, got %q", buf.String())
	}
}

func TestPublishDegradesMissingParentToRoot(t *testing.T) {
	server := testsupport.NewWordPressServer(t, "editor", "app pass")
	logger := newCaptureLogger()
	publisher := newTestPublisher(t, newTestClient(t, server), WithPublisherLogger(logger))

	result, err := publisher.Publish(context.Background(), interfaces.PublishRequest{
		Markdown:   "# Orphan",
		Slug:       "orphan",
		ParentSlug: "nowhere",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.ParentID != 0 {
		t.Fatalf("expected root parent, got %d", result.ParentID)
	}
	page, _ := server.PageBySlug("pages", "orphan")
	if page.Parent != 0 || page.Content != "" {
		t.Fatalf("unexpected stored page %#v", page)
	}
	if !logger.has("warn", "pagesync.publisher.parent_not_found") {
		t.Fatal("expected parent_not_found warning")
	}
}

func TestPublishParentLookupFailureDegrades(t *testing.T) {
	client := newStubPageClient()
	client.lookupErr = errors.New("boom")
	logger := newCaptureLogger()
	publisher := newTestPublisher(t, client, WithPublisherLogger(logger))

	_, err := publisher.Publish(context.Background(), interfaces.PublishRequest{
		Markdown:   "# Child",
		Slug:       "child",
		ParentSlug: "parent",
	})
	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("expected PublishError from slug lookup, got %v", err)
	}
	if !logger.has("warn", "pagesync.publisher.parent_lookup_failed") {
		t.Fatal("expected parent_lookup_failed warning")
	}
}

func TestPublishReportsFailedWrite(t *testing.T) {
	server := testsupport.NewWordPressServer(t, "editor", "app pass")
	server.FailWrites(1, `{"code":"internal_error","message":"db gone"}`)
	publisher := newTestPublisher(t, newTestClient(t, server))

	_, err := publisher.Publish(context.Background(), interfaces.PublishRequest{
		Markdown: "# Broken",
		Slug:     "broken",
	})
	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("expected PublishError, got %T: %v", err, err)
	}
	if pubErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", pubErr.StatusCode)
	}
	if !strings.HasSuffix(pubErr.Endpoint, "/wp-json/wp/v2/pages") {
		t.Fatalf("unexpected endpoint %s", pubErr.Endpoint)
	}
	if !strings.Contains(pubErr.Body, "db gone") {
		t.Fatalf("expected response body, got %q", pubErr.Body)
	}
	if !goerrors.IsCategory(err, goerrors.CategoryExternal) {
		t.Fatalf("expected external category in chain, got %v", err)
	}
	if publisher.Resolver("pages").Len() != 0 {
		t.Fatal("failed publish must not be remembered")
	}
}

func TestPublishRequiresSlug(t *testing.T) {
	publisher := newTestPublisher(t, newStubPageClient())
	_, err := publisher.Publish(context.Background(), interfaces.PublishRequest{Markdown: "# x", Slug: "  "})
	if !errors.Is(err, ErrSlugRequired) {
		t.Fatalf("expected ErrSlugRequired, got %v", err)
	}
}

func TestPublishRemembersCreatedPageForChildren(t *testing.T) {
	client := newStubPageClient()
	publisher := newTestPublisher(t, client)

	parent, err := publisher.Publish(context.Background(), interfaces.PublishRequest{Markdown: "# Parent", Slug: "parent"})
	if err != nil {
		t.Fatalf("Publish parent: %v", err)
	}
	lookups := len(client.lookups)

	child, err := publisher.Publish(context.Background(), interfaces.PublishRequest{
		Markdown:   "# Child",
		Slug:       "child",
		ParentSlug: "parent",
	})
	if err != nil {
		t.Fatalf("Publish child: %v", err)
	}
	if child.ParentID != parent.ID {
		t.Fatalf("expected parent %d, got %d", parent.ID, child.ParentID)
	}
	if len(client.lookups) != lookups+1 {
		t.Fatalf("expected parent to resolve from cache, lookups=%v", client.lookups)
	}
	if client.creates[1].Status != DefaultStatus {
		t.Fatalf("expected create status %s, got %s", DefaultStatus, client.creates[1].Status)
	}
}

func TestPublishWithCustomStatus(t *testing.T) {
	client := newStubPageClient()
	publisher := newTestPublisher(t, client, WithStatus("draft"))
	if _, err := publisher.Publish(context.Background(), interfaces.PublishRequest{Markdown: "# D", Slug: "d"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if client.creates[0].Status != "draft" {
		t.Fatalf("expected draft status, got %s", client.creates[0].Status)
	}
}

func TestPublishLegacyContentID(t *testing.T) {
	server := testsupport.NewWordPressServer(t, "editor", "app pass")
	server.SeedWithID("pages", 77, "legacy")
	publisher := newTestPublisher(t, newTestClient(t, server))

	result, err := publisher.Publish(context.Background(), interfaces.PublishRequest{
		Markdown:  "# Legacy Page\n\nOld content.",
		Slug:      "legacy",
		ContentID: 77,
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.ID != 77 || result.Action != interfaces.PublishActionUpdated {
		t.Fatalf("unexpected result %#v", result)
	}

	requests := server.Requests()
	if len(requests) != 1 || requests[0].Path != "/wp-json/wp/v2/pages/77" {
		t.Fatalf("expected direct update without lookup, got %#v", requests)
	}
	body := requests[0].Body
	if _, ok := body["parent"]; ok {
		t.Fatalf("legacy update must only carry title, content and slug: %#v", body)
	}
	if body["title"] != "Legacy Page" || body["slug"] != "legacy" {
		t.Fatalf("unexpected legacy body %#v", body)
	}
}

func TestPublishDryRunSkipsWrites(t *testing.T) {
	server := testsupport.NewWordPressServer(t, "editor", "app pass")
	server.SeedWithID("pages", 5, "existing")
	publisher := newTestPublisher(t, newTestClient(t, server), WithDryRun(true))

	for _, slug := range []string{"existing", "fresh"} {
		result, err := publisher.Publish(context.Background(), interfaces.PublishRequest{Markdown: "# T", Slug: slug})
		if err != nil {
			t.Fatalf("Publish %s: %v", slug, err)
		}
		if result.Action != interfaces.PublishActionDryRun {
			t.Fatalf("expected dry run action, got %s", result.Action)
		}
	}
	if writes := server.Writes(); len(writes) != 0 {
		t.Fatalf("dry run must not write, got %#v", writes)
	}
}
