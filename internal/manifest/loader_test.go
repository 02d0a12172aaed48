package manifest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestFetcherReadsHTTPAndFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "pagesync-test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		switch r.URL.Path {
		case "/doc.md":
			_, _ = w.Write([]byte("# Doc"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "local.md"), []byte("# Local"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	fetcher := NewFetcher(WithUserAgent("pagesync-test"), WithBaseDir(dir))
	ctx := context.Background()

	data, err := fetcher.Fetch(ctx, server.URL+"/doc.md")
	if err != nil || string(data) != "# Doc" {
		t.Fatalf("http fetch: %q, %v", data, err)
	}

	data, err = fetcher.Fetch(ctx, "local.md")
	if err != nil || string(data) != "# Local" {
		t.Fatalf("relative fetch: %q, %v", data, err)
	}

	data, err = fetcher.Fetch(ctx, "file://"+filepath.ToSlash(filepath.Join(dir, "local.md")))
	if err != nil || string(data) != "# Local" {
		t.Fatalf("file url fetch: %q, %v", data, err)
	}

	_, err = fetcher.Fetch(ctx, server.URL+"/missing.md")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 FetchError, got %v", err)
	}

	if _, err := fetcher.Fetch(ctx, "ftp://example.org/a.md"); !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError for unsupported scheme, got %v", err)
	}
}

func TestFetcherHonoursTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(slow.Close)

	fetcher := NewFetcher(WithTimeout(20 * time.Millisecond))
	if _, err := fetcher.Fetch(context.Background(), slow.URL); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestFetcherRejectsOversizedSources(t *testing.T) {
	body := "# Title\n0123456789abcdefghi"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	path := filepath.Join(dir, "big.md")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, location := range []string{path, server.URL + "/big.md"} {
		data, err := NewFetcher(WithMaxBytes(16)).Fetch(context.Background(), location)
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) || data != nil {
			t.Fatalf("%s: expected FetchError and no data, got %q, %v", location, data, err)
		}
		if !strings.Contains(err.Error(), "exceeds 16 bytes") {
			t.Fatalf("%s: unexpected error %v", location, err)
		}
	}

	data, err := NewFetcher(WithMaxBytes(int64(len(body)))).Fetch(context.Background(), path)
	if err != nil || string(data) != body {
		t.Fatalf("expected a source at the limit to be read whole, got %q, %v", data, err)
	}
}

type stubFetcher struct {
	data []byte
	err  error
}

func (s stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	return s.data, s.err
}

func TestLoaderWrapsFailures(t *testing.T) {
	loader := NewLoader(stubFetcher{err: &FetchError{Location: "https://example.org/m.json", StatusCode: 500}})
	_, err := loader.Load(context.Background(), "https://example.org/m.json")
	if !goerrors.IsCategory(err, goerrors.CategoryExternal) {
		t.Fatalf("expected external category, got %v", err)
	}
	var richErr *goerrors.Error
	if !errors.As(err, &richErr) || richErr.TextCode != TextCodeManifestFetch {
		t.Fatalf("expected %s, got %v", TextCodeManifestFetch, err)
	}
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.StatusCode != 500 {
		t.Fatalf("expected FetchError in chain, got %v", err)
	}

	loader = NewLoader(stubFetcher{data: []byte("{not json")})
	_, err = loader.Load(context.Background(), "m.json")
	if !goerrors.IsCategory(err, goerrors.CategoryBadInput) {
		t.Fatalf("expected bad input category, got %v", err)
	}
}

func TestLoaderReturnsEntries(t *testing.T) {
	loader := NewLoader(stubFetcher{data: []byte(`[{"slug":"a","source":"a.md"}]`)})
	entries, err := loader.Load(context.Background(), "m.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 1 || entries[0].Source != "a.md" {
		t.Fatalf("unexpected entries %#v", entries)
	}
}
