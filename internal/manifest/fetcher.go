package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultMaxBytes     = 16 << 20
	defaultUserAgent    = "go-pagesync"
)

// Fetcher reads manifests and Markdown sources from http(s) URLs, file://
// URLs or plain filesystem paths.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	baseDir   string
}

// FetcherOption customises a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the HTTP client used for remote locations.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.client = &http.Client{Timeout: timeout}
		}
	}
}

// WithUserAgent overrides the User-Agent header sent with remote fetches.
func WithUserAgent(agent string) FetcherOption {
	return func(f *Fetcher) {
		if strings.TrimSpace(agent) != "" {
			f.userAgent = agent
		}
	}
}

// WithBaseDir resolves relative filesystem paths against dir.
func WithBaseDir(dir string) FetcherOption {
	return func(f *Fetcher) {
		f.baseDir = dir
	}
}

// WithMaxBytes caps the number of bytes read from a single location. Larger
// documents fail with a FetchError.
func WithMaxBytes(limit int64) FetcherOption {
	return func(f *Fetcher) {
		if limit > 0 {
			f.maxBytes = limit
		}
	}
}

// NewFetcher constructs a Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: defaultFetchTimeout},
		userAgent: defaultUserAgent,
		maxBytes:  defaultMaxBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Fetch returns the raw bytes stored at location. Failures are reported as
// *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, &FetchError{Location: location, Err: fmt.Errorf("empty location")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Location: location, Err: err}
	}

	parsed, err := url.Parse(location)
	if err == nil {
		switch strings.ToLower(parsed.Scheme) {
		case "http", "https":
			return f.fetchHTTP(ctx, location)
		case "file":
			return f.readFile(location, parsed.Path)
		}
	}
	if !isLocalPath(location) {
		return nil, &FetchError{Location: location, Err: fmt.Errorf("unsupported location scheme")}
	}
	return f.readFile(location, location)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &FetchError{Location: location, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Location: location, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Location: location, StatusCode: resp.StatusCode}
	}

	return f.readLimited(location, resp.Body)
}

func (f *Fetcher) readFile(location, path string) ([]byte, error) {
	if !filepath.IsAbs(path) && f.baseDir != "" {
		path = filepath.Join(f.baseDir, path)
	}
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, &FetchError{Location: location, Err: err}
	}
	defer file.Close()

	return f.readLimited(location, file)
}

// readLimited reads r fully and fails when it holds more than maxBytes.
func (f *Fetcher) readLimited(location string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{Location: location, Err: err}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &FetchError{Location: location, Err: fmt.Errorf("source exceeds %d bytes", f.maxBytes)}
	}
	return data, nil
}

// isLocalPath reports whether location has no URL scheme, or only a Windows
// drive letter.
func isLocalPath(location string) bool {
	idx := strings.Index(location, "://")
	if idx < 0 {
		return true
	}
	return idx == 1
}

// SupportedLocation reports whether Fetch can read location.
func SupportedLocation(location string) bool {
	location = strings.TrimSpace(location)
	if location == "" {
		return false
	}
	if parsed, err := url.Parse(location); err == nil {
		switch strings.ToLower(parsed.Scheme) {
		case "http", "https":
			return parsed.Host != ""
		case "file":
			return parsed.Path != ""
		}
	}
	return isLocalPath(location)
}
