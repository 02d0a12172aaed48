package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/goliatone/go-pagesync/internal/logging"
	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

const (
	apiPrefix         = "wp-json/wp/v2/"
	defaultTimeout    = 30 * time.Second
	defaultUserAgent  = "go-pagesync"
	maxResponseBytes  = 8 << 20
	DefaultCollection = "pages"
)

// ClientConfig holds the credentials and transport settings for a Client.
type ClientConfig struct {
	// Domain is the site base URL, e.g. https://example.org. The REST prefix
	// wp-json/wp/v2/ is appended.
	Domain      string
	Username    string
	AppPassword string
	Timeout     time.Duration
	UserAgent   string
	HTTPClient  *http.Client
	Logger      interfaces.Logger
	// RequestsPerSecond throttles outgoing requests when positive.
	RequestsPerSecond float64
}

// Client talks to the WordPress REST API using HTTP Basic authentication
// with an application password. It holds the credentials for one run.
type Client struct {
	base      *url.URL
	username  string
	password  string
	userAgent string
	http      *http.Client
	logger    interfaces.Logger
	limiter   *rate.Limiter
}

var _ interfaces.PageClient = (*Client)(nil)

// NewClient validates cfg and returns a ready Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	domain := strings.TrimSpace(cfg.Domain)
	if domain == "" {
		return nil, errors.New("wordpress client: domain is required")
	}
	base, err := url.Parse(strings.TrimRight(domain, "/") + "/" + apiPrefix)
	if err != nil {
		return nil, fmt.Errorf("wordpress client: parse domain: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("wordpress client: unsupported scheme %q", base.Scheme)
	}
	if strings.TrimSpace(cfg.Username) == "" || cfg.AppPassword == "" {
		return nil, errors.New("wordpress client: username and application password are required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	client := &Client{
		base:      base,
		username:  strings.TrimSpace(cfg.Username),
		password:  cfg.AppPassword,
		userAgent: userAgent,
		http:      httpClient,
		logger:    logging.Ensure(cfg.Logger),
	}
	if cfg.RequestsPerSecond > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return client, nil
}

// BaseURL returns the REST API root the client targets.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// lookupStatuses widens slug lookups past the collection default of
// "publish" so drafts and private pages created earlier are found again.
const lookupStatuses = "publish,future,draft,pending,private"

// FindPageBySlug queries the collection for a page with the exact slug in any
// editable status, asking for a single result. When the API still returns
// several records the first one wins.
func (c *Client) FindPageBySlug(ctx context.Context, collection, slug string) (*interfaces.Page, bool, error) {
	query := url.Values{}
	query.Set("slug", slug)
	query.Set("per_page", "1")
	query.Set("status", lookupStatuses)

	var pages []wirePage
	if err := c.do(ctx, http.MethodGet, collectionPath(collection), query, nil, &pages); err != nil {
		return nil, false, err
	}
	if len(pages) == 0 {
		return nil, false, nil
	}
	page := pages[0].toPage()
	return &page, true, nil
}

// CreatePage posts payload to the collection endpoint.
func (c *Client) CreatePage(ctx context.Context, collection string, payload interfaces.PagePayload) (*interfaces.Page, error) {
	var out wirePage
	if err := c.do(ctx, http.MethodPost, collectionPath(collection), nil, payload, &out); err != nil {
		return nil, err
	}
	page := out.toPage()
	return &page, nil
}

// UpdatePage posts payload to the collection/{id} endpoint.
func (c *Client) UpdatePage(ctx context.Context, collection string, id int, payload interfaces.PagePayload) (*interfaces.Page, error) {
	var out wirePage
	endpoint := collectionPath(collection) + "/" + strconv.Itoa(id)
	if err := c.do(ctx, http.MethodPost, endpoint, nil, payload, &out); err != nil {
		return nil, err
	}
	page := out.toPage()
	return &page, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body any, out any) error {
	target := c.base.JoinPath(endpoint)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	location := target.String()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("wordpress %s %s: encode payload: %w", method, location, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, location, reader)
	if err != nil {
		return wrapTransport(method, location, err, false)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return wrapTransport(method, location, err, isTimeout(err))
		}
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapTransport(method, location, err, isTimeout(err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return wrapTransport(method, location, err, isTimeout(err))
	}

	c.logger.Debug("pagesync.wordpress.request",
		"method", method,
		"endpoint", location,
		"status", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIResponseError{
			Method:     method,
			Endpoint:   location,
			StatusCode: resp.StatusCode,
			Body:       truncateBody(payload),
		}
		var envelope struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(payload, &envelope) == nil {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Message
		}
		return wrapResponse(apiErr)
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return wrapDecode(method, location, err)
	}
	return nil
}

func collectionPath(collection string) string {
	collection = strings.Trim(strings.TrimSpace(collection), "/")
	if collection == "" {
		return DefaultCollection
	}
	return collection
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// wirePage is the REST representation; title arrives as an object with a
// rendered variant and, in edit context, a raw one.
type wirePage struct {
	ID        int    `json:"id"`
	Slug      string `json:"slug"`
	Link      string `json:"link"`
	Status    string `json:"status"`
	Parent    int    `json:"parent"`
	MenuOrder int    `json:"menu_order"`
	Title     struct {
		Raw      string `json:"raw"`
		Rendered string `json:"rendered"`
	} `json:"title"`
}

func (w wirePage) toPage() interfaces.Page {
	title := w.Title.Raw
	if title == "" {
		title = w.Title.Rendered
	}
	return interfaces.Page{
		ID:        w.ID,
		Slug:      w.Slug,
		Link:      w.Link,
		Status:    w.Status,
		Parent:    w.Parent,
		MenuOrder: w.MenuOrder,
		Title:     title,
	}
}
