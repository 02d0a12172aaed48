package wordpress

import (
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeTransport = "WORDPRESS_TRANSPORT_FAILED"
	textCodeTimeout   = "WORDPRESS_TIMEOUT"
	textCodeResponse  = "WORDPRESS_RESPONSE_ERROR"
	textCodeDecode    = "WORDPRESS_DECODE_FAILED"
	textCodeSlug      = "PUBLISH_SLUG_REQUIRED"
)

const maxErrorBody = 2048

var (
	// ErrSlugRequired is returned when a publish request carries no slug.
	ErrSlugRequired = goerrors.New("wordpress publisher: slug is required", goerrors.CategoryValidation).
			WithTextCode(textCodeSlug)
	// ErrClientRequired is returned when a publisher is built without a page client.
	ErrClientRequired = errors.New("wordpress publisher: page client is required")
	// ErrConverterRequired is returned when a publisher is built without a converter.
	ErrConverterRequired = errors.New("wordpress publisher: markdown converter is required")
)

// TransportError reports a request that never produced an HTTP response.
type TransportError struct {
	Method   string
	Endpoint string
	Timeout  bool
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("wordpress %s %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIResponseError reports a response with a status code of 400 or above.
// Code and Message are taken from the WordPress error envelope when present.
type APIResponseError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
	Code       string
	Message    string
}

func (e *APIResponseError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("wordpress %s %s: status %d (%s: %s)", e.Method, e.Endpoint, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("wordpress %s %s: status %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
}

// PublishError aborts a single publish. It carries the endpoint that failed
// and, for API errors, the response status and body.
type PublishError struct {
	Slug       string
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %q via %s: %v", e.Slug, e.Endpoint, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

func newPublishError(slug string, err error) *PublishError {
	pubErr := &PublishError{Slug: slug, Err: err}

	var apiErr *APIResponseError
	var transportErr *TransportError
	switch {
	case errors.As(err, &apiErr):
		pubErr.Endpoint = apiErr.Endpoint
		pubErr.StatusCode = apiErr.StatusCode
		pubErr.Body = apiErr.Body
	case errors.As(err, &transportErr):
		pubErr.Endpoint = transportErr.Endpoint
	}
	return pubErr
}

func wrapTransport(method, endpoint string, err error, timeout bool) error {
	code := textCodeTransport
	if timeout {
		code = textCodeTimeout
	}
	return goerrors.WrapRetryable(&TransportError{
		Method:   method,
		Endpoint: endpoint,
		Timeout:  timeout,
		Err:      err,
	}, goerrors.CategoryExternal, "wordpress request failed").
		WithTextCode(code).
		WithMetadata(map[string]any{"endpoint": endpoint, "method": method})
}

func wrapResponse(apiErr *APIResponseError) error {
	return goerrors.Wrap(apiErr, goerrors.CategoryExternal, "wordpress responded with an error").
		WithCode(apiErr.StatusCode).
		WithTextCode(textCodeResponse).
		WithMetadata(map[string]any{"endpoint": apiErr.Endpoint, "method": apiErr.Method})
}

func wrapDecode(method, endpoint string, err error) error {
	return goerrors.Wrap(fmt.Errorf("wordpress %s %s: decode response: %w", method, endpoint, err),
		goerrors.CategoryExternal, "wordpress response could not be decoded").
		WithTextCode(textCodeDecode)
}

func truncateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		return text[:maxErrorBody] + "..."
	}
	return text
}
