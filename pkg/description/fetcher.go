package description

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Fetch defaults.
const (
	// DefaultTimeout bounds one description request.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxSize caps the description document size.
	DefaultMaxSize = 1 << 20
)

// Fetch errors.
var (
	ErrStatus   = errors.New("unexpected HTTP status")
	ErrTooLarge = errors.New("description too large")
)

// Fetcher retrieves the description document at a location URL.
type Fetcher interface {
	Fetch(ctx context.Context, location *url.URL) (string, error)
}

// HTTPFetcher fetches descriptions over HTTP.
type HTTPFetcher struct {
	Client  *http.Client
	MaxSize int64
}

// NewHTTPFetcher creates a fetcher with a client bounded by timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPFetcher{
		Client:  &http.Client{Timeout: timeout},
		MaxSize: DefaultMaxSize,
	}
}

// Fetch performs a GET on location and returns the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, location *url.URL) (string, error) {
	if location == nil {
		return "", fmt.Errorf("fetch description: nil location")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location.String(), nil)
	if err != nil {
		return "", fmt.Errorf("fetch description: %w", err)
	}

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch description %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch description %s: %w: %d", location, ErrStatus, resp.StatusCode)
	}

	maxSize := f.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return "", fmt.Errorf("read description %s: %w", location, err)
	}
	if int64(len(body)) > maxSize {
		return "", fmt.Errorf("fetch description %s: %w", location, ErrTooLarge)
	}
	return string(body), nil
}
