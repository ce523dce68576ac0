// Package fetch implements the Fetcher and ResourceFetcher interfaces.
// It performs rate-limited HTTP GET requests with sensible defaults for
// crawling blogs, and decodes data: URIs locally.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gaurav-prasanna/blogbook/core"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "BlogBook/1.0 (https://github.com/gaurav-prasanna/blogbook)"
	defaultMaxBytes  = 32 * 1024 * 1024
)

// Config configures an HTTPFetcher.
type Config struct {
	Timeout   time.Duration // HTTP timeout. Default: 30s.
	UserAgent string
	MaxBytes  int64 // Max response body size. Default: 32MB.
	// RateLimit caps requests per second. Zero means unlimited.
	RateLimit float64
	Burst     int
	Logger    *slog.Logger
	// Client overrides the HTTP client (tests).
	Client *http.Client
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = defaultMaxBytes
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// HTTPFetcher fetches web pages and resources via HTTP.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	config  Config
}

// New creates an HTTPFetcher.
func New(cfg Config) *HTTPFetcher {
	cfg.defaults()
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, cfg.Burst)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	return &HTTPFetcher{client: client, limiter: limiter, config: cfg}
}

// Fetch retrieves the HTML content of the given URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*core.FetchResult, error) {
	f.config.Logger.Info("downloading page", "url", url)
	body, resp, err := f.get(ctx, url, "text/html,application/xhtml+xml")
	if err != nil {
		return nil, err
	}
	return &core.FetchResult{
		URL:        url,
		StatusCode: resp.StatusCode,
		HTML:       string(body),
	}, nil
}

// FetchResource retrieves an image or other binary asset. data: URIs are
// decoded without network access.
func (f *HTTPFetcher) FetchResource(ctx context.Context, locator string) (*core.ResourceData, error) {
	if IsDataURI(locator) {
		return DecodeDataURI(locator)
	}

	f.config.Logger.Debug("downloading resource", "url", locator)
	body, resp, err := f.get(ctx, locator, "image/*,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	return &core.ResourceData{
		Content:   body,
		MediaType: mediaTypeOf(resp.Header.Get("Content-Type"), body),
	}, nil
}

// get performs a GET and returns the body. Bodies over MaxBytes are an
// error rather than truncated. All failures wrap core.ErrFetch.
func (f *HTTPFetcher) get(ctx context.Context, url, accept string) ([]byte, *http.Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("%w: waiting for rate limiter: %w", core.ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: creating request: %w", core.ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: fetching %s: %w", core.ErrFetch, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("%w: unexpected status %d for %s", core.ErrFetch, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading response body: %w", core.ErrFetch, err)
	}
	if int64(len(body)) > f.config.MaxBytes {
		return nil, nil, fmt.Errorf("%w: response from %s exceeds %d bytes", core.ErrFetch, url, f.config.MaxBytes)
	}
	return body, resp, nil
}
