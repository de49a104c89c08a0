package whttp

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	UserAgent      = "Mozilla/5.0 (X11; Linux x86_64; rv:83.0) Gecko/20100101 Firefox/83.0"
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
	maxBodySize    = 8 << 20
)

type WHTTPHeader struct {
	Name  string
	Value string
}

type Options struct {
	Timeout time.Duration
	// Retries is the number of extra attempts after a failed request.
	// Negative disables retries.
	Retries int
	Headers []WHTTPHeader
	// Logger receives retry attempts. Nil discards them.
	Logger retryablehttp.LeveledLogger
}

type WHTTPRes struct {
	StatusCode int
	Body       []byte
}

// Client fetches pages with retries and a fixed browser-like header set.
type Client struct {
	rc      *retryablehttp.Client
	headers []WHTTPHeader
}

func New(opts Options) *Client {
	rc := retryablehttp.NewClient()
	if opts.Logger != nil {
		rc.Logger = opts.Logger
	} else {
		rc.Logger = log.New(io.Discard, "", 0)
	}

	switch {
	case opts.Retries < 0:
		rc.RetryMax = 0
	case opts.Retries == 0:
		rc.RetryMax = defaultRetries
	default:
		rc.RetryMax = opts.Retries
	}
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rc.HTTPClient.Timeout = timeout

	return &Client{rc: rc, headers: opts.Headers}
}

// Get fetches url and returns its body. Any non-2xx status is an error.
func (c *Client) Get(ctx context.Context, url string) (*WHTTPRes, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	// Set common headers
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Cache-Control", "no-transform")
	req.Header.Set("Accept-Language", "en")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	for _, h := range c.headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := c.rc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}

	return &WHTTPRes{StatusCode: resp.StatusCode, Body: body}, nil
}
