// ABOUTME: Standard HTTP client implementation with retry logic and timeout support
// ABOUTME: Records redirect hops and paces requests per host for polite feed fetching

package standard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"digests-builder/core/interfaces"
)

const (
	maxRetries   = 3
	maxRedirects = 10
	userAgent    = "DigestsBuilder/1.0 (+https://github.com/BumpyClock/digests-builder)"
)

// StandardHTTPClient implements the HTTPClient interface using standard library
type StandardHTTPClient struct {
	client  *http.Client
	limiter *HostRateLimiter
}

// NewStandardHTTPClient creates a new HTTP client with the specified timeout.
// A positive hostInterval spaces requests to the same host at least that far apart.
func NewStandardHTTPClient(timeout, hostInterval time.Duration) *StandardHTTPClient {
	c := &StandardHTTPClient{
		client: &http.Client{
			Timeout:       timeout,
			CheckRedirect: checkRedirect,
		},
	}
	if hostInterval > 0 {
		c.limiter = NewHostRateLimiter(hostInterval)
	}
	return c
}

type traceKey struct{}

// redirectTrace collects the status codes of followed redirects
type redirectTrace struct {
	hops []int
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if trace, ok := req.Context().Value(traceKey{}).(*redirectTrace); ok && req.Response != nil {
		trace.hops = append(trace.hops, req.Response.StatusCode)
	}
	return nil
}

// Get performs an HTTP GET request, retrying server errors with backoff
func (c *StandardHTTPClient) Get(ctx context.Context, url string, headers map[string]string) (interfaces.Response, error) {
	var resp *http.Response
	var trace *redirectTrace
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 100ms, 200ms
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if c.limiter != nil {
			if err := c.limiter.WaitForHost(ctx, url); err != nil {
				return nil, err
			}
		}

		trace = &redirectTrace{}
		req, err := http.NewRequestWithContext(context.WithValue(ctx, traceKey{}, trace), http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err = c.client.Do(req)
		if err != nil {
			lastErr = err
			resp = nil
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		// Don't retry on success, redirects or 4xx errors; the last
		// server error is handed to the caller as is
		if resp.StatusCode < 500 || attempt == maxRetries-1 {
			break
		}

		lastErr = fmt.Errorf("server returned %d", resp.StatusCode)
		resp.Body.Close()
		resp = nil
	}

	if resp == nil {
		if lastErr == nil {
			lastErr = errors.New("no response")
		}
		return nil, lastErr
	}

	return &httpResponse{
		statusCode: resp.StatusCode,
		body:       resp.Body,
		headers:    resp.Header,
		finalURL:   resp.Request.URL.String(),
		hops:       trace.hops,
	}, nil
}

// httpResponse implements the Response interface
type httpResponse struct {
	statusCode int
	body       io.ReadCloser
	headers    http.Header
	finalURL   string
	hops       []int
}

// StatusCode returns the HTTP status code
func (r *httpResponse) StatusCode() int {
	return r.statusCode
}

// Body returns the response body
func (r *httpResponse) Body() io.ReadCloser {
	return r.body
}

// Header returns the value of the specified header
func (r *httpResponse) Header(key string) string {
	return r.headers.Get(key)
}

// FinalURL returns the URL that produced this response
func (r *httpResponse) FinalURL() string {
	return r.finalURL
}

// PermanentRedirect reports whether every followed redirect was a 301 or 308
func (r *httpResponse) PermanentRedirect() bool {
	if len(r.hops) == 0 {
		return false
	}
	for _, code := range r.hops {
		if code != http.StatusMovedPermanently && code != http.StatusPermanentRedirect {
			return false
		}
	}
	return true
}
