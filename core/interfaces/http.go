package interfaces

import (
	"context"
	"io"
)

// HTTPClient defines the interface for making HTTP requests.
// This abstraction allows for easy mocking in tests and switching between
// different HTTP client implementations.
type HTTPClient interface {
	// Get performs an HTTP GET request to the specified URL.
	// headers are added to the request, which is how conditional
	// requests (If-None-Match, If-Modified-Since) are made.
	// Redirects are followed; the Response reports where they led.
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

// Response defines the interface for HTTP responses.
type Response interface {
	// StatusCode returns the HTTP status code of the final response.
	StatusCode() int

	// Body returns the response body as an io.ReadCloser.
	// The caller is responsible for closing the body when done.
	Body() io.ReadCloser

	// Header returns the value of the specified header.
	// Returns an empty string if the header is not present.
	// Header names are case-insensitive.
	Header(key string) string

	// FinalURL returns the URL that produced this response after redirects.
	FinalURL() string

	// PermanentRedirect reports whether at least one redirect was followed
	// and every hop was permanent (301 or 308).
	PermanentRedirect() bool
}
