package fetch

import (
	"context"
	"errors"
	"io"
	"strings"

	"digests-builder/core/domain"
	"digests-builder/core/interfaces"
)

// mockHTTPClient is a mock implementation of the HTTPClient interface
type mockHTTPClient struct {
	getFunc func(ctx context.Context, url string, headers map[string]string) (interfaces.Response, error)
}

func (m *mockHTTPClient) Get(ctx context.Context, url string, headers map[string]string) (interfaces.Response, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, url, headers)
	}
	return nil, errors.New("unexpected request")
}

// mockResponse is a mock implementation of the Response interface
type mockResponse struct {
	statusCode int
	body       string
	headers    map[string]string
	finalURL   string
	permanent  bool
}

func (m *mockResponse) StatusCode() int {
	return m.statusCode
}

func (m *mockResponse) Body() io.ReadCloser {
	return io.NopCloser(strings.NewReader(m.body))
}

func (m *mockResponse) Header(key string) string {
	if m.headers != nil {
		return m.headers[key]
	}
	return ""
}

func (m *mockResponse) FinalURL() string {
	return m.finalURL
}

func (m *mockResponse) PermanentRedirect() bool {
	return m.permanent
}

// mockParser is a mock implementation of the FeedParser interface
type mockParser struct {
	parseFunc func(body []byte) (*interfaces.ParsedFeed, error)
}

func (m *mockParser) Parse(body []byte) (*interfaces.ParsedFeed, error) {
	if m.parseFunc != nil {
		return m.parseFunc(body)
	}
	return &interfaces.ParsedFeed{
		Title: "Parsed",
		Entries: []domain.RawEntry{
			{ID: "1", Title: "One", Link: "https://example.com/1"},
		},
	}, nil
}
