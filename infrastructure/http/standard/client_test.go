package standard

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewStandardHTTPClient(t *testing.T) {
	timeout := 10 * time.Second
	client := NewStandardHTTPClient(timeout, 0)

	if client.client.Timeout != timeout {
		t.Errorf("Client timeout = %v, want %v", client.client.Timeout, timeout)
	}
	if client.limiter != nil {
		t.Error("zero host interval should disable pacing")
	}
}

func TestStandardHTTPClient_Get_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET request, got %s", r.Method)
		}
		w.Header().Set("ETag", `"v1"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test response"))
	}))
	defer server.Close()

	resp, err := NewStandardHTTPClient(10*time.Second, 0).Get(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	defer resp.Body().Close()

	if resp.StatusCode() != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode(), http.StatusOK)
	}
	if resp.Header("etag") != `"v1"` {
		t.Errorf("Header(etag) = %q", resp.Header("etag"))
	}
	body, _ := io.ReadAll(resp.Body())
	if string(body) != "test response" {
		t.Errorf("Body = %s, want 'test response'", string(body))
	}
	if resp.FinalURL() != server.URL {
		t.Errorf("FinalURL = %s, want %s", resp.FinalURL(), server.URL)
	}
	if resp.PermanentRedirect() {
		t.Error("no redirect was followed")
	}
}

func TestStandardHTTPClient_Get_SendsHeaders(t *testing.T) {
	var gotUA, gotINM string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotINM = r.Header.Get("If-None-Match")
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	resp, err := NewStandardHTTPClient(10*time.Second, 0).Get(context.Background(), server.URL,
		map[string]string{"If-None-Match": `"v1"`})
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	resp.Body().Close()

	if gotUA != userAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, userAgent)
	}
	if gotINM != `"v1"` {
		t.Errorf("If-None-Match = %q", gotINM)
	}
	if resp.StatusCode() != http.StatusNotModified {
		t.Errorf("StatusCode = %d, want 304", resp.StatusCode())
	}
}

func TestStandardHTTPClient_Get_Redirects(t *testing.T) {
	tests := []struct {
		name      string
		codes     []int
		permanent bool
	}{
		{"single 301", []int{http.StatusMovedPermanently}, true},
		{"301 then 308", []int{http.StatusMovedPermanently, http.StatusPermanentRedirect}, true},
		{"temporary 302", []int{http.StatusFound}, false},
		{"301 then 307", []int{http.StatusMovedPermanently, http.StatusTemporaryRedirect}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			server := httptest.NewServer(mux)
			defer server.Close()

			for i, code := range tt.codes {
				code := code
				next := "/hop" + string(rune('1'+i))
				if i == len(tt.codes)-1 {
					next = "/final"
				}
				path := "/start"
				if i > 0 {
					path = "/hop" + string(rune('0'+i))
				}
				mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
					http.Redirect(w, r, next, code)
				})
			}
			mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("ok"))
			})

			resp, err := NewStandardHTTPClient(10*time.Second, 0).Get(context.Background(), server.URL+"/start", nil)
			if err != nil {
				t.Fatalf("Get returned error: %v", err)
			}
			resp.Body().Close()

			if resp.FinalURL() != server.URL+"/final" {
				t.Errorf("FinalURL = %s", resp.FinalURL())
			}
			if resp.PermanentRedirect() != tt.permanent {
				t.Errorf("PermanentRedirect = %v, want %v", resp.PermanentRedirect(), tt.permanent)
			}
		})
	}
}

func TestStandardHTTPClient_Get_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := NewStandardHTTPClient(10*time.Second, 0).Get(ctx, server.URL, nil); err == nil {
		t.Error("Get should fail when the context expires")
	}
}

func TestStandardHTTPClient_Get_InvalidURL(t *testing.T) {
	if _, err := NewStandardHTTPClient(time.Second, 0).Get(context.Background(), "://bad", nil); err == nil {
		t.Error("Get should return error for invalid URL")
	}
}

func TestStandardHTTPClient_Get_Retry503(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := NewStandardHTTPClient(10*time.Second, 0).Get(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	resp.Body().Close()

	if resp.StatusCode() != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode())
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestStandardHTTPClient_Get_MaxRetriesReturnsLastResponse(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	resp, err := NewStandardHTTPClient(10*time.Second, 0).Get(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	defer resp.Body().Close()

	if resp.StatusCode() != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode())
	}
	body, _ := io.ReadAll(resp.Body())
	if string(body) != "boom" {
		t.Errorf("last response body should stay readable, got %q", body)
	}
	if atomic.LoadInt32(&attempts) != maxRetries {
		t.Errorf("attempts = %d, want %d", attempts, maxRetries)
	}
}

func TestStandardHTTPClient_Get_NoRetryOn4xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	resp, err := NewStandardHTTPClient(10*time.Second, 0).Get(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	resp.Body().Close()

	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestStandardHTTPClient_HostPacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewStandardHTTPClient(10*time.Second, 100*time.Millisecond)
	start := time.Now()
	for i := 0; i < 3; i++ {
		resp, err := client.Get(context.Background(), server.URL, nil)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body().Close()
	}

	if elapsed := time.Since(start); elapsed < 180*time.Millisecond {
		t.Errorf("three paced requests took %v, want at least ~200ms", elapsed)
	}
}

func TestHostRateLimiter_MissingHost(t *testing.T) {
	if err := NewHostRateLimiter(time.Second).WaitForHost(context.Background(), "/relative"); err == nil {
		t.Error("WaitForHost should reject URLs without a host")
	}
}
