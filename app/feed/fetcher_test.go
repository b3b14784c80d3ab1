package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetcherRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "lag-tracker-test" {
			t.Errorf("Expected user agent header, got %q", got)
		}
		w.Write([]byte("<rss/>"))
	}))
	defer server.Close()

	data, err := NewFetcher(server.Client(), "lag-tracker-test").Run(context.Background(), server.URL, time.Second)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if string(data) != "<rss/>" {
		t.Errorf("Unexpected body: %s", data)
	}
}

func TestFetcherHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewFetcher(server.Client(), "test").Run(context.Background(), server.URL, time.Second)
	if err == nil {
		t.Error("Expected error for non-200 response")
	}
}

func TestFetcherTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := NewFetcher(server.Client(), "test").Run(context.Background(), server.URL, 50*time.Millisecond)
	if err == nil {
		t.Error("Expected timeout error")
	}
}
