package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/quantkb/finconcept/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastEndpointConfig() types.EndpointConfig {
	return types.EndpointConfig{
		RequestTimeoutSeconds: 5,
		MaxRetries:            2,
		MinIntervalMs:         1,
		MaxResults:            10,
	}
}

func TestGetJSON_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such endpoint", http.StatusNotFound)
	}))
	defer server.Close()

	api := newHTTPAPI("dbpedia", fastEndpointConfig(), testLogger())
	var out map[string]any
	err := api.getJSON(context.Background(), "search", server.URL, &out)

	if err == nil {
		t.Fatal("expected error for 404")
	}
	var srcErr *types.SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected SourceError, got %T", err)
	}
	if srcErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", srcErr.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 request for a client error, got %d", got)
	}
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	api := newHTTPAPI("dbpedia", fastEndpointConfig(), testLogger())
	var out map[string]any
	if err := api.getJSON(context.Background(), "search", server.URL, &out); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
	if out["ok"] != true {
		t.Errorf("unexpected body: %v", out)
	}
}

func TestGetJSON_RetriesRateLimiting(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	api := newHTTPAPI("dbpedia", fastEndpointConfig(), testLogger())
	var out map[string]any
	if err := api.getJSON(context.Background(), "search", server.URL, &out); err != nil {
		t.Fatalf("expected success after 429 retry, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 requests, got %d", got)
	}
}

func TestGetJSON_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	api := newHTTPAPI("dbpedia", fastEndpointConfig(), testLogger())
	var out map[string]any
	err := api.getJSON(context.Background(), "search", server.URL, &out)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// initial attempt + MaxRetries
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestGetJSON_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	api := newHTTPAPI("dbpedia", fastEndpointConfig(), testLogger())
	var out map[string]any
	err := api.getJSON(ctx, "search", server.URL, &out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
