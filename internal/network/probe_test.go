package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProberSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	prober := NewHTTPProber(srv.URL, time.Second)
	sample := prober.Probe(context.Background())
	if !sample.Success {
		t.Fatalf("expected success, got error %q", sample.Error)
	}
	if sample.LatencyMs < 0 {
		t.Fatalf("unexpected latency %d", sample.LatencyMs)
	}
}

func TestHTTPProberServerErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	prober := NewHTTPProber(srv.URL, time.Second)
	sample := prober.Probe(context.Background())
	if sample.Success {
		t.Fatal("expected failure for 500 response")
	}
	if sample.Error == "" {
		t.Fatal("expected error message")
	}
}

func TestHTTPProberTimeoutIsData(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	prober := NewHTTPProber(srv.URL, 50*time.Millisecond)
	sample := prober.Probe(context.Background())
	if sample.Success {
		t.Fatal("expected timeout failure")
	}
	if sample.Error == "" {
		t.Fatal("expected timeout error message")
	}
}

func TestHTTPProberUnreachableHost(t *testing.T) {
	prober := NewHTTPProber("http://127.0.0.1:1/ping", 200*time.Millisecond)
	sample := prober.Probe(context.Background())
	if sample.Success {
		t.Fatal("expected failure for unreachable host")
	}
}
