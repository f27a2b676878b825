package network

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Prober issues a single round-trip measurement. Implementations never return
// an error: a failed or timed-out probe is reported inside the sample.
type Prober interface {
	Probe(ctx context.Context) ConnectionTest
}

// HTTPProber measures latency with a lightweight HEAD request against a known
// endpoint.
type HTTPProber struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPProber builds a prober for the given endpoint and per-call timeout.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Probe performs one measurement. The sample timestamp is the request start.
func (p *HTTPProber) Probe(ctx context.Context) ConnectionTest {
	start := time.Now()
	sample := ConnectionTest{Timestamp: start}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, p.url, nil)
	if err != nil {
		sample.Error = fmt.Sprintf("build probe request: %v", err)
		return sample
	}

	resp, err := p.client.Do(req)
	if err != nil {
		sample.Error = err.Error()
		return sample
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		sample.Error = fmt.Sprintf("probe endpoint returned %d", resp.StatusCode)
		return sample
	}

	sample.Success = true
	sample.LatencyMs = time.Since(start).Milliseconds()
	return sample
}
