// Package remote executes queued operations against an HTTP backend. When no
// endpoint is configured, a noop executor accepts every operation so the
// queue can run standalone.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"driftq/internal/config"
)

const userAgent = "DriftQ/0.1.0"

// request is the wire form of one queued operation.
type request struct {
	Operation string         `json:"operation"`
	Variables map[string]any `json:"variables,omitempty"`
}

// NewExecutor builds an HTTP executor from the remote section. An empty
// endpoint yields a noop executor.
func NewExecutor(cfg config.Remote) Executor {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return noopExecutor{}
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &httpExecutor{
		endpoint: endpoint,
		token:    strings.TrimSpace(cfg.Token),
		client:   &http.Client{Timeout: timeout},
	}
}

// Executor mirrors the queue's executor contract so callers need not import
// the queue package to construct one.
type Executor interface {
	Execute(ctx context.Context, descriptor string, variables map[string]any) ([]byte, error)
}

type httpExecutor struct {
	endpoint string
	token    string
	client   *http.Client
}

func (e *httpExecutor) Execute(ctx context.Context, descriptor string, variables map[string]any) ([]byte, error) {
	body, err := json.Marshal(request{Operation: descriptor, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("encode operation %q: %w", descriptor, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request for %q: %w", descriptor, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute %q: %w", descriptor, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response for %q: %w", descriptor, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend returned %d for %q: %s", resp.StatusCode, descriptor, strings.TrimSpace(string(payload)))
	}
	return payload, nil
}

type noopExecutor struct{}

func (noopExecutor) Execute(context.Context, string, map[string]any) ([]byte, error) {
	return nil, nil
}
