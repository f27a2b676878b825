// Package daemonctl is the CLI-side client for a running driftq daemon's
// HTTP API.
package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"driftq/internal/network"
	"driftq/internal/offline"
)

// Client talks to the daemon's local HTTP API.
type Client struct {
	base string
	http *http.Client
}

// Status mirrors the daemon's /api/status payload.
type Status struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	Online       bool             `json:"online"`
	StoreDBPath  string           `json:"store_db_path"`
	LockFilePath string           `json:"lock_file_path"`
	Queue        offline.Stats    `json:"queue"`
	Network      *network.Quality `json:"network,omitempty"`
}

// QueueList mirrors the daemon's /api/queue payload.
type QueueList struct {
	Operations []offline.Operation `json:"operations"`
	Stats      offline.Stats       `json:"stats"`
}

// NetworkReport mirrors the daemon's /api/network payload.
type NetworkReport struct {
	Quality *network.Quality         `json:"quality,omitempty"`
	Stats   network.Stats            `json:"stats"`
	Events  []network.Event          `json:"events"`
	Tests   []network.ConnectionTest `json:"tests"`
}

// EnqueueRequest is the POST /api/queue payload.
type EnqueueRequest struct {
	Descriptor string         `json:"descriptor"`
	Variables  map[string]any `json:"variables,omitempty"`
	Priority   string         `json:"priority,omitempty"`
	Category   string         `json:"category,omitempty"`
	MaxRetries *int           `json:"max_retries,omitempty"`
	SideEffect string         `json:"side_effect,omitempty"`
}

// New builds a client for the given API bind address.
func New(bind string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, fmt.Errorf("daemon api bind address is not configured")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	return &Client{
		base: strings.TrimRight(bind, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Queue(ctx context.Context) (*QueueList, error) {
	var out QueueList
	if err := c.do(ctx, http.MethodGet, "/api/queue", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/queue", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) Remove(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/queue/"+id, nil, nil)
}

func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/queue", nil, nil)
}

func (c *Client) Sync(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/queue/sync", nil, nil)
}

func (c *Client) Network(ctx context.Context) (*NetworkReport, error) {
	var out NetworkReport
	if err := c.do(ctx, http.MethodGet, "/api/network", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TestConnection(ctx context.Context) (*network.ConnectionTest, error) {
	var out network.ConnectionTest
	if err := c.do(ctx, http.MethodPost, "/api/network/test", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
