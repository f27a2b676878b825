package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"driftq/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	pathTOML := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(pathTOML, nil, 0o644); err != nil {
		t.Fatalf("write empty config: %v", err)
	}
	loaded, _, exists, err := config.Load(pathTOML)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be reported as existing")
	}
	if loaded.Queue.MaxSize != cfg.Queue.MaxSize {
		t.Fatalf("expected default max_size %d, got %d", cfg.Queue.MaxSize, loaded.Queue.MaxSize)
	}
	if loaded.Logging.Format != "console" {
		t.Fatalf("expected console log format, got %q", loaded.Logging.Format)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[queue]
max_size = 10
batch_size = 2
max_retries = 1

[network]
probe_url = "http://localhost:9/health"

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected resolved existing path, got %q exists=%v", resolved, exists)
	}
	if cfg.Queue.MaxSize != 10 || cfg.Queue.BatchSize != 2 || cfg.Queue.MaxRetries != 1 {
		t.Fatalf("queue overrides not applied: %+v", cfg.Queue)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging overrides not applied: %+v", cfg.Logging)
	}
	if cfg.Network.ProbeInterval == 0 {
		t.Fatal("expected probe interval default to be filled in")
	}
}

func TestLoadRejectsBadBatchSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[queue]
max_size = 2
batch_size = 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected validation error for batch_size > max_size")
	}
	if !strings.Contains(err.Error(), "batch_size") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsBadProbeURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[network]
probe_url = "ftp://example.com/ping"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected validation error for non-http probe URL")
	}
}

func TestRemoteTokenEnvFallback(t *testing.T) {
	t.Setenv("DRIFTQ_REMOTE_TOKEN", "secret-token")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[remote]
endpoint = "https://api.example.com/sync"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Remote.Token != "secret-token" {
		t.Fatalf("expected env token fallback, got %q", cfg.Remote.Token)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[queue]") {
		t.Fatal("sample config missing [queue] section")
	}
}
