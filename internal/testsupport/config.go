// Package testsupport provides shared fixtures for package tests: temp-dir
// backed configs and stores.
package testsupport

import (
	"path/filepath"
	"testing"

	"driftq/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = ""

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithAPIBind sets the daemon API bind address on the test config.
func WithAPIBind(bind string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.APIBind = bind
	}
}

// WithRemote points the remote executor at the given endpoint.
func WithRemote(endpoint, token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Remote.Endpoint = endpoint
		cfg.Remote.Token = token
	}
}
