package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args []string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	content := `[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
api_bind = "127.0.0.1:0"

[queue]
max_size = 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := runCLI(t, []string{"--help"})
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, name := range []string{"daemon", "queue", "net", "config", "status"} {
		requireContains(t, out, name)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCLI(t, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, []string{"config", "init", "--path", target}); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestConfigShowRendersEffectiveConfig(t *testing.T) {
	path := writeTestConfig(t, t.TempDir())
	out, err := runCLI(t, []string{"--config", path, "config", "show"})
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "queue.max_size")
	requireContains(t, out, "10")
}

func TestQueueListRequiresRunningDaemon(t *testing.T) {
	path := writeTestConfig(t, t.TempDir())
	_, err := runCLI(t, []string{"--config", path, "--api", "127.0.0.1:1", "queue", "list"})
	if err == nil {
		t.Fatal("expected error when no daemon is listening")
	}
}

func TestQueueAddRejectsBadVariables(t *testing.T) {
	path := writeTestConfig(t, t.TempDir())
	_, err := runCLI(t, []string{"--config", path, "queue", "add", "createNote", "--variables", "{not json"})
	if err == nil || !strings.Contains(err.Error(), "parse --variables") {
		t.Fatalf("expected variables parse error, got %v", err)
	}
}
