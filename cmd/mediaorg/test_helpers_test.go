package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	library    string
	configPath string
	baseDir    string
}

// setupCLITestEnv isolates HOME and the env fallbacks, creates an empty
// library, and writes a config pointing at it with history enabled.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	library := filepath.Join(base, "library")
	for _, dir := range []string{homeDir, library} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("MEDIAORG_LIBRARY", "")
	t.Setenv("MEDIAORG_CLASSIFIER_URL", "")
	t.Setenv("MEDIAORG_NSFW_URL", "")

	configPath := filepath.Join(base, "mediaorg.toml")
	writeTestConfig(t, configPath, library)

	return &cliTestEnv{library: library, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path, library string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
library_dir = %q

[dedup]
min_file_size_kb = 0

[history]
enabled = true

[logging]
level = "error"
`, library)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}
