package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig writes a config file rooted in a temp directory and returns
// its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
state_dir = %q
download_dir = %q
library_dir = %q
cover_dir = %q
log_dir = %q

[logging]
format = "console"
level = "error"
`,
		filepath.Join(base, "state"),
		filepath.Join(base, "downloads"),
		filepath.Join(base, "library"),
		filepath.Join(base, "covers"),
		filepath.Join(base, "logs"),
	)
	path := filepath.Join(base, "gamedock.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigValidateWithExplicitPath(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCommand(t, "--config", configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("output = %q", out)
	}
	if !strings.Contains(out, configPath) {
		t.Fatalf("output missing resolved path: %q", out)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if out, err := runCommand(t, "config", "init", "--path", target); err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when target already exists")
	}
}

func TestDownloadsListEmpty(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCommand(t, "--config", configPath, "downloads", "list")
	if err != nil {
		t.Fatalf("downloads list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "No downloads tracked.") {
		t.Fatalf("output = %q", out)
	}
}

func TestLibraryListEmpty(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCommand(t, "--config", configPath, "library", "list")
	if err != nil {
		t.Fatalf("library list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Library is empty.") {
		t.Fatalf("output = %q", out)
	}
}

func TestScanCommand(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Game.exe"), []byte("MZ"), 0o644); err != nil {
		t.Fatalf("write exe: %v", err)
	}

	out, err := runCommand(t, "scan", dir)
	if err != nil {
		t.Fatalf("scan: %v\n%s", err, out)
	}
	if !strings.Contains(out, "windows-exe") || !strings.Contains(out, "Game.exe") {
		t.Fatalf("output = %q", out)
	}
}

func TestExtractRejectsNonArchive(t *testing.T) {
	configPath := writeTestConfig(t)
	target := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(target, []byte("hi"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := runCommand(t, "--config", configPath, "extract", target); err == nil {
		t.Fatal("expected error for non-archive input")
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"A", "B", "C"},
		[][]string{{"1"}},
		[]columnAlignment{alignRight},
	)
	if !strings.Contains(out, "A") || !strings.Contains(out, "1") {
		t.Fatalf("table output = %q", out)
	}
}
