// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"gamedock/internal/config"
	"gamedock/internal/storage"
)

// NewConfig returns a validated default config rooted in a temp directory.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.CoverDir = filepath.Join(base, "covers")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// MustOpenDB opens a fresh state database in a temp directory.
func MustOpenDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenPath(filepath.Join(t.TempDir(), "gamedock.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// StubBinary drops an executable shell stub named name into a directory that
// is prepended to PATH for the remainder of the test.
func StubBinary(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return path
}
