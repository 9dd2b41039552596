package archives

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gamedock/internal/config"
)

func stubLookPath(t *testing.T, available map[string]string) {
	t.Helper()
	orig := lookPath
	lookPath = func(name string) (string, error) {
		if path, ok := available[name]; ok {
			return path, nil
		}
		return "", errors.New("not found")
	}
	t.Cleanup(func() { lookPath = orig })
}

func stubHostOS(t *testing.T, goos string) {
	t.Helper()
	orig := hostOS
	hostOS = func() string { return goos }
	t.Cleanup(func() { hostOS = orig })
}

func TestDetectUnixAllToolsPresent(t *testing.T) {
	stubHostOS(t, "linux")
	stubLookPath(t, map[string]string{
		"unzip": "/usr/bin/unzip",
		"7z":    "/usr/bin/7z",
		"unrar": "/usr/bin/unrar",
		"tar":   "/usr/bin/tar",
	})

	avail := Detect(nil)
	if !avail.Zip || !avail.SevenZip || !avail.Rar || !avail.Tar {
		t.Fatalf("expected all tools available, got %+v", avail)
	}
	if len(avail.Missing) != 0 {
		t.Fatalf("expected no instructions, got %+v", avail.Missing)
	}
}

func TestDetectRarSatisfiedBySevenZip(t *testing.T) {
	stubHostOS(t, "linux")
	stubLookPath(t, map[string]string{
		"7zz": "/usr/local/bin/7zz",
		"tar": "/usr/bin/tar",
	})

	avail := Detect(nil)
	if !avail.Rar {
		t.Fatal("7z alone should satisfy RAR support")
	}
	if avail.UnrarPath != "" {
		t.Fatalf("unexpected unrar path %q", avail.UnrarPath)
	}
	if avail.SevenZipPath != "/usr/local/bin/7zz" {
		t.Fatalf("expected 7zz fallback, got %q", avail.SevenZipPath)
	}
}

func TestDetectNothingAvailableProducesInstructions(t *testing.T) {
	stubHostOS(t, "linux")
	stubLookPath(t, nil)

	avail := Detect(nil)
	if avail.Zip || avail.SevenZip || avail.Rar || avail.Tar {
		t.Fatalf("expected nothing available, got %+v", avail)
	}

	tools := map[string]bool{}
	for _, inst := range avail.Missing {
		if inst.Text == "" {
			t.Fatalf("instruction for %q has no text", inst.Tool)
		}
		tools[inst.Tool] = true
	}
	for _, tool := range []string{"7z", "unrar", "tar", "unzip"} {
		if !tools[tool] {
			t.Fatalf("missing instruction for %q in %+v", tool, avail.Missing)
		}
	}
}

func TestDetectWindowsAssumesZip(t *testing.T) {
	stubHostOS(t, "windows")
	stubLookPath(t, nil)

	avail := Detect(nil)
	if !avail.Zip {
		t.Fatal("zip must be assumed available on windows")
	}
	if avail.Tar {
		t.Fatal("tar should be unavailable when probing fails")
	}
}

func TestDetectHonorsConfiguredOverride(t *testing.T) {
	stubHostOS(t, "linux")
	stubLookPath(t, nil)

	dir := t.TempDir()
	sevenZip := filepath.Join(dir, "7z-custom")
	if err := os.WriteFile(sevenZip, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	cfg := config.Default()
	cfg.Extraction.SevenZipPath = sevenZip

	avail := Detect(&cfg)
	if avail.SevenZipPath != sevenZip {
		t.Fatalf("override ignored: %q", avail.SevenZipPath)
	}
	if !avail.Rar {
		t.Fatal("override should also satisfy RAR")
	}
}
