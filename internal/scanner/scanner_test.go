//go:build !windows

package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func mustWrite(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), mode); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestScanClassifiesCandidates(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "Game.exe"), 0o644)
	mustWrite(t, filepath.Join(root, "sub", "Game.sh"), 0o755)
	mustWrite(t, filepath.Join(root, "sub", "game.x86_64"), 0o644)
	mustWrite(t, filepath.Join(root, "bin", "runner"), 0o755)
	mustWrite(t, filepath.Join(root, "readme.txt"), 0o644)
	mustWrite(t, filepath.Join(root, "data"), 0o644) // extension-less, not executable
	if err := os.MkdirAll(filepath.Join(root, "Game.app", "Contents", "MacOS"), 0o755); err != nil {
		t.Fatalf("mkdir app bundle: %v", err)
	}
	mustWrite(t, filepath.Join(root, "Game.app", "Contents", "MacOS", "Game"), 0o755)

	candidates, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	byPath := make(map[string]Type, len(candidates))
	for _, candidate := range candidates {
		rel, _ := filepath.Rel(root, candidate.Path)
		byPath[rel] = candidate.Type
	}

	want := map[string]Type{
		"Game.exe":                          TypeWindowsExe,
		"Game.app":                          TypeMacApp,
		filepath.Join("sub", "Game.sh"):     TypeNativeBinary,
		filepath.Join("sub", "game.x86_64"): TypeNativeBinary,
		filepath.Join("bin", "runner"):      TypeNativeBinary,
	}
	if len(byPath) != len(want) {
		t.Fatalf("candidates = %v, want %v", byPath, want)
	}
	for rel, wantType := range want {
		if byPath[rel] != wantType {
			t.Errorf("%s classified as %q, want %q", rel, byPath[rel], wantType)
		}
	}
}

func TestScanDoesNotDescendIntoAppBundle(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "Game.app", "Contents", "MacOS", "helper.exe"), 0o644)

	candidates, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Type != TypeMacApp {
		t.Fatalf("candidates = %+v, want just the bundle", candidates)
	}
}

func TestScanOrdersShallowestFirst(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "deep", "nested", "Inner.exe"), 0o644)
	mustWrite(t, filepath.Join(root, "Outer.exe"), 0o644)

	candidates, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("candidates = %+v", candidates)
	}
	if filepath.Base(candidates[0].Path) != "Outer.exe" {
		t.Fatalf("first candidate = %s, want shallow Outer.exe", candidates[0].Path)
	}
}

func TestScanSkipsHelperExecutables(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "Game.exe"), 0o644)
	mustWrite(t, filepath.Join(root, "UnityCrashHandler64.exe"), 0o644)
	mustWrite(t, filepath.Join(root, "unins000.exe"), 0o644)

	candidates, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(candidates) != 1 || filepath.Base(candidates[0].Path) != "Game.exe" {
		t.Fatalf("candidates = %+v", candidates)
	}
}

func TestScanSkipsUnreadableSubdirectories(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits do not bind as root")
	}
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "Game.exe"), 0o644)
	locked := filepath.Join(root, "locked")
	mustWrite(t, filepath.Join(locked, "Hidden.exe"), 0o644)
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	candidates, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan should skip unreadable subtrees: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %+v", candidates)
	}
}

func TestScanRejectsMissingRoot(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing root")
	}
}
