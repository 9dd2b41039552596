// Package scanner finds launch candidates inside an extracted game folder:
// Windows executables, macOS app bundles, and native binaries with the
// executable bit set.
package scanner

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Type classifies a launch candidate.
type Type string

const (
	TypeWindowsExe   Type = "windows-exe"
	TypeMacApp       Type = "mac-app"
	TypeNativeBinary Type = "native-binary"
)

// Candidate is one potential game executable found under the scan root.
type Candidate struct {
	// Path is absolute.
	Path string
	Type Type
	// Depth is the number of directories below the scan root.
	Depth int
}

// ignoredNames are executables that are never the game itself.
var ignoredNames = map[string]bool{
	"unitycrashhandler.exe":   true,
	"unitycrashhandler64.exe": true,
	"ue4prereqsetup_x64.exe":  true,
	"uninstall.exe":           true,
	"unins000.exe":            true,
	"vcredist_x64.exe":        true,
	"vcredist_x86.exe":        true,
	"dxsetup.exe":             true,
	"python.exe":              true,
	"pythonw.exe":             true,
	"notification_helper.exe": true,
}

// scriptSuffixes are treated as native candidates even without the exec bit.
var scriptSuffixes = []string{".sh", ".x86_64", ".x86"}

// Scan walks dir and returns every launch candidate, shallowest first and
// alphabetical within a depth. Unreadable subtrees are skipped, not fatal.
// The root must exist and be a directory.
func Scan(dir string) ([]Candidate, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("scan root is not a directory")
	}

	var candidates []Candidate
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return fs.SkipDir
		}

		if entry.IsDir() {
			if isMacApp(path) {
				candidates = append(candidates, Candidate{
					Path:  path,
					Type:  TypeMacApp,
					Depth: depthBelow(root, path),
				})
				// Do not descend into the bundle.
				return fs.SkipDir
			}
			return nil
		}

		candidate, ok := classifyFile(path, entry)
		if !ok {
			return nil
		}
		candidate.Depth = depthBelow(root, path)
		candidates = append(candidates, candidate)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Depth != candidates[j].Depth {
			return candidates[i].Depth < candidates[j].Depth
		}
		return candidates[i].Path < candidates[j].Path
	})
	return candidates, nil
}

func classifyFile(path string, entry fs.DirEntry) (Candidate, bool) {
	name := strings.ToLower(entry.Name())

	if strings.HasSuffix(name, ".exe") {
		if ignoredNames[name] {
			return Candidate{}, false
		}
		return Candidate{Path: path, Type: TypeWindowsExe}, true
	}

	for _, suffix := range scriptSuffixes {
		if strings.HasSuffix(name, suffix) {
			return Candidate{Path: path, Type: TypeNativeBinary}, true
		}
	}

	// Extension-less files with the exec bit are native binary candidates.
	if filepath.Ext(name) == "" {
		info, err := entry.Info()
		if err != nil {
			return Candidate{}, false
		}
		if info.Mode()&0o111 != 0 {
			return Candidate{Path: path, Type: TypeNativeBinary}, true
		}
	}
	return Candidate{}, false
}

func isMacApp(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".app")
}

func depthBelow(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator))
}
