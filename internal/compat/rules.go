package compat

import (
	"os"
	"path/filepath"
	"strings"
)

// builtinRules returns the rules shipped with gamedock.
func builtinRules() []Rule {
	return []Rule{
		dotnetGlobalizationRule(),
	}
}

// dotnetRuntimeLibraries are marker files that identify a .NET application
// directory even when no runtimeconfig is present.
var dotnetRuntimeLibraries = []string{"coreclr.dll", "hostfxr.dll", "mscorlib.dll"}

// dotnetGlobalizationRule works around ICU-dependent globalization crashes
// when .NET applications run under a translation layer: the invariant
// globalization switch keeps the managed runtime from touching culture data
// the layer cannot provide.
func dotnetGlobalizationRule() Rule {
	return Rule{
		ID:          "dotnet-globalization-invariant",
		Name:        "DotNetGlobalizationInvariant",
		Description: "Disables culture-specific globalization for .NET executables run under a translation layer.",
		Applies: func(ctx Context) bool {
			if !ctx.UseWine || ctx.HostOS == "windows" {
				return false
			}
			if strings.TrimSpace(ctx.ExecutablePath) == "" {
				return false
			}
			return hasDotnetMarkers(filepath.Dir(ctx.ExecutablePath))
		},
		Env: map[string]string{
			"DOTNET_SYSTEM_GLOBALIZATION_INVARIANT": "1",
		},
	}
}

// hasDotnetMarkers scans dir and its immediate subdirectories for .NET runtime
// marker files. Unreadable directories mean the rule does not apply.
func hasDotnetMarkers(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	if entriesHaveMarker(entries) {
		return true
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		subEntries, err := os.ReadDir(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if entriesHaveMarker(subEntries) {
			return true
		}
	}
	return false
}

func entriesHaveMarker(entries []os.DirEntry) bool {
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if strings.HasSuffix(name, ".runtimeconfig.json") {
			return true
		}
		for _, lib := range dotnetRuntimeLibraries {
			if name == lib {
				return true
			}
		}
	}
	return false
}
