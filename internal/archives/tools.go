package archives

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"gamedock/internal/config"
)

// lookPath is an indirection point for tests.
var lookPath = exec.LookPath

// hostOS is an indirection point for tests.
var hostOS = func() string { return runtime.GOOS }

// Instruction tells the user how to obtain a missing tool.
type Instruction struct {
	Tool    string
	Formats []string
	Text    string
}

// Availability reports which archive tools the host can invoke. Detection
// never fails; a probe error simply means the tool is unavailable.
type Availability struct {
	Zip      bool
	SevenZip bool
	Rar      bool
	Tar      bool

	UnzipPath    string
	SevenZipPath string
	UnrarPath    string
	TarPath      string

	Missing []Instruction
}

// Supports reports whether the host can unpack the given format.
func (a Availability) Supports(format Format) bool {
	switch format {
	case FormatZip:
		return a.Zip
	case FormatSevenZip:
		return a.SevenZip
	case FormatRar:
		return a.Rar
	case FormatTar:
		return a.Tar
	default:
		return false
	}
}

// sevenZipKnownDirs are checked before PATH on Windows.
func sevenZipKnownDirs() []string {
	dirs := make([]string, 0, 2)
	for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)"} {
		if base := os.Getenv(env); base != "" {
			dirs = append(dirs, filepath.Join(base, "7-Zip", "7z.exe"))
		}
	}
	return dirs
}

func probe(names ...string) string {
	for _, name := range names {
		if name == "" {
			continue
		}
		if path, err := lookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// Detect probes the host for archive tools. Overrides from cfg.Extraction are
// honored before discovery. The result is data, never an error: missing tools
// are reported through the Missing instructions.
func Detect(cfg *config.Config) Availability {
	var (
		sevenZipOverride string
		unrarOverride    string
	)
	if cfg != nil {
		sevenZipOverride = cfg.Extraction.SevenZipPath
		unrarOverride = cfg.Extraction.UnrarPath
	}

	avail := Availability{}
	goos := hostOS()

	if goos == "windows" {
		avail.SevenZipPath = detectWindowsSevenZip(sevenZipOverride)
		// The built-in archiver always covers ZIP on Windows.
		avail.Zip = true
		avail.TarPath = probe("tar")
	} else {
		avail.SevenZipPath = detectOverride(sevenZipOverride)
		if avail.SevenZipPath == "" {
			avail.SevenZipPath = probe("7z", "7zz", "7za")
		}
		avail.UnzipPath = probe("unzip")
		avail.Zip = avail.UnzipPath != "" || avail.SevenZipPath != ""
		avail.TarPath = probe("tar")
	}

	avail.UnrarPath = detectOverride(unrarOverride)
	if avail.UnrarPath == "" {
		avail.UnrarPath = probe("unrar")
	}

	avail.SevenZip = avail.SevenZipPath != ""
	avail.Tar = avail.TarPath != ""
	// 7z unpacks RAR archives, so either tool satisfies the format.
	avail.Rar = avail.UnrarPath != "" || avail.SevenZip

	avail.Missing = missingInstructions(goos, avail)
	return avail
}

func detectOverride(override string) string {
	if strings.TrimSpace(override) == "" {
		return ""
	}
	if info, err := os.Stat(override); err == nil && !info.IsDir() {
		return override
	}
	return ""
}

func detectWindowsSevenZip(override string) string {
	if path := detectOverride(override); path != "" {
		return path
	}
	for _, candidate := range sevenZipKnownDirs() {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return probe("7z")
}

func missingInstructions(goos string, avail Availability) []Instruction {
	var missing []Instruction
	if !avail.SevenZip {
		missing = append(missing, Instruction{
			Tool:    "7z",
			Formats: []string{"7z", "rar", "gz", "xz"},
			Text:    sevenZipInstallText(goos),
		})
	}
	if !avail.Rar {
		missing = append(missing, Instruction{
			Tool:    "unrar",
			Formats: []string{"rar"},
			Text:    unrarInstallText(goos),
		})
	}
	if !avail.Tar {
		missing = append(missing, Instruction{
			Tool:    "tar",
			Formats: []string{"tar", "tar.gz", "tar.xz", "tgz"},
			Text:    tarInstallText(goos),
		})
	}
	if !avail.Zip {
		missing = append(missing, Instruction{
			Tool:    "unzip",
			Formats: []string{"zip"},
			Text:    unzipInstallText(goos),
		})
	}
	return missing
}

func sevenZipInstallText(goos string) string {
	switch goos {
	case "windows":
		return "Install 7-Zip from https://www.7-zip.org and restart gamedock."
	case "darwin":
		return "Install 7-Zip with 'brew install sevenzip'."
	default:
		return "Install 7-Zip with your package manager, e.g. 'sudo apt install p7zip-full'."
	}
}

func unrarInstallText(goos string) string {
	switch goos {
	case "windows":
		return "Install 7-Zip from https://www.7-zip.org; it unpacks RAR archives."
	case "darwin":
		return "Install unrar with 'brew install unrar', or 7-Zip with 'brew install sevenzip'."
	default:
		return "Install unrar with your package manager, e.g. 'sudo apt install unrar', or install 7-Zip."
	}
}

func tarInstallText(goos string) string {
	if goos == "windows" {
		return "tar ships with Windows 10 1803 and later; update Windows or install bsdtar."
	}
	return "Install tar with your package manager."
}

func unzipInstallText(goos string) string {
	if goos == "darwin" {
		return "unzip ships with macOS; reinstall the command line tools."
	}
	return "Install unzip with your package manager, e.g. 'sudo apt install unzip'."
}
