package archives

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// Format names the tool family used to unpack an archive.
type Format string

const (
	FormatUnknown  Format = ""
	FormatZip      Format = "zip"
	FormatSevenZip Format = "7z"
	FormatRar      Format = "rar"
	FormatTar      Format = "tar"
)

// archiveSuffixes is the fixed set of recognized archive filename suffixes.
// Composite suffixes are listed first so they win over their tails.
var archiveSuffixes = []string{".tar.gz", ".tar.xz", ".tgz", ".zip", ".rar", ".7z", ".tar", ".gz", ".xz"}

// IsArchiveName reports whether filename carries a recognized archive suffix.
// Matching is case-insensitive.
func IsArchiveName(filename string) bool {
	return matchSuffix(filename) != ""
}

func matchSuffix(filename string) string {
	lower := strings.ToLower(filename)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return suffix
		}
	}
	return ""
}

// FormatForName maps a filename to its extraction format by suffix alone.
func FormatForName(filename string) Format {
	switch matchSuffix(filename) {
	case ".zip":
		return FormatZip
	case ".rar":
		return FormatRar
	case ".7z":
		return FormatSevenZip
	case ".tar", ".tgz", ".tar.gz", ".tar.xz":
		return FormatTar
	case ".gz", ".xz":
		// A bare compression stream without a .tar layer; 7z unpacks these.
		return FormatSevenZip
	default:
		return FormatUnknown
	}
}

// DetectFormat sniffs the file's magic bytes, falling back to the filename
// suffix when the content is unreadable or unrecognized.
func DetectFormat(path string) Format {
	fromName := FormatForName(filepath.Base(path))

	file, err := os.Open(path)
	if err != nil {
		return fromName
	}
	defer file.Close()

	head := make([]byte, 262)
	n, err := io.ReadFull(file, head)
	if err != nil && n == 0 {
		return fromName
	}

	kind, err := filetype.Match(head[:n])
	if err != nil {
		return fromName
	}
	switch kind.Extension {
	case "zip":
		return FormatZip
	case "rar":
		return FormatRar
	case "7z":
		return FormatSevenZip
	case "tar":
		return FormatTar
	case "gz", "xz":
		// Compressed tarballs sniff as their compression layer; trust the
		// name to tell a .tar.gz apart from a bare .gz.
		if fromName == FormatTar {
			return FormatTar
		}
		return FormatSevenZip
	default:
		return fromName
	}
}

// DestinationPath derives the extraction destination for an archive: the
// outermost extension is stripped, then a trailing .tar if one remains.
func DestinationPath(archivePath string) string {
	dest := strings.TrimSuffix(archivePath, filepath.Ext(archivePath))
	if strings.HasSuffix(strings.ToLower(dest), ".tar") {
		dest = dest[:len(dest)-len(".tar")]
	}
	return dest
}
