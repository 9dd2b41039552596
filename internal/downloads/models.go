package downloads

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a download record.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// InterruptedMessage is the fixed error recorded when a non-terminal download
// is found at startup.
const InterruptedMessage = "Download interrupted by application restart"

// ExtractionFailedMessage is recorded on a completed download whose archive
// could not be unpacked. The record stays completed.
const ExtractionFailedMessage = "Extraction failed"

var allStatuses = []Status{
	StatusPending,
	StatusDownloading,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status admits no further transitions. Events
// arriving for a terminal record are stale and must be ignored.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Metadata is catalog information attached to a download before the facility
// reports it, then merged in at start time.
type Metadata struct {
	ArticleTitle string
	CoverImage   string
	Engine       string
	GameVersion  string
}

// Record represents one tracked download. IDs are assigned by the external
// download facility, never by gamedock.
type Record struct {
	ID              int64
	Filename        string
	URL             string
	SavePath        string
	Status          Status
	Progress        float64
	DownloadedBytes int64
	TotalBytes      int64
	Speed           int64
	StartTime       time.Time
	EndTime         *time.Time
	IsExtracting    bool
	ExtractedPath   string
	ErrorMessage    string
	Metadata        Metadata
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SetFailed marks the record failed with the given message and zeroes speed.
func (r *Record) SetFailed(message string) {
	r.Status = StatusFailed
	r.ErrorMessage = message
	r.Speed = 0
	r.IsExtracting = false
}

// ProgressFor computes a 0-100 progress value, guarding division by zero.
func ProgressFor(received, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(received) / float64(total) * 100
}

// Title returns the display title: attached catalog metadata when present,
// otherwise the filename without its archive suffix.
func (r *Record) Title() string {
	if title := strings.TrimSpace(r.Metadata.ArticleTitle); title != "" {
		return title
	}
	name := r.Filename
	for {
		suffix := matchArchiveSuffix(name)
		if suffix == "" {
			return name
		}
		name = name[:len(name)-len(suffix)]
	}
}

func matchArchiveSuffix(name string) string {
	lower := strings.ToLower(name)
	for _, suffix := range []string{".tar.gz", ".tar.xz", ".tgz", ".zip", ".rar", ".7z", ".tar", ".gz", ".xz"} {
		if strings.HasSuffix(lower, suffix) {
			return suffix
		}
	}
	return ""
}
