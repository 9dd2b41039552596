package library

import "time"

// Item represents a fully installed, playable entry. Items are distinct from
// the downloads that produced them and never alias a download record.
type Item struct {
	ID              int64
	Title           string
	CoverImage      string
	LocalCoverImage string
	// ExtractedPath is the root folder of the playable install. No two items
	// may share one.
	ExtractedPath string
	// ArchivePath is the retained original archive, if any. It can be deleted
	// independently of the extracted folder.
	ArchivePath    string
	Engine         string
	GameVersion    string
	AddedAt        time.Time
	LastPlayedAt   *time.Time
	IsFavorite     bool
	IsReExtracting bool
	UpdatedAt      time.Time
}
