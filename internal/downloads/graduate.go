package downloads

import (
	"gamedock/internal/library"
)

// libraryItem builds the library entry a finished download graduates into.
// The archive path is retained only when archives are kept and the download
// actually was one.
func libraryItem(record *Record, wasArchive, keepArchive bool) library.Item {
	item := library.Item{
		Title:         record.Title(),
		CoverImage:    record.Metadata.CoverImage,
		ExtractedPath: record.ExtractedPath,
		Engine:        record.Metadata.Engine,
		GameVersion:   record.Metadata.GameVersion,
	}
	if wasArchive && keepArchive {
		item.ArchivePath = record.SavePath
	}
	return item
}
