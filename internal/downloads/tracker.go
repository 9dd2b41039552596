package downloads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gamedock/internal/archives"
	"gamedock/internal/events"
	"gamedock/internal/library"
	"gamedock/internal/logging"
	"gamedock/internal/notifications"
)

// ErrArchiveMissing indicates a re-extraction was requested but the retained
// archive is no longer on disk.
var ErrArchiveMissing = errors.New("archive no longer exists on disk")

// Extractor unpacks one archive into a destination directory.
type Extractor interface {
	Extract(ctx context.Context, archivePath, destPath string) error
}

// Facility is the external download engine. The tracker never blocks on it;
// cancellation requests are best-effort.
type Facility interface {
	Cancel(ctx context.Context, id int64) error
}

// TrackerConfig carries the tunable tracker behavior.
type TrackerConfig struct {
	// KeepArchives retains the downloaded archive after extraction instead of
	// deleting it.
	KeepArchives bool
}

// Tracker drives download records through their lifecycle: facility events in,
// state transitions and extraction out, finished installs graduated into the
// library.
type Tracker struct {
	store     *Store
	library   *library.Store
	extractor Extractor
	hub       *events.Hub
	notifier  notifications.Service
	logger    *slog.Logger
	cfg       TrackerConfig

	facilityMu sync.RWMutex
	facility   Facility

	// pending holds catalog metadata for the next download the facility
	// reports. One slot; a second set overwrites the first.
	pendingMu sync.Mutex
	pending   *Metadata

	locks sync.Map // download id -> *sync.Mutex
}

// NewTracker wires the tracker to its collaborators. notifier may be nil.
func NewTracker(
	store *Store,
	lib *library.Store,
	extractor Extractor,
	hub *events.Hub,
	notifier notifications.Service,
	logger *slog.Logger,
	cfg TrackerConfig,
) *Tracker {
	if notifier == nil {
		notifier = notifications.Noop()
	}
	if hub == nil {
		hub = events.NewHub()
	}
	return &Tracker{
		store:     store,
		library:   lib,
		extractor: extractor,
		hub:       hub,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(logger, "downloads"),
		cfg:       cfg,
	}
}

// SetFacility binds the external download engine used for cancellation.
func (t *Tracker) SetFacility(facility Facility) {
	t.facilityMu.Lock()
	t.facility = facility
	t.facilityMu.Unlock()
}

// SetPendingMetadata stages catalog metadata for the next download start. The
// slot holds one entry; staging again before a start overwrites it.
func (t *Tracker) SetPendingMetadata(meta Metadata) {
	t.pendingMu.Lock()
	t.pending = &meta
	t.pendingMu.Unlock()
}

func (t *Tracker) takePendingMetadata() Metadata {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	if t.pending == nil {
		return Metadata{}
	}
	meta := *t.pending
	t.pending = nil
	return meta
}

func (t *Tracker) lockFor(id int64) *sync.Mutex {
	mu, _ := t.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// HandleStarted records a new download reported by the facility. A repeated
// start for a known ID is ignored.
func (t *Tracker) HandleStarted(ctx context.Context, id int64, filename, url, savePath string, totalBytes int64) error {
	mu := t.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := t.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	record := &Record{
		ID:         id,
		Filename:   filename,
		URL:        url,
		SavePath:   savePath,
		Status:     StatusPending,
		TotalBytes: totalBytes,
		StartTime:  time.Now().UTC(),
		Metadata:   t.takePendingMetadata(),
	}
	if err := t.store.Insert(ctx, record); err != nil {
		return err
	}

	t.logger.Info("download started",
		logging.Int64(logging.FieldDownload, id),
		logging.String("filename", filename),
	)
	t.hub.Publish(events.KindDownloadStarted, events.DownloadStarted{
		ID:         id,
		Filename:   filename,
		TotalBytes: totalBytes,
	})
	return nil
}

// HandleProgress applies a progress tick. Ticks for unknown or terminal
// records are stale and silently dropped.
func (t *Tracker) HandleProgress(ctx context.Context, id, downloadedBytes, totalBytes, speed int64) error {
	mu := t.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	record, err := t.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil || record.Status.IsTerminal() {
		return nil
	}

	record.Status = StatusDownloading
	record.DownloadedBytes = downloadedBytes
	if totalBytes > 0 {
		record.TotalBytes = totalBytes
	}
	record.Speed = speed
	record.Progress = ProgressFor(downloadedBytes, record.TotalBytes)
	if err := t.store.Update(ctx, record); err != nil {
		return err
	}

	t.hub.Publish(events.KindDownloadProgress, events.DownloadProgress{
		ID:              id,
		DownloadedBytes: downloadedBytes,
		TotalBytes:      record.TotalBytes,
		Speed:           speed,
		Progress:        record.Progress,
	})
	return nil
}

// HandleCompleted marks the download completed, extracts it when it is an
// archive, and graduates the install into the library. Extraction failure
// leaves the record completed with a fixed error message; the record is not
// graduated.
func (t *Tracker) HandleCompleted(ctx context.Context, id int64, savePath string) error {
	mu := t.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	record, err := t.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil || record.Status.IsTerminal() {
		return nil
	}

	now := time.Now().UTC()
	record.Status = StatusCompleted
	if record.EndTime == nil {
		record.EndTime = &now
	}
	record.Progress = 100
	record.Speed = 0
	if record.TotalBytes > 0 {
		record.DownloadedBytes = record.TotalBytes
	}
	if savePath != "" {
		record.SavePath = savePath
	}

	t.hub.Publish(events.KindDownloadCompleted, events.DownloadCompleted{
		ID:       id,
		Filename: record.Filename,
		SavePath: record.SavePath,
	})

	wasArchive := archives.IsArchiveName(record.Filename)
	if wasArchive {
		if err := t.extract(ctx, record); err != nil {
			// Completed with an extraction error; the user can retry later
			// from the retained archive.
			record.ErrorMessage = ExtractionFailedMessage
			if updateErr := t.store.Update(ctx, record); updateErr != nil {
				return updateErr
			}
			t.notifyExtractionFailed(ctx, record.Filename, err)
			return nil
		}
	} else {
		record.ExtractedPath = record.SavePath
	}

	if err := t.store.Update(ctx, record); err != nil {
		return err
	}
	return t.graduate(ctx, record, wasArchive)
}

func (t *Tracker) extract(ctx context.Context, record *Record) error {
	dest := archives.DestinationPath(record.SavePath)

	record.IsExtracting = true
	if err := t.store.Update(ctx, record); err != nil {
		record.IsExtracting = false
		return err
	}
	t.hub.Publish(events.KindExtractionStarted, events.ExtractionStarted{
		DownloadID:  record.ID,
		ArchivePath: record.SavePath,
		DestPath:    dest,
	})

	err := t.extractor.Extract(ctx, record.SavePath, dest)
	record.IsExtracting = false

	t.hub.Publish(events.KindExtractionFinished, events.ExtractionFinished{
		DownloadID: record.ID,
		DestPath:   dest,
		Err:        err,
	})
	if err != nil {
		t.logger.Error("extraction failed",
			logging.Int64(logging.FieldDownload, record.ID),
			logging.String("archive", record.SavePath),
			logging.Error(err),
		)
		return err
	}

	record.ExtractedPath = dest
	t.logger.Info("extraction finished",
		logging.Int64(logging.FieldDownload, record.ID),
		logging.String("dest", dest),
	)
	return nil
}

// graduate moves a completed, extracted download into the library and removes
// it from the download list.
func (t *Tracker) graduate(ctx context.Context, record *Record, wasArchive bool) error {
	item, err := t.library.Add(ctx, libraryItem(record, wasArchive, t.cfg.KeepArchives))
	if err != nil {
		return fmt.Errorf("graduate download %d: %w", record.ID, err)
	}

	if err := t.store.Remove(ctx, record.ID); err != nil {
		return err
	}

	if wasArchive && !t.cfg.KeepArchives {
		if err := os.Remove(record.SavePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			t.logger.Warn("archive cleanup failed",
				logging.Int64(logging.FieldDownload, record.ID),
				logging.String("archive", record.SavePath),
				logging.Error(err),
			)
		}
	}

	t.logger.Info("download graduated to library",
		logging.Int64(logging.FieldDownload, record.ID),
		logging.Int64("item_id", item.ID),
		logging.String("title", item.Title),
	)
	t.hub.Publish(events.KindLibraryAdded, events.LibraryAdded{
		ItemID:        item.ID,
		Title:         item.Title,
		ExtractedPath: item.ExtractedPath,
	})
	if err := t.notifier.NotifyDownloadCompleted(ctx, item.Title); err != nil {
		t.logger.Warn("notification failed", logging.Error(err))
	}
	return nil
}

// HandleError marks a download failed. Errors for unknown or terminal records
// are stale and silently dropped.
func (t *Tracker) HandleError(ctx context.Context, id int64, message string) error {
	mu := t.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	record, err := t.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil || record.Status.IsTerminal() {
		return nil
	}

	record.SetFailed(message)
	if err := t.store.Update(ctx, record); err != nil {
		return err
	}

	t.logger.Warn("download failed",
		logging.Int64(logging.FieldDownload, id),
		logging.String("message", message),
	)
	t.hub.Publish(events.KindDownloadFailed, events.DownloadFailed{ID: id, Message: message})
	return nil
}

// Cancel marks a download cancelled locally and asks the facility to stop it
// on a best-effort basis. Cancelling a terminal record is a no-op.
func (t *Tracker) Cancel(ctx context.Context, id int64) error {
	mu := t.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	record, err := t.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil || record.Status.IsTerminal() {
		return nil
	}

	t.facilityMu.RLock()
	facility := t.facility
	t.facilityMu.RUnlock()
	if facility != nil {
		if err := facility.Cancel(ctx, id); err != nil {
			t.logger.Warn("facility cancel failed",
				logging.Int64(logging.FieldDownload, id),
				logging.Error(err),
			)
		}
	}

	record.Status = StatusCancelled
	record.Speed = 0
	record.IsExtracting = false
	if err := t.store.Update(ctx, record); err != nil {
		return err
	}

	t.logger.Info("download cancelled", logging.Int64(logging.FieldDownload, id))
	t.hub.Publish(events.KindDownloadCancelled, events.DownloadCancelled{ID: id})
	return nil
}

// ReExtract unpacks a library item's retained archive again, updating the
// item's extracted path if the archive name implies a different destination.
func (t *Tracker) ReExtract(ctx context.Context, itemID int64) error {
	item, err := t.library.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("library item %d not found", itemID)
	}
	if item.ArchivePath == "" {
		return ErrArchiveMissing
	}
	exists, err := t.library.ArchiveExists(ctx, itemID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrArchiveMissing
	}

	if err := t.library.SetReExtracting(ctx, itemID, true); err != nil {
		return err
	}
	defer func() {
		if err := t.library.SetReExtracting(ctx, itemID, false); err != nil {
			t.logger.Warn("clear re-extracting flag failed",
				logging.Int64("item_id", itemID),
				logging.Error(err),
			)
		}
	}()

	dest := archives.DestinationPath(item.ArchivePath)
	t.hub.Publish(events.KindExtractionStarted, events.ExtractionStarted{
		ArchivePath: item.ArchivePath,
		DestPath:    dest,
	})
	err = t.extractor.Extract(ctx, item.ArchivePath, dest)
	t.hub.Publish(events.KindExtractionFinished, events.ExtractionFinished{
		DestPath: dest,
		Err:      err,
	})
	if err != nil {
		t.notifyExtractionFailed(ctx, item.Title, err)
		return fmt.Errorf("re-extract library item %d: %w", itemID, err)
	}

	if dest != item.ExtractedPath {
		item.ExtractedPath = dest
		if err := t.library.Update(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) notifyExtractionFailed(ctx context.Context, name string, cause error) {
	if err := t.notifier.NotifyExtractionFailed(ctx, name, cause); err != nil {
		t.logger.Warn("notification failed", logging.Error(err))
	}
}
