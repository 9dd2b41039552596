package downloads

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"gamedock/internal/events"
	"gamedock/internal/library"
	"gamedock/internal/logging"
	"gamedock/internal/storage"
)

type stubExtractor struct {
	mu    sync.Mutex
	calls []string
	fail  error
	onRun func(archive, dest string) error
}

func (s *stubExtractor) Extract(_ context.Context, archive, dest string) error {
	s.mu.Lock()
	s.calls = append(s.calls, archive+" -> "+dest)
	s.mu.Unlock()
	if s.onRun != nil {
		return s.onRun(archive, dest)
	}
	return s.fail
}

type stubFacility struct {
	cancelled []int64
	err       error
}

func (s *stubFacility) Cancel(_ context.Context, id int64) error {
	s.cancelled = append(s.cancelled, id)
	return s.err
}

type trackerFixture struct {
	tracker   *Tracker
	store     *Store
	library   *library.Store
	extractor *stubExtractor
	hub       *events.Hub
}

func newTrackerFixture(t *testing.T, cfg TrackerConfig) *trackerFixture {
	t.Helper()
	db, err := storage.OpenPath(filepath.Join(t.TempDir(), "gamedock.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewStore(db)
	lib := library.NewStore(db, "", logging.NewNop())
	extractor := &stubExtractor{}
	hub := events.NewHub()
	tracker := NewTracker(store, lib, extractor, hub, nil, logging.NewNop(), cfg)
	return &trackerFixture{tracker: tracker, store: store, library: lib, extractor: extractor, hub: hub}
}

func TestHandleStartedAttachesPendingMetadataOnce(t *testing.T) {
	fx := newTrackerFixture(t, TrackerConfig{})
	ctx := context.Background()

	fx.tracker.SetPendingMetadata(Metadata{ArticleTitle: "First"})
	fx.tracker.SetPendingMetadata(Metadata{ArticleTitle: "Second"})

	if err := fx.tracker.HandleStarted(ctx, 1, "a.zip", "", "/dl/a.zip", 100); err != nil {
		t.Fatalf("HandleStarted: %v", err)
	}
	if err := fx.tracker.HandleStarted(ctx, 2, "b.zip", "", "/dl/b.zip", 100); err != nil {
		t.Fatalf("HandleStarted: %v", err)
	}

	first, _ := fx.store.GetByID(ctx, 1)
	if first.Metadata.ArticleTitle != "Second" {
		t.Fatalf("first download metadata = %q, want overwritten slot", first.Metadata.ArticleTitle)
	}
	second, _ := fx.store.GetByID(ctx, 2)
	if second.Metadata.ArticleTitle != "" {
		t.Fatalf("slot was not cleared: %q", second.Metadata.ArticleTitle)
	}
}

func TestHandleStartedIsIdempotent(t *testing.T) {
	fx := newTrackerFixture(t, TrackerConfig{})
	ctx := context.Background()

	if err := fx.tracker.HandleStarted(ctx, 1, "a.zip", "", "/dl/a.zip", 100); err != nil {
		t.Fatalf("HandleStarted: %v", err)
	}
	if err := fx.tracker.HandleStarted(ctx, 1, "other.zip", "", "/dl/other.zip", 999); err != nil {
		t.Fatalf("repeated HandleStarted: %v", err)
	}
	record, _ := fx.store.GetByID(ctx, 1)
	if record.Filename != "a.zip" {
		t.Fatalf("duplicate start rewrote record: %q", record.Filename)
	}
}

func TestHandleProgressComputesPercentage(t *testing.T) {
	fx := newTrackerFixture(t, TrackerConfig{})
	ctx := context.Background()

	if err := fx.tracker.HandleStarted(ctx, 1, "game.zip", "", "/dl/game.zip", 1000); err != nil {
		t.Fatalf("HandleStarted: %v", err)
	}
	if err := fx.tracker.HandleProgress(ctx, 1, 500, 1000, 2048); err != nil {
		t.Fatalf("HandleProgress: %v", err)
	}

	record, _ := fx.store.GetByID(ctx, 1)
	if record.Status != StatusDownloading {
		t.Fatalf("status = %s, want downloading", record.Status)
	}
	if record.Progress != 50 {
		t.Fatalf("progress = %v, want 50", record.Progress)
	}
	if record.Speed != 2048 {
		t.Fatalf("speed = %d", record.Speed)
	}
}

func TestHandleProgressZeroTotalYieldsZeroProgress(t *testing.T) {
	fx := newTrackerFixture(t, TrackerConfig{})
	ctx := context.Background()

	if err := fx.tracker.HandleStarted(ctx, 1, "game.zip", "", "/dl/game.zip", 0); err != nil {
		t.Fatalf("HandleStarted: %v", err)
	}
	if err := fx.tracker.HandleProgress(ctx, 1, 500, 0, 0); err != nil {
		t.Fatalf("HandleProgress: %v", err)
	}
	record, _ := fx.store.GetByID(ctx, 1)
	if record.Progress != 0 {
		t.Fatalf("progress = %v, want 0 for unknown total", record.Progress)
	}
}

func TestStaleProgressAfterCancelIsIgnored(t *testing.T) {
	fx := newTrackerFixture(t, TrackerConfig{})
	ctx := context.Background()

	if err := fx.tracker.HandleStarted(ctx, 1, "game.zip", "", "/dl/game.zip", 1000); err != nil {
		t.Fatalf("HandleStarted: %v", err)
	}
	if err := fx.tracker.Cancel(ctx, 1); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := fx.tracker.HandleProgress(ctx, 1, 900, 1000, 10); err != nil {
		t.Fatalf("stale HandleProgress errored: %v", err)
	}

	record, _ := fx.store.GetByID(ctx, 1)
	if record.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", record.Status)
	}
	if record.DownloadedBytes != 0 {
		t.Fatalf("stale progress was applied: %d bytes", record.DownloadedBytes)
	}
}

func TestHandleCompletedArchiveExtractsAndGraduates(t *testing.T) {
	fx := newTrackerFixture(t, TrackerConfig{KeepArchives: true})
	ctx := context.Background()

	dir := t.TempDir()
	archive := filepath.Join(dir, "game.zip")
	if err := os.WriteFile(archive, []byte("PK"), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	var extracting bool
	fx.extractor.onRun = func(_, _ string) error {
		record, err := fx.store.GetByID(ctx, 1)
		if err != nil || record == nil {
			t.Fatalf("record missing mid-extraction: %v", err)
		}
		extracting = record.IsExtracting
		return nil
	}

	var added *events.LibraryAdded
	fx.hub.SubscribeKind(events.KindLibraryAdded, func(e events.Event) {
		payload := e.Payload.(events.LibraryAdded)
		added = &payload
	})

	if err := fx.tracker.HandleStarted(ctx, 1, "game.zip", "", archive, 1000); err != nil {
		t.Fatalf("HandleStarted: %v", err)
	}
	if err := fx.tracker.HandleCompleted(ctx, 1, archive); err != nil {
		t.Fatalf("HandleCompleted: %v", err)
	}

	if !extracting {
		t.Fatal("is_extracting was not set during extraction")
	}
	wantDest := filepath.Join(dir, "game")
	if len(fx.extractor.calls) != 1 || fx.extractor.calls[0] != archive+" -> "+wantDest {
		t.Fatalf("extractor calls = %v", fx.extractor.calls)
	}

	// Graduated: removed from the download list, present in the library.
	if record, _ := fx.store.GetByID(ctx, 1); record != nil {
		t.Fatalf("record still in download list: %+v", record)
	}
	item, err := fx.library.GetByExtractedPath(ctx, wantDest)
	if err != nil {
		t.Fatalf("library lookup: %v", err)
	}
	if item == nil {
		t.Fatal("install missing from library")
	}
	if item.Title != "game" {
		t.Fatalf("title = %q", item.Title)
	}
	if item.ArchivePath != archive {
		t.Fatalf("archive path = %q, want retained archive", item.ArchivePath)
	}
	if added == nil || added.ItemID != item.ID {
		t.Fatalf("library_added event = %+v", added)
	}
	if _, err := os.Stat(archive); err != nil {
		t.Fatalf("retained archive was deleted: %v", err)
	}
}

func TestHandleCompletedDeletesArchiveWhenNotKept(t *testing.T) {
	fx := newTrackerFixture(t, TrackerConfig{KeepArchives: false})
	ctx := context.Background()

	dir := t.TempDir()
	archive := filepath.Join(dir, "game.zip")
	if err := os.WriteFile(archive, []byte("PK"), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	if err := fx.tracker.HandleStarted(ctx, 1, "game.zip", "", archive, 1000); err != nil {
		t.Fatalf("HandleStarted: %v", err)
	}
	if err := fx.tracker.HandleCompleted(ctx, 1, archive); err != nil {
		t.Fatalf("HandleCompleted: %v", err)
	}

	if _, err := os.Stat(archive); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("archive should be deleted: %v", err)
	}
	item, _ := fx.library.GetByExtractedPath(ctx, filepath.Join(dir, "game"))
	if item == nil {
		t.Fatal("install missing from library")
	}
	if item.ArchivePath != "" {
		t.Fatalf("archive path retained despite cleanup: %q", item.ArchivePath)
	}
}

func TestHandleCompletedNonArchiveGraduatesDirectly(t *testing.T) {
	fx := newTrackerFixture(t, TrackerConfig{})
	ctx := context.Background()

	if err := fx.tracker.HandleStarted(ctx, 1, "portable-build", "", "/dl/portable-build", 10); err != nil {
		t.Fatalf("HandleStarted: %v", err)
	}
	if err := fx.tracker.HandleCompleted(ctx, 1, "/dl/portable-build"); err != nil {
		t.Fatalf("HandleCompleted: %v", err)
	}

	if len(fx.extractor.calls) != 0 {
		t.Fatalf("extractor ran for non-archive: %v", fx.extractor.calls)
	}
	item, _ := fx.library.GetByExtractedPath(ctx, "/dl/portable-build")
	if item == nil {
		t.Fatal("non-archive download did not graduate")
	}
}

func TestExtractionFailureLeavesCompletedRecord(t *testing.T) {
	fx := newTrackerFixture(t, TrackerConfig{})
	ctx := context.Background()
	fx.extractor.fail = errors.New("corrupt archive")

	if err := fx.tracker.HandleStarted(ctx, 1, "game.zip", "", "/dl/game.zip", 1000); err != nil {
		t.Fatalf("HandleStarted: %v", err)
	}
	if err := fx.tracker.HandleCompleted(ctx, 1, "/dl/game.zip"); err != nil {
		t.Fatalf("HandleCompleted: %v", err)
	}

	record, _ := fx.store.GetByID(ctx, 1)
	if record == nil {
		t.Fatal("record was removed despite extraction failure")
	}
	if record.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", record.Status)
	}
	if record.ErrorMessage != ExtractionFailedMessage {
		t.Fatalf("error message = %q", record.ErrorMessage)
	}
	if record.IsExtracting {
		t.Fatal("is_extracting left set after failure")
	}
	if items, _ := fx.library.List(ctx); len(items) != 0 {
		t.Fatalf("failed extraction graduated anyway: %d items", len(items))
	}
}

func TestHandleErrorMarksFailed(t *testing.T) {
	fx := newTrackerFixture(t, TrackerConfig{})
	ctx := context.Background()

	if err := fx.tracker.HandleStarted(ctx, 1, "game.zip", "", "/dl/game.zip", 1000); err != nil {
		t.Fatalf("HandleStarted: %v", err)
	}
	if err := fx.tracker.HandleError(ctx, 1, "connection reset"); err != nil {
		t.Fatalf("HandleError: %v", err)
	}

	record, _ := fx.store.GetByID(ctx, 1)
	if record.Status != StatusFailed || record.ErrorMessage != "connection reset" {
		t.Fatalf("record = %+v", record)
	}

	// A late error for a terminal record is dropped.
	if err := fx.tracker.HandleError(ctx, 1, "second error"); err != nil {
		t.Fatalf("stale HandleError: %v", err)
	}
	record, _ = fx.store.GetByID(ctx, 1)
	if record.ErrorMessage != "connection reset" {
		t.Fatalf("stale error overwrote message: %q", record.ErrorMessage)
	}
}

func TestCancelAsksFacilityAndToleratesItsFailure(t *testing.T) {
	fx := newTrackerFixture(t, TrackerConfig{})
	ctx := context.Background()

	facility := &stubFacility{err: errors.New("facility offline")}
	fx.tracker.SetFacility(facility)

	if err := fx.tracker.HandleStarted(ctx, 1, "game.zip", "", "/dl/game.zip", 1000); err != nil {
		t.Fatalf("HandleStarted: %v", err)
	}
	if err := fx.tracker.Cancel(ctx, 1); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if len(facility.cancelled) != 1 || facility.cancelled[0] != 1 {
		t.Fatalf("facility cancels = %v", facility.cancelled)
	}
	record, _ := fx.store.GetByID(ctx, 1)
	if record.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", record.Status)
	}

	// Cancelling again is a no-op, not another facility call.
	if err := fx.tracker.Cancel(ctx, 1); err != nil {
		t.Fatalf("repeat Cancel: %v", err)
	}
	if len(facility.cancelled) != 1 {
		t.Fatalf("terminal cancel reached facility: %v", facility.cancelled)
	}
}

func TestReExtractRequiresArchiveOnDisk(t *testing.T) {
	fx := newTrackerFixture(t, TrackerConfig{})
	ctx := context.Background()

	item, err := fx.library.Add(ctx, library.Item{
		Title:         "Lost",
		ExtractedPath: "/games/lost",
		ArchivePath:   "/nonexistent/lost.zip",
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := fx.tracker.ReExtract(ctx, item.ID); !errors.Is(err, ErrArchiveMissing) {
		t.Fatalf("expected ErrArchiveMissing, got %v", err)
	}
}

func TestReExtractUnpacksRetainedArchive(t *testing.T) {
	fx := newTrackerFixture(t, TrackerConfig{KeepArchives: true})
	ctx := context.Background()

	dir := t.TempDir()
	archive := filepath.Join(dir, "game.zip")
	if err := os.WriteFile(archive, []byte("PK"), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	item, err := fx.library.Add(ctx, library.Item{
		Title:         "Game",
		ExtractedPath: filepath.Join(dir, "game"),
		ArchivePath:   archive,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	var sawFlag bool
	fx.extractor.onRun = func(_, _ string) error {
		got, err := fx.library.GetByID(ctx, item.ID)
		if err != nil || got == nil {
			t.Fatalf("item missing mid-extraction: %v", err)
		}
		sawFlag = got.IsReExtracting
		return nil
	}

	if err := fx.tracker.ReExtract(ctx, item.ID); err != nil {
		t.Fatalf("ReExtract: %v", err)
	}
	if !sawFlag {
		t.Fatal("is_reextracting was not set during extraction")
	}

	got, _ := fx.library.GetByID(ctx, item.ID)
	if got.IsReExtracting {
		t.Fatal("is_reextracting left set after extraction")
	}
	if got.ExtractedPath != filepath.Join(dir, "game") {
		t.Fatalf("extracted path = %q", got.ExtractedPath)
	}
	if len(fx.extractor.calls) != 1 {
		t.Fatalf("extractor calls = %v", fx.extractor.calls)
	}
}
