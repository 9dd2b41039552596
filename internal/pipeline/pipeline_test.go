package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gamedock/internal/downloads"
	"gamedock/internal/logging"
	"gamedock/internal/testsupport"
)

type fakeFacility struct {
	mu        sync.Mutex
	started   []func(id int64, filename, url, savePath string, totalBytes int64)
	progress  []func(id, downloadedBytes, totalBytes, speed int64)
	completed []func(id int64, savePath string)
	failed    []func(id int64, message string)
	cancelled []int64
}

func (f *fakeFacility) Cancel(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeFacility) OnStarted(fn func(int64, string, string, string, int64)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, fn)
	index := len(f.started) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.started[index] = nil
	}
}

func (f *fakeFacility) OnProgress(fn func(int64, int64, int64, int64)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, fn)
	index := len(f.progress) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.progress[index] = nil
	}
}

func (f *fakeFacility) OnCompleted(fn func(int64, string)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, fn)
	index := len(f.completed) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.completed[index] = nil
	}
}

func (f *fakeFacility) OnError(fn func(int64, string)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, fn)
	index := len(f.failed) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.failed[index] = nil
	}
}

func (f *fakeFacility) emitStarted(id int64, filename, savePath string, total int64) {
	f.mu.Lock()
	fns := append([]func(int64, string, string, string, int64){}, f.started...)
	f.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			fn(id, filename, "", savePath, total)
		}
	}
}

func (f *fakeFacility) liveStartedHandlers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, fn := range f.started {
		if fn != nil {
			count++
		}
	}
	return count
}

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(testsupport.NewConfig(t), logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})
	return p
}

func TestNewHoldsSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := New(cfg, logging.NewNop()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := first.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New after Close: %v", err)
	}
	_ = second.Close(ctx)
}

func TestNewRecoversInterruptedDownloads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	p, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	record := &downloads.Record{
		ID:        1,
		Filename:  "game.zip",
		Status:    downloads.StatusDownloading,
		StartTime: time.Now().UTC(),
	}
	if err := p.Downloads.Insert(ctx, record); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := p.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p, err = New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p.Close(ctx)

	got, err := p.Downloads.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != downloads.StatusFailed {
		t.Fatalf("status = %s, want failed after restart", got.Status)
	}
	if got.ErrorMessage != downloads.InterruptedMessage {
		t.Fatalf("error message = %q", got.ErrorMessage)
	}
}

func TestBindFacilityRoutesEvents(t *testing.T) {
	p := newPipeline(t)
	facility := &fakeFacility{}
	p.BindFacility(facility)

	facility.emitStarted(10, "game.zip", "/dl/game.zip", 500)

	record, err := p.Downloads.GetByID(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if record == nil || record.Status != downloads.StatusPending {
		t.Fatalf("record = %+v", record)
	}
}

func TestRebindDisposesPreviousHandlers(t *testing.T) {
	p := newPipeline(t)
	facility := &fakeFacility{}

	p.BindFacility(facility)
	p.BindFacility(facility)

	if live := facility.liveStartedHandlers(); live != 1 {
		t.Fatalf("live started handlers = %d, want 1", live)
	}

	// An event after rebinding is handled exactly once.
	facility.emitStarted(3, "a.zip", "/dl/a.zip", 100)
	records, err := p.Downloads.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}

	p.BindFacility(nil)
	if live := facility.liveStartedHandlers(); live != 0 {
		t.Fatalf("live handlers after unbind = %d", live)
	}
}
