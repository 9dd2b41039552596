// Package pipeline is the composition root: it owns the state database, the
// single-instance lock, and the wiring between the download tracker, the
// extractor, the launcher, and the stores. Host shells talk only to this type.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"gamedock/internal/archives"
	"gamedock/internal/compat"
	"gamedock/internal/config"
	"gamedock/internal/downloads"
	"gamedock/internal/events"
	"gamedock/internal/gameconfig"
	"gamedock/internal/launcher"
	"gamedock/internal/library"
	"gamedock/internal/logging"
	"gamedock/internal/notifications"
	"gamedock/internal/storage"
)

// ErrAlreadyRunning is returned when another gamedock process holds the state
// directory lock.
var ErrAlreadyRunning = errors.New("another gamedock instance is already running")

// Facility is the external download engine: a cancellation entry point plus
// event streams, each subscription returning an unsubscribe func.
type Facility interface {
	downloads.Facility
	OnStarted(fn func(id int64, filename, url, savePath string, totalBytes int64)) (unsubscribe func())
	OnProgress(fn func(id, downloadedBytes, totalBytes, speed int64)) (unsubscribe func())
	OnCompleted(fn func(id int64, savePath string)) (unsubscribe func())
	OnError(fn func(id int64, message string)) (unsubscribe func())
}

// Pipeline wires the core components over one shared database.
type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger
	lock   *flock.Flock
	db     *storage.DB

	Hub         *events.Hub
	Downloads   *downloads.Store
	Tracker     *downloads.Tracker
	Library     *library.Store
	GameConfigs *gameconfig.Store
	Launcher    *launcher.Launcher
	Notifier    notifications.Service

	mu     sync.Mutex
	unbind []func()
}

// New opens the state directory, recovers interrupted downloads, and wires
// every component. The returned pipeline holds an exclusive lock on the state
// directory until Close.
func New(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Paths.StateDir, "gamedock.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}

	db, err := storage.Open(cfg)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	log := logging.NewComponentLogger(logger, "pipeline")

	downloadStore := downloads.NewStore(db)
	recovered, err := downloadStore.RecoverInterrupted(context.Background())
	if err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	if recovered > 0 {
		log.Info("recovered interrupted downloads", logging.Int64("count", recovered))
	}

	hub := events.NewHub()
	notifier := notifications.NewService(cfg)
	lib := library.NewStore(db, cfg.Paths.CoverDir, logger)
	gameConfigs := gameconfig.NewStore(db)
	extractor := archives.NewExtractor(cfg, logger)
	engine := compat.NewEngine(logger)

	tracker := downloads.NewTracker(downloadStore, lib, extractor, hub, notifier, logger, downloads.TrackerConfig{
		KeepArchives: cfg.Extraction.KeepArchives,
	})
	launch := launcher.New(cfg, engine, gameConfigs, lib, hub, notifier, logger)

	return &Pipeline{
		cfg:         cfg,
		logger:      log,
		lock:        lock,
		db:          db,
		Hub:         hub,
		Downloads:   downloadStore,
		Tracker:     tracker,
		Library:     lib,
		GameConfigs: gameConfigs,
		Launcher:    launch,
		Notifier:    notifier,
	}, nil
}

// BindFacility attaches the external download engine. Any previous binding is
// disposed first so at most one live handler per stream exists.
func (p *Pipeline) BindFacility(facility Facility) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.unbindLocked()
	if facility == nil {
		p.Tracker.SetFacility(nil)
		return
	}
	p.Tracker.SetFacility(facility)

	handle := func(op string, err error) {
		if err != nil {
			p.logger.Error("facility event handling failed",
				logging.String("op", op),
				logging.Error(err),
			)
		}
	}

	p.unbind = []func(){
		facility.OnStarted(func(id int64, filename, url, savePath string, totalBytes int64) {
			handle("started", p.Tracker.HandleStarted(context.Background(), id, filename, url, savePath, totalBytes))
		}),
		facility.OnProgress(func(id, downloadedBytes, totalBytes, speed int64) {
			handle("progress", p.Tracker.HandleProgress(context.Background(), id, downloadedBytes, totalBytes, speed))
		}),
		facility.OnCompleted(func(id int64, savePath string) {
			handle("completed", p.Tracker.HandleCompleted(context.Background(), id, savePath))
		}),
		facility.OnError(func(id int64, message string) {
			handle("error", p.Tracker.HandleError(context.Background(), id, message))
		}),
	}
}

func (p *Pipeline) unbindLocked() {
	for _, fn := range p.unbind {
		if fn != nil {
			fn()
		}
	}
	p.unbind = nil
}

// DatabasePath returns the state database location.
func (p *Pipeline) DatabasePath() string {
	return p.db.Path()
}

// Close stops running games, detaches the facility, and releases the database
// and instance lock.
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	p.unbindLocked()
	p.mu.Unlock()

	var firstErr error
	if err := p.Launcher.Close(ctx); err != nil {
		firstErr = err
	}
	if err := p.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := p.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
