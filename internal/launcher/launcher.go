package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"gamedock/internal/compat"
	"gamedock/internal/config"
	"gamedock/internal/events"
	"gamedock/internal/gameconfig"
	"gamedock/internal/library"
	"gamedock/internal/logging"
	"gamedock/internal/notifications"
)

// seam for tests
var commandContext = exec.CommandContext

var (
	// ErrAlreadyRunning is returned when a launch is requested for a game that
	// already has a live process.
	ErrAlreadyRunning = errors.New("game is already running")
	// ErrNotRunning is returned when a stop is requested for a game without a
	// live process.
	ErrNotRunning = errors.New("game is not running")
)

// Options describes how to launch one game.
type Options struct {
	ExecutablePath string
	UseWine        bool
	Args           []string
	// Locale, when set, is exported to the process as LANG/LC_ALL.
	Locale string
}

// Session is a snapshot of one running game process.
type Session struct {
	GameID    int64
	Title     string
	PID       int
	StartedAt time.Time
}

type liveSession struct {
	Session
	cmd    *exec.Cmd
	done   chan struct{}
	cancel context.CancelFunc
}

// Launcher spawns and supervises game processes.
type Launcher struct {
	compat      *compat.Engine
	configs     *gameconfig.Store
	library     *library.Store
	hub         *events.Hub
	notifier    notifications.Service
	logger      *slog.Logger
	wineBinary  string
	stopTimeout time.Duration

	mu      sync.Mutex
	running map[int64]*liveSession
	wg      sync.WaitGroup
}

// New wires a launcher to its collaborators. notifier may be nil.
func New(
	cfg *config.Config,
	engine *compat.Engine,
	configs *gameconfig.Store,
	lib *library.Store,
	hub *events.Hub,
	notifier notifications.Service,
	logger *slog.Logger,
) *Launcher {
	if notifier == nil {
		notifier = notifications.Noop()
	}
	if hub == nil {
		hub = events.NewHub()
	}
	stopTimeout := 10 * time.Second
	wineBinary := "wine"
	if cfg != nil {
		if cfg.Launcher.StopTimeoutSeconds > 0 {
			stopTimeout = time.Duration(cfg.Launcher.StopTimeoutSeconds) * time.Second
		}
		if strings.TrimSpace(cfg.Launcher.WineBinary) != "" {
			wineBinary = cfg.Launcher.WineBinary
		}
	}
	return &Launcher{
		compat:      engine,
		configs:     configs,
		library:     lib,
		hub:         hub,
		notifier:    notifier,
		logger:      logging.NewComponentLogger(logger, "launcher"),
		wineBinary:  wineBinary,
		stopTimeout: stopTimeout,
		running:     make(map[int64]*liveSession),
	}
}

// Launch spawns the game process and begins supervising it. The executable
// path must be set; a game with a live process cannot be launched again.
func (l *Launcher) Launch(ctx context.Context, gameID int64, opts Options) (*Session, error) {
	executable := strings.TrimSpace(opts.ExecutablePath)
	if executable == "" {
		return nil, errors.New("no executable configured for game")
	}
	if _, err := os.Stat(executable); err != nil {
		return nil, fmt.Errorf("executable: %w", err)
	}

	title := fmt.Sprintf("game %d", gameID)
	if l.library != nil {
		item, err := l.library.GetByID(ctx, gameID)
		if err != nil {
			return nil, err
		}
		if item != nil {
			title = item.Title
		}
	}

	l.mu.Lock()
	if _, exists := l.running[gameID]; exists {
		l.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	// Reserve the slot before the (slow) spawn so two concurrent launches for
	// the same game cannot both pass the check.
	l.running[gameID] = nil
	l.mu.Unlock()

	session, err := l.spawn(gameID, title, executable, opts)
	if err != nil {
		l.mu.Lock()
		delete(l.running, gameID)
		l.mu.Unlock()
		return nil, err
	}

	l.mu.Lock()
	l.running[gameID] = session
	l.mu.Unlock()

	l.logger.Info("game started",
		logging.Int64(logging.FieldGame, gameID),
		logging.String("title", title),
		logging.Int("pid", session.PID),
	)
	l.hub.Publish(events.KindGameStarted, events.GameStarted{GameID: gameID, PID: session.PID})

	l.wg.Add(1)
	go l.monitor(session)

	snapshot := session.Session
	return &snapshot, nil
}

func (l *Launcher) spawn(gameID int64, title, executable string, opts Options) (*liveSession, error) {
	useWine := opts.UseWine && runtime.GOOS != "windows"

	var name string
	var args []string
	if useWine {
		name = l.wineBinary
		args = append([]string{executable}, opts.Args...)
	} else {
		name = executable
		args = opts.Args
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := commandContext(procCtx, name, args...)
	cmd.Dir = filepath.Dir(executable)
	cmd.Env = l.buildEnv(executable, useWine, opts.Locale)
	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start game process: %w", err)
	}

	return &liveSession{
		Session: Session{
			GameID:    gameID,
			Title:     title,
			PID:       cmd.Process.Pid,
			StartedAt: time.Now().UTC(),
		},
		cmd:    cmd,
		done:   make(chan struct{}),
		cancel: cancel,
	}, nil
}

func (l *Launcher) buildEnv(executable string, useWine bool, locale string) []string {
	env := os.Environ()

	overrides := make(map[string]string)
	if l.compat != nil {
		merged, fired := l.compat.Overrides(executable, compat.Context{UseWine: useWine})
		overrides = merged
		if len(fired) > 0 {
			l.logger.Info("compatibility overrides applied",
				logging.String("executable", executable),
				logging.Any("rules", fired),
			)
		}
	}
	if locale = strings.TrimSpace(locale); locale != "" {
		posix := strings.ReplaceAll(locale, "-", "_") + ".UTF-8"
		overrides["LANG"] = posix
		overrides["LC_ALL"] = posix
	}
	if len(overrides) == 0 {
		return env
	}

	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, key+"="+overrides[key])
	}
	return env
}

// monitor waits for the process to exit, then records the session and
// publishes the outcome.
func (l *Launcher) monitor(session *liveSession) {
	defer l.wg.Done()
	defer session.cancel()

	err := session.cmd.Wait()
	close(session.done)
	endedAt := time.Now().UTC()
	duration := endedAt.Sub(session.StartedAt)

	exitCode := 0
	if session.cmd.ProcessState != nil {
		exitCode = session.cmd.ProcessState.ExitCode()
	}

	l.mu.Lock()
	delete(l.running, session.GameID)
	l.mu.Unlock()

	ctx := context.Background()
	if l.configs != nil {
		if recErr := l.configs.RecordSession(ctx, session.GameID, endedAt, duration); recErr != nil {
			l.logger.Warn("record session failed",
				logging.Int64(logging.FieldGame, session.GameID),
				logging.Error(recErr),
			)
		}
	}
	if l.library != nil {
		if playErr := l.library.SetLastPlayed(ctx, session.GameID, endedAt); playErr != nil {
			l.logger.Warn("set last played failed",
				logging.Int64(logging.FieldGame, session.GameID),
				logging.Error(playErr),
			)
		}
	}

	l.logger.Info("game stopped",
		logging.Int64(logging.FieldGame, session.GameID),
		logging.Duration("duration", duration),
		logging.Int("exit_code", exitCode),
	)
	l.hub.Publish(events.KindGameStopped, events.GameStopped{
		GameID:   session.GameID,
		Duration: duration,
		ExitCode: exitCode,
		Err:      err,
	})
	if notifyErr := l.notifier.NotifyGameSessionEnded(ctx, session.Title, duration); notifyErr != nil {
		l.logger.Warn("notification failed", logging.Error(notifyErr))
	}
}

// Stop terminates a running game: a polite signal first, then a hard kill
// after the stop timeout.
func (l *Launcher) Stop(ctx context.Context, gameID int64) error {
	l.mu.Lock()
	session, ok := l.running[gameID]
	l.mu.Unlock()
	if !ok || session == nil {
		return ErrNotRunning
	}

	if err := terminateProcess(session.cmd); err != nil {
		l.logger.Warn("terminate signal failed",
			logging.Int64(logging.FieldGame, gameID),
			logging.Error(err),
		)
	}

	select {
	case <-session.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(l.stopTimeout):
	}

	l.logger.Warn("game did not exit, killing",
		logging.Int64(logging.FieldGame, gameID),
		logging.Int("pid", session.PID),
	)
	if err := killProcess(session.cmd); err != nil {
		return fmt.Errorf("kill game process: %w", err)
	}

	select {
	case <-session.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the game has a live process.
func (l *Launcher) IsRunning(gameID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	session, ok := l.running[gameID]
	return ok && session != nil
}

// Running returns a snapshot of all live sessions, oldest first.
func (l *Launcher) Running() []Session {
	l.mu.Lock()
	sessions := make([]Session, 0, len(l.running))
	for _, session := range l.running {
		if session != nil {
			sessions = append(sessions, session.Session)
		}
	}
	l.mu.Unlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})
	return sessions
}

// Close stops every running game and waits for the monitors to finish.
func (l *Launcher) Close(ctx context.Context) error {
	l.mu.Lock()
	ids := make([]int64, 0, len(l.running))
	for id := range l.running {
		ids = append(ids, id)
	}
	l.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := l.Stop(ctx, id); err != nil && !errors.Is(err, ErrNotRunning) && firstErr == nil {
			firstErr = err
		}
	}
	l.wg.Wait()
	return firstErr
}
