package gameconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"gamedock/internal/storage"
)

// Config holds the launch settings for one library item, keyed by its ID.
type Config struct {
	GameID         int64
	ExecutablePath string
	UseWine        bool
	Args           []string
	// Locale is a normalized BCP 47 tag, or empty for the host default.
	Locale      string
	Engine      string
	GameVersion string
	LastPlayed  *time.Time
	PlayTime    time.Duration
	UpdatedAt   time.Time
}

// Store persists game configs in SQLite.
type Store struct {
	db *storage.DB
}

// NewStore wraps the shared database.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

const configColumns = `game_id, executable_path, use_wine, args_json, locale,
	engine, game_version, last_played, play_time_seconds, updated_at`

// Load fetches the config for a game, returning a zero-valued default when
// none has been saved yet.
func (s *Store) Load(ctx context.Context, gameID int64) (*Config, error) {
	row := s.db.QueryRow(ctx, `SELECT `+configColumns+` FROM game_configs WHERE game_id = ?`, gameID)
	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return &Config{GameID: gameID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load game config: %w", err)
	}
	return cfg, nil
}

// Save upserts the config. The locale is normalized before storage; an
// unparseable locale is rejected.
func (s *Store) Save(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.GameID == 0 {
		return errors.New("game id required")
	}

	locale, err := NormalizeLocale(cfg.Locale)
	if err != nil {
		return err
	}
	cfg.Locale = locale

	argsJSON, err := encodeArgs(cfg.Args)
	if err != nil {
		return err
	}

	cfg.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecRetry(
		ctx,
		`INSERT INTO game_configs (`+configColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(game_id) DO UPDATE SET
             executable_path = excluded.executable_path,
             use_wine = excluded.use_wine,
             args_json = excluded.args_json,
             locale = excluded.locale,
             engine = excluded.engine,
             game_version = excluded.game_version,
             updated_at = excluded.updated_at`,
		cfg.GameID,
		nullableString(cfg.ExecutablePath),
		boolToInt(cfg.UseWine),
		nullableString(argsJSON),
		nullableString(cfg.Locale),
		nullableString(cfg.Engine),
		nullableString(cfg.GameVersion),
		nullableTime(cfg.LastPlayed),
		int64(cfg.PlayTime/time.Second),
		cfg.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save game config: %w", err)
	}
	return nil
}

// RecordSession adds a finished session's duration to the accumulated play
// time and stamps the last played time. Launch settings are left untouched.
func (s *Store) RecordSession(ctx context.Context, gameID int64, endedAt time.Time, duration time.Duration) error {
	if duration < 0 {
		duration = 0
	}
	seconds := int64(duration / time.Second)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	ended := endedAt.UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecRetry(
		ctx,
		`INSERT INTO game_configs (game_id, last_played, play_time_seconds, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(game_id) DO UPDATE SET
             last_played = excluded.last_played,
             play_time_seconds = game_configs.play_time_seconds + excluded.play_time_seconds,
             updated_at = excluded.updated_at`,
		gameID,
		ended,
		seconds,
		now,
	)
	if err != nil {
		return fmt.Errorf("record game session: %w", err)
	}
	return nil
}

// Delete removes the config for a game, if any.
func (s *Store) Delete(ctx context.Context, gameID int64) error {
	if err := s.db.ExecNoResult(ctx, `DELETE FROM game_configs WHERE game_id = ?`, gameID); err != nil {
		return fmt.Errorf("delete game config: %w", err)
	}
	return nil
}

// NormalizeLocale canonicalizes a BCP 47 tag ("ja_JP" becomes "ja-JP"). An
// empty input stays empty; garbage is an error.
func NormalizeLocale(locale string) (string, error) {
	trimmed := strings.TrimSpace(locale)
	if trimmed == "" {
		return "", nil
	}
	tag, err := language.Parse(strings.ReplaceAll(trimmed, "_", "-"))
	if err != nil {
		return "", fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return tag.String(), nil
}

func encodeArgs(args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode launch args: %w", err)
	}
	return string(data), nil
}

func decodeArgs(argsJSON string) ([]string, error) {
	if argsJSON == "" {
		return nil, nil
	}
	var args []string
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, fmt.Errorf("decode launch args: %w", err)
	}
	return args, nil
}

func scanConfig(scanner interface{ Scan(dest ...any) error }) (*Config, error) {
	var (
		cfg         Config
		executable  sql.NullString
		useWine     int64
		argsJSON    sql.NullString
		locale      sql.NullString
		engine      sql.NullString
		gameVersion sql.NullString
		lastPlayed  sql.NullString
		playSeconds int64
		updatedAt   string
	)
	if err := scanner.Scan(
		&cfg.GameID,
		&executable,
		&useWine,
		&argsJSON,
		&locale,
		&engine,
		&gameVersion,
		&lastPlayed,
		&playSeconds,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	cfg.ExecutablePath = executable.String
	cfg.UseWine = useWine != 0
	args, err := decodeArgs(argsJSON.String)
	if err != nil {
		return nil, err
	}
	cfg.Args = args
	cfg.Locale = locale.String
	cfg.Engine = engine.String
	cfg.GameVersion = gameVersion.String
	if lastPlayed.Valid && lastPlayed.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, lastPlayed.String); err == nil {
			cfg.LastPlayed = &t
		}
	}
	cfg.PlayTime = time.Duration(playSeconds) * time.Second
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		cfg.UpdatedAt = t
	}
	return &cfg, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}
