package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"gamedock/internal/logging"
	"gamedock/internal/storage"
)

// ErrNoArchive indicates the item retains no original archive.
var ErrNoArchive = errors.New("no archive retained for library item")

// Store persists library items in SQLite and performs the disk operations
// attached to them.
type Store struct {
	db       *storage.DB
	coverDir string
	client   *http.Client
	logger   *slog.Logger
}

// Option configures optional Store behavior.
type Option func(*Store)

// WithHTTPClient overrides the client used for cover image fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) {
		if client != nil {
			s.client = client
		}
	}
}

// NewStore wraps the shared database. coverDir may be empty to disable cover
// caching.
func NewStore(db *storage.DB, coverDir string, logger *slog.Logger, opts ...Option) *Store {
	store := &Store{
		db:       db,
		coverDir: coverDir,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logging.NewComponentLogger(logger, "library"),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

const itemColumns = `id, title, cover_image, local_cover_image, extracted_path,
	archive_path, engine, game_version, added_at, last_played_at, is_favorite,
	is_reextracting, updated_at`

// Add inserts a new item. Adding an item whose extractedPath is already held
// by another item is a silent no-op that returns the existing item. A remote
// cover image is cached locally on a best-effort basis.
func (s *Store) Add(ctx context.Context, item Item) (*Item, error) {
	if item.ExtractedPath == "" {
		return nil, errors.New("extracted path required")
	}

	existing, err := s.GetByExtractedPath(ctx, item.ExtractedPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	if item.ID == 0 {
		item.ID = now.UnixNano()
	}
	item.AddedAt = now
	item.UpdatedAt = now

	if item.CoverImage != "" && s.coverDir != "" {
		local, err := s.cacheCover(ctx, item.ID, item.CoverImage)
		if err != nil {
			s.logger.Warn("cover image cache failed",
				logging.Int64("item_id", item.ID),
				logging.Error(err),
			)
		} else {
			item.LocalCoverImage = local
		}
	}

	_, err = s.db.ExecRetry(
		ctx,
		`INSERT INTO library_items (`+itemColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.Title,
		nullableString(item.CoverImage),
		nullableString(item.LocalCoverImage),
		item.ExtractedPath,
		nullableString(item.ArchivePath),
		nullableString(item.Engine),
		nullableString(item.GameVersion),
		now.Format(time.RFC3339Nano),
		nullableTime(item.LastPlayedAt),
		boolToInt(item.IsFavorite),
		boolToInt(item.IsReExtracting),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert library item: %w", err)
	}
	return &item, nil
}

// GetByID fetches an item by identifier. Missing items return nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM library_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get library item: %w", err)
	}
	return item, nil
}

// GetByExtractedPath fetches an item by its install root. Missing items return nil.
func (s *Store) GetByExtractedPath(ctx context.Context, extractedPath string) (*Item, error) {
	row := s.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM library_items WHERE extracted_path = ?`, extractedPath)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get library item by path: %w", err)
	}
	return item, nil
}

// List returns all items, favorites first, then newest first.
func (s *Store) List(ctx context.Context) ([]*Item, error) {
	rows, err := s.db.Query(ctx, `SELECT `+itemColumns+` FROM library_items ORDER BY is_favorite DESC, added_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list library items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan library item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Update persists the full state of an existing item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if err := s.db.ExecNoResult(
		ctx,
		`UPDATE library_items
         SET title = ?, cover_image = ?, local_cover_image = ?, extracted_path = ?,
             archive_path = ?, engine = ?, game_version = ?, last_played_at = ?,
             is_favorite = ?, is_reextracting = ?, updated_at = ?
         WHERE id = ?`,
		item.Title,
		nullableString(item.CoverImage),
		nullableString(item.LocalCoverImage),
		item.ExtractedPath,
		nullableString(item.ArchivePath),
		nullableString(item.Engine),
		nullableString(item.GameVersion),
		nullableTime(item.LastPlayedAt),
		boolToInt(item.IsFavorite),
		boolToInt(item.IsReExtracting),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	); err != nil {
		return fmt.Errorf("update library item: %w", err)
	}
	return nil
}

// RemoveOptions selects the disk cleanup performed alongside removal.
type RemoveOptions struct {
	DeleteExtracted bool
	DeleteArchive   bool
}

// Remove deletes an item. Disk cleanup failures are logged, never fatal, and
// never block removal from the store.
func (s *Store) Remove(ctx context.Context, id int64, opts RemoveOptions) error {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}

	if err := s.db.ExecNoResult(ctx, `DELETE FROM library_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove library item: %w", err)
	}

	if opts.DeleteExtracted && item.ExtractedPath != "" {
		if err := os.RemoveAll(item.ExtractedPath); err != nil {
			s.logger.Warn("delete extracted folder failed",
				logging.Int64("item_id", id),
				logging.String("path", item.ExtractedPath),
				logging.Error(err),
			)
		}
	}
	if opts.DeleteArchive && item.ArchivePath != "" {
		if err := os.Remove(item.ArchivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("delete archive failed",
				logging.Int64("item_id", id),
				logging.String("path", item.ArchivePath),
				logging.Error(err),
			)
		}
	}
	return nil
}

// ToggleFavorite flips the favorite flag and returns the updated item.
func (s *Store) ToggleFavorite(ctx context.Context, id int64) (*Item, error) {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("library item %d not found", id)
	}
	item.IsFavorite = !item.IsFavorite
	if err := s.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// SetReExtracting marks or unmarks the transient re-extraction flag.
func (s *Store) SetReExtracting(ctx context.Context, id int64, value bool) error {
	if err := s.db.ExecNoResult(
		ctx,
		`UPDATE library_items SET is_reextracting = ?, updated_at = ? WHERE id = ?`,
		boolToInt(value),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("set re-extracting flag: %w", err)
	}
	return nil
}

// SetLastPlayed records the most recent session end for an item.
func (s *Store) SetLastPlayed(ctx context.Context, id int64, at time.Time) error {
	if err := s.db.ExecNoResult(
		ctx,
		`UPDATE library_items SET last_played_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("set last played: %w", err)
	}
	return nil
}

// DeleteArchive removes the retained archive from disk. ArchivePath is cleared
// only when the deletion succeeds.
func (s *Store) DeleteArchive(ctx context.Context, id int64) (*Item, error) {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("library item %d not found", id)
	}
	if item.ArchivePath == "" {
		return nil, ErrNoArchive
	}

	if err := os.Remove(item.ArchivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("delete archive %q: %w", item.ArchivePath, err)
	}

	item.ArchivePath = ""
	if err := s.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// ArchiveExists probes whether the retained archive is still on disk.
func (s *Store) ArchiveExists(ctx context.Context, id int64) (bool, error) {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if item == nil || item.ArchivePath == "" {
		return false, nil
	}
	info, err := os.Stat(item.ArchivePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat archive: %w", err)
	}
	return !info.IsDir(), nil
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item           Item
		coverImage     sql.NullString
		localCover     sql.NullString
		archivePath    sql.NullString
		engine         sql.NullString
		gameVersion    sql.NullString
		addedAt        string
		lastPlayedAt   sql.NullString
		isFavorite     int64
		isReExtracting int64
		updatedAt      string
	)
	if err := scanner.Scan(
		&item.ID,
		&item.Title,
		&coverImage,
		&localCover,
		&item.ExtractedPath,
		&archivePath,
		&engine,
		&gameVersion,
		&addedAt,
		&lastPlayedAt,
		&isFavorite,
		&isReExtracting,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	item.CoverImage = coverImage.String
	item.LocalCoverImage = localCover.String
	item.ArchivePath = archivePath.String
	item.Engine = engine.String
	item.GameVersion = gameVersion.String
	item.AddedAt = parseTime(addedAt)
	if lastPlayedAt.Valid && lastPlayedAt.String != "" {
		t := parseTime(lastPlayedAt.String)
		item.LastPlayedAt = &t
	}
	item.IsFavorite = isFavorite != 0
	item.IsReExtracting = isReExtracting != 0
	item.UpdatedAt = parseTime(updatedAt)
	return &item, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
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
