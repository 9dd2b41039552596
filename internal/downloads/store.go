package downloads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gamedock/internal/storage"
)

// Store persists download records in SQLite.
type Store struct {
	db *storage.DB
}

// NewStore wraps the shared database.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

const recordColumns = `id, filename, url, save_path, status, progress,
	downloaded_bytes, total_bytes, speed, start_time, end_time, is_extracting,
	extracted_path, error_message, article_title, cover_image, engine,
	game_version, created_at, updated_at`

// Insert stores a new record. The ID comes from the download facility.
func (s *Store) Insert(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	_, err := s.db.ExecRetry(
		ctx,
		`INSERT INTO download_records (`+recordColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Filename,
		nullableString(record.URL),
		nullableString(record.SavePath),
		record.Status,
		record.Progress,
		record.DownloadedBytes,
		record.TotalBytes,
		record.Speed,
		nullableTime(&record.StartTime),
		nullableTime(record.EndTime),
		boolToInt(record.IsExtracting),
		nullableString(record.ExtractedPath),
		nullableString(record.ErrorMessage),
		nullableString(record.Metadata.ArticleTitle),
		nullableString(record.Metadata.CoverImage),
		nullableString(record.Metadata.Engine),
		nullableString(record.Metadata.GameVersion),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert download record: %w", err)
	}
	return nil
}

// GetByID fetches a record by facility identifier. Missing records return nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM download_records WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get download record: %w", err)
	}
	return record, nil
}

// List returns all records ordered by creation time, newest first.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.Query(ctx, `SELECT `+recordColumns+` FROM download_records ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list download records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan download record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Update persists the full state of an existing record.
func (s *Store) Update(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	record.UpdatedAt = time.Now().UTC()
	if err := s.db.ExecNoResult(
		ctx,
		`UPDATE download_records
         SET filename = ?, url = ?, save_path = ?, status = ?, progress = ?,
             downloaded_bytes = ?, total_bytes = ?, speed = ?, start_time = ?,
             end_time = ?, is_extracting = ?, extracted_path = ?, error_message = ?,
             article_title = ?, cover_image = ?, engine = ?, game_version = ?,
             updated_at = ?
         WHERE id = ?`,
		record.Filename,
		nullableString(record.URL),
		nullableString(record.SavePath),
		record.Status,
		record.Progress,
		record.DownloadedBytes,
		record.TotalBytes,
		record.Speed,
		nullableTime(&record.StartTime),
		nullableTime(record.EndTime),
		boolToInt(record.IsExtracting),
		nullableString(record.ExtractedPath),
		nullableString(record.ErrorMessage),
		nullableString(record.Metadata.ArticleTitle),
		nullableString(record.Metadata.CoverImage),
		nullableString(record.Metadata.Engine),
		nullableString(record.Metadata.GameVersion),
		record.UpdatedAt.Format(time.RFC3339Nano),
		record.ID,
	); err != nil {
		return fmt.Errorf("update download record: %w", err)
	}
	return nil
}

// Remove deletes a record.
func (s *Store) Remove(ctx context.Context, id int64) error {
	if err := s.db.ExecNoResult(ctx, `DELETE FROM download_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove download record: %w", err)
	}
	return nil
}

// Clear deletes every record.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.db.ExecNoResult(ctx, `DELETE FROM download_records`); err != nil {
		return fmt.Errorf("clear download records: %w", err)
	}
	return nil
}

// RecoverInterrupted rewrites every non-terminal record to failed with the
// fixed interrupted message. Called once at startup; downloads cannot resume
// across restarts.
func (s *Store) RecoverInterrupted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecRetry(
		ctx,
		`UPDATE download_records
         SET status = ?, error_message = ?, speed = 0, is_extracting = 0, updated_at = ?
         WHERE status IN (?, ?)`,
		StatusFailed,
		InterruptedMessage,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusPending,
		StatusDownloading,
	)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted downloads: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(1) FROM download_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("download stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner rowScanner) (*Record, error) {
	var (
		record       Record
		url          sql.NullString
		savePath     sql.NullString
		startTime    sql.NullString
		endTime      sql.NullString
		isExtracting int64
		extracted    sql.NullString
		errorMessage sql.NullString
		articleTitle sql.NullString
		coverImage   sql.NullString
		engine       sql.NullString
		gameVersion  sql.NullString
		createdAt    string
		updatedAt    string
	)
	if err := scanner.Scan(
		&record.ID,
		&record.Filename,
		&url,
		&savePath,
		&record.Status,
		&record.Progress,
		&record.DownloadedBytes,
		&record.TotalBytes,
		&record.Speed,
		&startTime,
		&endTime,
		&isExtracting,
		&extracted,
		&errorMessage,
		&articleTitle,
		&coverImage,
		&engine,
		&gameVersion,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	record.URL = url.String
	record.SavePath = savePath.String
	record.IsExtracting = isExtracting != 0
	record.ExtractedPath = extracted.String
	record.ErrorMessage = errorMessage.String
	record.Metadata = Metadata{
		ArticleTitle: articleTitle.String,
		CoverImage:   coverImage.String,
		Engine:       engine.String,
		GameVersion:  gameVersion.String,
	}
	record.StartTime = parseTime(startTime.String)
	if endTime.Valid && endTime.String != "" {
		t := parseTime(endTime.String)
		record.EndTime = &t
	}
	record.CreatedAt = parseTime(createdAt)
	record.UpdatedAt = parseTime(updatedAt)
	return &record, nil
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
