package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/model"
	"github.com/Veraticus/gastos-must-flow/internal/service"
)

const queueColumns = `id, channel_identity, raw_message, media_url, media_mime_type,
	profile_name, message_sid, status, retry_count, last_error, created_at, processed_at`

// EnqueueMessage stores a new pending item. Missing IDs and timestamps are
// filled in. A repeated non-empty MessageSID yields common.ErrDuplicateEntry.
func (s *SQLiteStorage) EnqueueMessage(ctx context.Context, item *model.QueueItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("%w: queue item", ErrNilParameter)
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if item.Status == "" {
		item.Status = model.QueuePending
	}
	if err := validateQueueItem(item); err != nil {
		return err
	}

	var mediaURL, mediaType string
	if item.Media != nil {
		mediaURL, mediaType = item.Media.URL, item.Media.MimeType
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_items (`+queueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.ChannelIdentity, item.RawMessage, mediaURL, mediaType,
		item.ProfileName, item.MessageSID, item.Status, item.RetryCount, item.LastError,
		item.CreatedAt.UTC(), nullTime(item.ProcessedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: queue item %s", common.ErrDuplicateEntry, item.MessageSID)
		}
		return fmt.Errorf("failed to enqueue message: %w", err)
	}
	return nil
}

// GetQueueItem loads one item. Unknown IDs yield common.ErrNotFound.
func (s *SQLiteStorage) GetQueueItem(ctx context.Context, id string) (*model.QueueItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanQueueItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: queue item %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}
	return item, nil
}

// ClaimQueueItem atomically moves a pending item to processing. It reports
// false when the item is not pending anymore.
func (s *SQLiteStorage) ClaimQueueItem(ctx context.Context, id string, now time.Time) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(id, "id"); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = ?, processed_at = ?
		WHERE id = ? AND status = ?
	`, model.QueueProcessing, now.UTC(), id, model.QueuePending)
	if err != nil {
		return false, fmt.Errorf("failed to claim queue item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check claim result: %w", err)
	}
	return affected == 1, nil
}

// UpdateQueueItem writes back an item's status, retry count and error.
func (s *SQLiteStorage) UpdateQueueItem(ctx context.Context, item *model.QueueItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateQueueItem(item); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = ?, retry_count = ?, last_error = ?, processed_at = ?
		WHERE id = ?
	`, item.Status, item.RetryCount, item.LastError, nullTime(item.ProcessedAt), item.ID)
	if err != nil {
		return fmt.Errorf("failed to update queue item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: queue item %s", common.ErrNotFound, item.ID)
	}
	return nil
}

// ListQueueItems returns items oldest first, optionally filtered by status.
func (s *SQLiteStorage) ListQueueItems(ctx context.Context, filter service.QueueFilter) ([]model.QueueItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
	}

	query := `SELECT ` + queueColumns + ` FROM queue_items`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// RecoverStaleQueueItems returns items stuck in processing since before
// olderThan to pending. Retry counts are left alone.
func (s *SQLiteStorage) RecoverStaleQueueItems(ctx context.Context, olderThan time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = ?
		WHERE status = ? AND processed_at < ?
	`, model.QueuePending, model.QueueProcessing, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to recover stale queue items: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check recovery result: %w", err)
	}
	return int(affected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueItem(row rowScanner) (*model.QueueItem, error) {
	var (
		item        model.QueueItem
		mediaURL    string
		mediaType   string
		processedAt sql.NullTime
	)

	err := row.Scan(
		&item.ID,
		&item.ChannelIdentity,
		&item.RawMessage,
		&mediaURL,
		&mediaType,
		&item.ProfileName,
		&item.MessageSID,
		&item.Status,
		&item.RetryCount,
		&item.LastError,
		&item.CreatedAt,
		&processedAt,
	)
	if err != nil {
		return nil, err
	}

	if mediaURL != "" {
		item.Media = &model.MediaReference{URL: mediaURL, MimeType: mediaType}
	}
	if processedAt.Valid {
		t := processedAt.Time
		item.ProcessedAt = &t
	}
	return &item, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
