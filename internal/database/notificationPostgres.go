package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/poro/notify-engine/internal/entity"

	_ "github.com/lib/pq"
)

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = `id, user_id, type, channels, status, priority, scheduled_at,
	sent_at, delivered_at, read_at, delivery_attempts, last_attempt_at, error_message,
	rendered_payload, failed_channels, metadata, created_at, updated_at`

func (r *notificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	channels, payload, failed, metadata, err := marshalNotificationFields(n)
	if err != nil {
		return err
	}

	query := `INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.Type, channels, n.Status, n.Priority, n.ScheduledAt,
		n.SentAt, n.DeliveredAt, n.ReadAt, n.DeliveryAttempts, n.LastAttemptAt,
		nullableString(n.ErrorMessage), payload, failed, metadata, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification %s: %w", id, err)
	}
	return n, nil
}

func (r *notificationRepository) Update(ctx context.Context, n *entity.Notification) error {
	channels, payload, failed, metadata, err := marshalNotificationFields(n)
	if err != nil {
		return err
	}

	n.UpdatedAt = time.Now()

	query := `UPDATE notifications SET
		channels = $2, status = $3, priority = $4, scheduled_at = $5, sent_at = $6,
		delivered_at = $7, read_at = $8, delivery_attempts = $9, last_attempt_at = $10,
		error_message = $11, rendered_payload = $12, failed_channels = $13,
		metadata = $14, updated_at = $15
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		n.ID, channels, n.Status, n.Priority, n.ScheduledAt, n.SentAt,
		n.DeliveredAt, n.ReadAt, n.DeliveryAttempts, n.LastAttemptAt,
		nullableString(n.ErrorMessage), payload, failed, metadata, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update notification %s: %w", n.ID, err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return entity.ErrNotificationNotFound
	}
	return nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications for user %s: %w", userID, err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}

func (r *notificationRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE status = 'failed' AND last_attempt_at IS NOT NULL AND last_attempt_at < $1
		ORDER BY last_attempt_at ASC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("find retryable notifications: %w", err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*entity.Notification, error) {
	var (
		n            entity.Notification
		channels     []byte
		payload      []byte
		failed       []byte
		metadata     []byte
		errorMessage sql.NullString
	)

	err := row.Scan(
		&n.ID, &n.UserID, &n.Type, &channels, &n.Status, &n.Priority, &n.ScheduledAt,
		&n.SentAt, &n.DeliveredAt, &n.ReadAt, &n.DeliveryAttempts, &n.LastAttemptAt,
		&errorMessage, &payload, &failed, &metadata, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.ErrorMessage = errorMessage.String

	if err := json.Unmarshal(channels, &n.Channels); err != nil {
		return nil, fmt.Errorf("unmarshal channels: %w", err)
	}
	if err := json.Unmarshal(payload, &n.RenderedPayload); err != nil {
		return nil, fmt.Errorf("unmarshal rendered payload: %w", err)
	}
	if err := json.Unmarshal(failed, &n.FailedChannels); err != nil {
		return nil, fmt.Errorf("unmarshal failed channels: %w", err)
	}
	if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return &n, nil
}

func collectNotifications(rows *sql.Rows) ([]*entity.Notification, error) {
	var notifications []*entity.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func marshalNotificationFields(n *entity.Notification) (channels, payload, failed, metadata []byte, err error) {
	if channels, err = json.Marshal(n.Channels); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal channels: %w", err)
	}
	if payload, err = json.Marshal(n.RenderedPayload); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal rendered payload: %w", err)
	}
	if n.FailedChannels == nil {
		failed = []byte("[]")
	} else if failed, err = json.Marshal(n.FailedChannels); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal failed channels: %w", err)
	}
	if n.Metadata == nil {
		metadata = []byte("{}")
	} else if metadata, err = json.Marshal(n.Metadata); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return channels, payload, failed, metadata, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
