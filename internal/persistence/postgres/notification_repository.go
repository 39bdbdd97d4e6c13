package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/schedule/internal/domain"
	"example.com/schedule/internal/events"
)

const notificationColumns = `notification_id, user_id, message, to_char(send_time, 'YYYY-MM-DD HH24:MI:SS'), type, is_read, created_at`

// NotificationRepository provides Postgres-backed persistence for notifications.
type NotificationRepository struct {
	pool *pgxpool.Pool
	opts options
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool, opts ...Option) *NotificationRepository {
	return &NotificationRepository{pool: pool, opts: buildOptions(opts)}
}

// Insert appends an unread notification. A row that collides with the
// reminder unique index is not written and domain.ErrDuplicateNotification is returned.
func (r *NotificationRepository) Insert(ctx context.Context, userID int64, message, sendTime, notificationType string) (*domain.Notification, error) {
	const stmt = `WITH inserted AS (
            INSERT INTO notifications (user_id, message, send_time, type)
            VALUES ($1, $2, $3::timestamp, $4)
            ON CONFLICT (user_id, send_time, message, type) DO NOTHING
            RETURNING *
        ), event AS (
            INSERT INTO schedule_outbox (user_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
            SELECT user_id, 'notification', notification_id, $5, $6, user_id::text,
                   jsonb_build_object(
                       'notification_id', notification_id,
                       'user_id', user_id,
                       'message', message,
                       'send_time', to_char(send_time, 'YYYY-MM-DD HH24:MI:SS'),
                       'type', type,
                       'occurred_at', created_at)
              FROM inserted
             WHERE $7::boolean
        )
        SELECT ` + notificationColumns + ` FROM inserted`

	row := r.pool.QueryRow(ctx, stmt,
		userID, message, sendTime, notificationType,
		events.TypeReminderCreated,
		events.TopicFor(events.TypeReminderCreated),
		r.opts.publishEvents,
	)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDuplicateNotification
		}
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return &n, nil
}

// ListDue returns unread notifications with send_time at or before now.
func (r *NotificationRepository) ListDue(ctx context.Context, now string) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + `
        FROM notifications
        WHERE send_time <= $1::timestamp AND is_read = FALSE
        ORDER BY send_time ASC, notification_id ASC`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("query due notifications: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// MarkRead flags the notification as read. Ownership is not checked here.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID int64) error {
	if _, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE notification_id = $1`, notificationID); err != nil {
		return fmt.Errorf("mark notification %d read: %w", notificationID, err)
	}
	return nil
}

// FindExisting returns the first notification matching the reminder key, or nil.
func (r *NotificationRepository) FindExisting(ctx context.Context, userID int64, sendTime, message, notificationType string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + `
        FROM notifications
        WHERE user_id = $1 AND send_time = $2::timestamp AND message = $3 AND type = $4
        ORDER BY notification_id
        LIMIT 1`

	n, err := scanNotification(r.pool.QueryRow(ctx, query, userID, sendTime, message, notificationType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find existing notification: %w", err)
	}
	return &n, nil
}

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var n domain.Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Message, &n.SendTime, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
		return domain.Notification{}, err
	}
	return n, nil
}
