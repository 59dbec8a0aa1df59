package storage

import (
	"context"
	"fmt"

	"expensetracker/internal/core"
)

func (r *SQLiteRepository) CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error) {
	if n.ID == "" {
		n.ID = newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.timestamp()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, kind, message, read, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, string(n.Kind), n.Message, boolToInt(n.Read), formatTime(n.CreatedAt))
	if err != nil {
		return core.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns newest first.
func (r *SQLiteRepository) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]core.Notification, error) {
	query := `SELECT id, user_id, kind, message, read, created_at FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := []core.Notification{}
	for rows.Next() {
		var (
			n               core.Notification
			kind, createdAt string
			read            int
		)
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Message, &read, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Kind = core.NotificationKind(kind)
		n.Read = read != 0
		n.CreatedAt = parseTime(createdAt)
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return checkAffected(res)
}

// MarkAllNotificationsRead returns how many notifications changed state.
func (r *SQLiteRepository) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
