package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/edulink/tutorlink/internal/model"
)

// NotificationRepo persists notifications written by the queue consumer
// and serves the read endpoints. EventID carries the publisher's
// idempotency key: the UNIQUE constraint on it turns AMQP redeliveries
// into no-ops, which is what makes at-least-once delivery safe here.
type NotificationRepo struct{ DB *sql.DB }

// NewNotificationRepo returns a NotificationRepo bound to the database.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

// Insert stores a notification row. Replayed events (duplicate event_id)
// return nil without writing anything.
func (r *NotificationRepo) Insert(ctx context.Context, n *model.Notification) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO notifications (event_id, user_id, type, title, message, action_url, metadata) VALUES (?,?,?,?,?,?,?)",
		n.EventID, n.UserID, n.Type, n.Title, n.Message, n.ActionURL, n.Metadata)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return nil // duplicate event_id: already delivered
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// ListForUser returns the user's notifications, newest first, capped at
// limit rows.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID uint64, limit int) ([]model.Notification, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, event_id, user_id, type, title, message, action_url, metadata, is_read, created_at FROM notifications WHERE user_id = ? ORDER BY id DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Notification, 0, limit)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.EventID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.ActionURL, &n.Metadata, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkAllRead flags every unread notification for the user as read and
// returns the number of rows changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
