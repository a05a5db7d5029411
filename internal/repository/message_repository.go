package repository

import (
	"context"
	"database/sql"

	"github.com/edulink/tutorlink/internal/model"
)

// MessageRepo provides access to the append-only `messages` table.
// Content rows are immutable once written; the only update path is
// MarkReadFrom, which flips is_read for the receiver. The auto-increment
// id doubles as the ordering key, so "latest" queries can use MAX(id)
// instead of comparing timestamps that may collide.
type MessageRepo struct{ DB *sql.DB }

// NewMessageRepo returns a MessageRepo bound to the given database.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{DB: db} }

// Create inserts a message and returns it with the generated id and the
// DB-assigned creation timestamp populated.
func (r *MessageRepo) Create(ctx context.Context, senderID, receiverID uint64, content string) (model.Message, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO messages (sender_id, receiver_id, content) VALUES (?,?,?)",
		senderID, receiverID, content)
	if err != nil {
		return model.Message{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Message{}, err
	}
	var m model.Message
	err = r.DB.QueryRowContext(ctx,
		"SELECT id, sender_id, receiver_id, content, is_read, created_at FROM messages WHERE id=?",
		id).Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsRead, &m.CreatedAt)
	if err != nil {
		return model.Message{}, err
	}
	return m, nil
}

// ListBetween returns the most recent `limit` messages exchanged between
// the two users in chronological order. The inner query selects the
// newest rows, the outer one restores ascending order for display.
func (r *MessageRepo) ListBetween(ctx context.Context, userID, counterpartyID uint64, limit int) ([]model.Message, error) {
	const q = `SELECT id, sender_id, receiver_id, content, is_read, created_at FROM (
	               SELECT id, sender_id, receiver_id, content, is_read, created_at
	               FROM messages
	               WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
	               ORDER BY id DESC
	               LIMIT ?
	           ) recent ORDER BY id ASC`
	rows, err := r.DB.QueryContext(ctx, q, userID, counterpartyID, counterpartyID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Message, 0, limit)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkReadFrom marks every unread message sent by counterpartyID to
// receiverID as read and returns how many rows changed. The is_read flag
// is owned exclusively by the receiver, so no coordination with the
// sender path is needed.
func (r *MessageRepo) MarkReadFrom(ctx context.Context, receiverID, counterpartyID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE messages SET is_read = 1 WHERE receiver_id = ? AND sender_id = ? AND is_read = 0",
		receiverID, counterpartyID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LatestByCounterparty returns, for every counterparty the user has
// exchanged at least one message with, the most recent message in that
// thread. MAX(id) picks the winner because ids are monotonic, which also
// resolves same-timestamp inserts deterministically.
func (r *MessageRepo) LatestByCounterparty(ctx context.Context, userID uint64) ([]model.MessageDigest, error) {
	const q = `SELECT m.id,
	                  CASE WHEN m.sender_id = ? THEN m.receiver_id ELSE m.sender_id END,
	                  m.content, m.created_at
	           FROM messages m
	           JOIN (
	               SELECT CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS counterparty,
	                      MAX(id) AS max_id
	               FROM messages
	               WHERE sender_id = ? OR receiver_id = ?
	               GROUP BY counterparty
	           ) latest ON latest.max_id = m.id`
	rows, err := r.DB.QueryContext(ctx, q, userID, userID, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.MessageDigest
	for rows.Next() {
		var d model.MessageDigest
		if err := rows.Scan(&d.MessageID, &d.CounterpartyID, &d.Content, &d.SentAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadByCounterparty returns a map from counterparty id to the number
// of unread messages that counterparty has sent to the user.
func (r *MessageRepo) UnreadByCounterparty(ctx context.Context, userID uint64) (map[uint64]int, error) {
	const q = `SELECT sender_id, COUNT(*)
	           FROM messages
	           WHERE receiver_id = ? AND is_read = 0
	           GROUP BY sender_id`
	rows, err := r.DB.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]int)
	for rows.Next() {
		var sender uint64
		var n int
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, err
		}
		out[sender] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
