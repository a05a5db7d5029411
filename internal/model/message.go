package model

import "time"

// Message is one direct message between two users, mapped to the
// `messages` table. Rows are append-only: content never changes and the
// only mutable column is is_read, which moves false→true exactly once,
// set by the receiver. The auto-increment id is the ordering key and
// breaks ties between messages sharing a created_at value.
//
// Fields:
//  ID         – primary key, monotonically increasing.
//  SenderID   – author of the message.
//  ReceiverID – recipient of the message.
//  Content    – message body.
//  IsRead     – whether the receiver has read the message.
//  CreatedAt  – creation timestamp (UTC).
type Message struct {
	ID         uint64    `json:"id"`          // messages.id
	SenderID   uint64    `json:"sender_id"`   // messages.sender_id
	ReceiverID uint64    `json:"receiver_id"` // messages.receiver_id
	Content    string    `json:"content"`     // messages.content
	IsRead     bool      `json:"is_read"`     // messages.is_read
	CreatedAt  time.Time `json:"created_at"`  // messages.created_at
}
