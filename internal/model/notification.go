package model

import "time"

// Notification type names emitted by the booking lifecycle manager.
const (
	NotifyBookingRequested = "booking_requested"
	NotifyBookingAccepted  = "booking_accepted"
	NotifyBookingRejected  = "booking_rejected"
	NotifyBookingCancelled = "booking_cancelled"
	NotifyBookingCompleted = "booking_completed"
	NotifyReviewReceived   = "review_received"
)

// Notification is a row in the `notifications` table, written by the
// queue consumer when it processes a dispatch event. EventID carries
// the publisher's idempotency key; the UNIQUE constraint on it makes
// redelivered events no-ops.
//
// Fields:
//  ID        – primary key identifier.
//  EventID   – UUID assigned by the publisher, unique.
//  UserID    – recipient.
//  Type      – one of the Notify* constants.
//  Title     – short headline.
//  Message   – human-readable body.
//  ActionURL – client route the notification links to.
//  Metadata  – JSON blob with event-specific fields (booking id, status).
//  IsRead    – whether the recipient has seen it.
//  CreatedAt – creation timestamp.
type Notification struct {
	ID        uint64    `json:"id"`
	EventID   string    `json:"-"`
	UserID    uint64    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	ActionURL string    `json:"action_url"`
	Metadata  string    `json:"metadata"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
