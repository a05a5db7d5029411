package model

import "time"

// Conversation is the derived, non-persisted summary of all interaction
// between the requesting user and one counterparty. It merges the
// message and booking relations: exactly one entry exists per distinct
// counterparty, whichever sources mention them. It has no identity or
// lifecycle beyond the request that produced it.
//
// LastActivityText/LastActivityTime reflect the single most recent event
// regardless of source: a freshly accepted booking outranks yesterday's
// message and vice versa. UnreadCount is computed independently of which
// source currently occupies the last-activity slot.
type Conversation struct {
	CounterpartyID   uint64        `json:"counterparty_id"`
	CounterpartyName string        `json:"counterparty_name"`
	CounterpartyRole string        `json:"counterparty_role"`
	LastActivityText string        `json:"last_activity_text"`
	LastActivityTime time.Time     `json:"last_activity_time"`
	UnreadCount      int           `json:"unread_count"`
	HasBooking       bool          `json:"has_booking"`
	BookingStatus    BookingStatus `json:"booking_status,omitempty"`
}

// MessageDigest is the per-counterparty projection of the message store
// consumed by the reconciler: the latest message exchanged with that
// counterparty, whoever sent it.
type MessageDigest struct {
	CounterpartyID uint64
	MessageID      uint64
	Content        string
	SentAt         time.Time
}

// BookingDigest is the per-counterparty projection of the booking store
// consumed by the reconciler: the most recently created booking with
// that counterparty. EventAt is the booking's updated_at, so status
// changes count as fresh activity in the tie-break.
type BookingDigest struct {
	CounterpartyID uint64
	BookingID      uint64
	Subject        string
	Status         BookingStatus
	EventAt        time.Time
}
