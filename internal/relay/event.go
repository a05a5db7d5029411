// Package relay delivers message and booking mutations to connected
// clients so they can patch a held conversation view instead of
// re-running the full reconciliation on every change. Events are
// filtered server-side: a mutation is only ever published to the
// channels of the two users involved in it.
package relay

import (
	"context"
	"time"

	"github.com/edulink/tutorlink/internal/model"
)

// EventKind tags the variant carried by a ChangeEvent.
type EventKind string

const (
	// EventMessageInserted: a new message landed in the thread with
	// CounterpartyID. Content and OccurredAt let the client apply the
	// same most-recent-event-wins rule the reconciler uses.
	EventMessageInserted EventKind = "message.inserted"
	// EventMessageRead: the subscriber's counterparty read messages, or
	// the subscriber read them on another device.
	EventMessageRead EventKind = "message.read"
	// EventBookingStatusChanged: a booking with CounterpartyID moved to
	// BookingStatus.
	EventBookingStatusChanged EventKind = "booking.status_changed"
)

// ChangeEvent is the tagged union streamed to subscribers. Fields not
// relevant to the Kind are zero and omitted from the JSON payload.
// Events for one (subscriber, counterparty) pair are delivered in
// commit order; no cross-counterparty ordering is promised.
type ChangeEvent struct {
	Kind           EventKind           `json:"kind"`
	CounterpartyID uint64              `json:"counterparty_id"`
	MessageID      uint64              `json:"message_id,omitempty"`
	BookingID      uint64              `json:"booking_id,omitempty"`
	Content        string              `json:"content,omitempty"`
	BookingStatus  model.BookingStatus `json:"booking_status,omitempty"`
	OccurredAt     time.Time           `json:"occurred_at"`
}

// Publisher is the write side of the relay. The lifecycle manager and
// the message handlers publish through this interface so tests can swap
// in a recorder.
type Publisher interface {
	PublishToUser(ctx context.Context, userID uint64, ev ChangeEvent) error
}
