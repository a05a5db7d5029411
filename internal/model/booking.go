package model

import "time"

// BookingStatus enumerates the states of a tutoring booking. The value
// is stored verbatim in bookings.status. All validity checks go through
// the transition table below so there is exactly one authority for
// which moves are legal.
type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusAccepted  BookingStatus = "ACCEPTED"
	StatusRejected  BookingStatus = "REJECTED"
	StatusCompleted BookingStatus = "COMPLETED"
	StatusCancelled BookingStatus = "CANCELLED"
)

// transitions maps each status to the set of statuses reachable from it.
// REJECTED, COMPLETED and CANCELLED are terminal and therefore absent.
var transitions = map[BookingStatus]map[BookingStatus]bool{
	StatusPending: {
		StatusAccepted:  true,
		StatusRejected:  true,
		StatusCancelled: true,
	},
	StatusAccepted: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
}

// ParseBookingStatus normalizes a client-supplied status string. The
// second return value reports whether the input named a known status.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case StatusPending, StatusAccepted, StatusRejected, StatusCompleted, StatusCancelled:
		return BookingStatus(s), true
	}
	return "", false
}

// CanTransitionTo reports whether moving from s to target is a legal
// state-machine move. Re-entering the same state is not legal.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	return transitions[s][target]
}

// Terminal reports whether no outbound transitions exist from s.
func (s BookingStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Booking records a requested tutoring session between a student and a
// tutor. Created only by the student, mutated only through the lifecycle
// manager, and never deleted so the audit trail survives cancellation.
//
// Fields:
//  ID          – primary key identifier.
//  StudentID   – requesting student (users.id).
//  TutorID     – tutor being booked (users.id).
//  Subject     – free-form subject line ("Algebra", "IELTS prep", ...).
//  Status      – current lifecycle state, see BookingStatus.
//  ScheduledAt – agreed session start time (UTC).
//  Notes       – optional note from the student to the tutor.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – bumped on every status change; used as the booking's
//                event time when reconciling conversations.
type Booking struct {
	ID          uint64        // bookings.id
	StudentID   uint64        // bookings.student_id
	TutorID     uint64        // bookings.tutor_id
	Subject     string        // bookings.subject
	Status      BookingStatus // bookings.status
	ScheduledAt time.Time     // bookings.scheduled_at
	Notes       string        // bookings.notes
	CreatedAt   time.Time     // bookings.created_at
	UpdatedAt   time.Time     // bookings.updated_at
}

// Counterparty returns the other participant relative to userID. The
// boolean is false when userID is on neither side of the booking.
func (b Booking) Counterparty(userID uint64) (uint64, bool) {
	switch userID {
	case b.StudentID:
		return b.TutorID, true
	case b.TutorID:
		return b.StudentID, true
	}
	return 0, false
}
