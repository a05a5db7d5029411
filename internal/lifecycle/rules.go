// Package lifecycle owns booking state transitions and the side effects
// that must stay consistent with them. The rules here are the only place
// that decides whether a move is legal and who may make it; handlers
// never re-implement these checks.
package lifecycle

import (
	"fmt"

	"github.com/edulink/tutorlink/internal/model"
	"github.com/edulink/tutorlink/internal/repository"
)

// InvalidTransitionError rejects a state-machine violation. It names
// both the current and the requested state so the client can see why the
// move was refused, e.g. after losing a race against the other party.
type InvalidTransitionError struct {
	From model.BookingStatus
	To   model.BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: booking is %s, cannot move to %s", e.From, e.To)
}

// authorize checks, in order, that the actor is a party to the booking,
// that the requested move is legal from the current state, and that the
// actor has the authority for it. Accept/reject belong to the tutor
// alone; cancel and complete are open to either party. The checks run
// against a row already locked by the caller's transaction, so a pass
// here cannot be invalidated by a concurrent transition.
func authorize(b model.Booking, actor uint64, target model.BookingStatus) error {
	if actor != b.StudentID && actor != b.TutorID {
		return repository.ErrForbidden
	}
	if !b.Status.CanTransitionTo(target) {
		return &InvalidTransitionError{From: b.Status, To: target}
	}
	switch target {
	case model.StatusAccepted, model.StatusRejected:
		if actor != b.TutorID {
			return repository.ErrForbidden
		}
	}
	return nil
}
