package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulink/tutorlink/internal/model"
	"github.com/edulink/tutorlink/internal/repository"
)

const (
	studentID  uint64 = 10
	tutorID    uint64 = 20
	strangerID uint64 = 99
)

func booking(status model.BookingStatus) model.Booking {
	return model.Booking{ID: 1, StudentID: studentID, TutorID: tutorID, Subject: "Algebra", Status: status}
}

func TestAuthorizeTutorDecidesPending(t *testing.T) {
	assert.NoError(t, authorize(booking(model.StatusPending), tutorID, model.StatusAccepted))
	assert.NoError(t, authorize(booking(model.StatusPending), tutorID, model.StatusRejected))
}

func TestAuthorizeStudentCannotAcceptOwnBooking(t *testing.T) {
	err := authorize(booking(model.StatusPending), studentID, model.StatusAccepted)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	err = authorize(booking(model.StatusPending), studentID, model.StatusRejected)
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestAuthorizeEitherPartyCancels(t *testing.T) {
	for _, status := range []model.BookingStatus{model.StatusPending, model.StatusAccepted} {
		assert.NoError(t, authorize(booking(status), studentID, model.StatusCancelled), "student cancel from %s", status)
		assert.NoError(t, authorize(booking(status), tutorID, model.StatusCancelled), "tutor cancel from %s", status)
	}
}

func TestAuthorizeEitherPartyCompletes(t *testing.T) {
	assert.NoError(t, authorize(booking(model.StatusAccepted), studentID, model.StatusCompleted))
	assert.NoError(t, authorize(booking(model.StatusAccepted), tutorID, model.StatusCompleted))
}

func TestAuthorizePendingCannotComplete(t *testing.T) {
	err := authorize(booking(model.StatusPending), tutorID, model.StatusCompleted)

	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, model.StatusPending, ite.From)
	assert.Equal(t, model.StatusCompleted, ite.To)
}

func TestAuthorizeTerminalStatesRejectEverything(t *testing.T) {
	terminals := []model.BookingStatus{model.StatusRejected, model.StatusCompleted, model.StatusCancelled}
	targets := []model.BookingStatus{
		model.StatusPending, model.StatusAccepted, model.StatusRejected,
		model.StatusCompleted, model.StatusCancelled,
	}
	for _, from := range terminals {
		for _, to := range targets {
			err := authorize(booking(from), tutorID, to)
			var ite *InvalidTransitionError
			assert.ErrorAs(t, err, &ite, "%s -> %s must be refused", from, to)
		}
	}
}

func TestAuthorizeStrangerIsForbiddenBeforeStateCheck(t *testing.T) {
	// A non-party gets ErrForbidden even when the move itself would be
	// legal, so booking state does not leak to outsiders.
	err := authorize(booking(model.StatusPending), strangerID, model.StatusAccepted)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	err = authorize(booking(model.StatusCancelled), strangerID, model.StatusAccepted)
	assert.True(t, errors.Is(err, repository.ErrForbidden))
}

func TestInvalidTransitionErrorNamesBothStates(t *testing.T) {
	err := &InvalidTransitionError{From: model.StatusCancelled, To: model.StatusAccepted}
	assert.Contains(t, err.Error(), "CANCELLED")
	assert.Contains(t, err.Error(), "ACCEPTED")
}
