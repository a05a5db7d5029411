package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/edulink/tutorlink/internal/model"
	"github.com/edulink/tutorlink/internal/relay"
	"github.com/edulink/tutorlink/internal/repository"
)

// NotificationSink receives structured notification events. Delivery is
// best-effort: a sink failure is logged and never fails the transition
// that triggered it.
type NotificationSink interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Manager validates and applies booking status transitions and runs
// their side effects. The status mutation is one unit of work: the row
// is locked, compare-and-swapped and committed before any effect becomes
// visible, and nothing is emitted if the transaction fails. Two
// concurrent transitions against the same booking therefore cannot both
// succeed from the same stale read.
type Manager struct {
	DB       *sql.DB
	Bookings *repository.BookingRepo
	Ratings  *repository.RatingRepo
	Sink     NotificationSink // optional
	Relay    relay.Publisher  // optional
}

// NewManager constructs a Manager. Sink and relayPub may be nil, which
// disables the corresponding side channel (used in tests and tooling).
func NewManager(db *sql.DB, bookings *repository.BookingRepo, ratings *repository.RatingRepo, sink NotificationSink, relayPub relay.Publisher) *Manager {
	if db == nil || bookings == nil || ratings == nil {
		panic("nil dependency passed to lifecycle.NewManager")
	}
	return &Manager{DB: db, Bookings: bookings, Ratings: ratings, Sink: sink, Relay: relayPub}
}

// Transition moves a booking to target on behalf of actor. It returns
// the updated booking, or: sql.ErrNoRows when the booking does not
// exist, repository.ErrForbidden when the actor lacks authority, an
// *InvalidTransitionError when the state machine forbids the move, and
// repository.ErrStoreUnavailable on I/O failure (in which case nothing
// was committed).
func (m *Manager) Transition(ctx context.Context, bookingID, actor uint64, target model.BookingStatus) (model.Booking, error) {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Booking{}, repository.Unavailable(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := m.Bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, err
		}
		return model.Booking{}, repository.Unavailable(err)
	}
	if err := authorize(b, actor, target); err != nil {
		return model.Booking{}, err
	}

	ok, err := m.Bookings.UpdateStatusTx(ctx, tx, bookingID, b.Status, target)
	if err != nil {
		return model.Booking{}, repository.Unavailable(err)
	}
	if !ok {
		// The row lock makes this unreachable in practice; the CAS is
		// the safety net if isolation is ever weakened.
		return model.Booking{}, &InvalidTransitionError{From: b.Status, To: target}
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, repository.Unavailable(err)
	}
	committed = true

	b.Status = target
	b.UpdatedAt = time.Now().UTC()
	m.emitStatusChange(ctx, b, actor)
	return b, nil
}

// SubmitReview records a student's review of a booking and runs the full
// completion chain inside one transaction: the booking moves to
// COMPLETED if it was ACCEPTED (a booking already COMPLETED is a valid
// idempotent entry point), the rating row is inserted with the UNIQUE
// booking_id constraint as the duplicate authority, and the tutor's
// persisted aggregate is recomputed from the full rating set. Either all
// of that commits or none of it does.
func (m *Manager) SubmitReview(ctx context.Context, bookingID, actor uint64, score uint8, comment string) (model.Rating, error) {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Rating{}, repository.Unavailable(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := m.Bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Rating{}, err
		}
		return model.Rating{}, repository.Unavailable(err)
	}
	if actor != b.StudentID {
		// Reviews come from the student side only.
		return model.Rating{}, repository.ErrForbidden
	}

	transitioned := false
	switch b.Status {
	case model.StatusCompleted:
		// already completed: review-only path
	case model.StatusAccepted:
		ok, err := m.Bookings.UpdateStatusTx(ctx, tx, bookingID, model.StatusAccepted, model.StatusCompleted)
		if err != nil {
			return model.Rating{}, repository.Unavailable(err)
		}
		if !ok {
			return model.Rating{}, &InvalidTransitionError{From: b.Status, To: model.StatusCompleted}
		}
		transitioned = true
	default:
		return model.Rating{}, &InvalidTransitionError{From: b.Status, To: model.StatusCompleted}
	}

	// Fast path for a clean error; the insert below still decides the
	// race.
	exists, err := m.Ratings.ExistsForBookingTx(ctx, tx, bookingID)
	if err != nil {
		return model.Rating{}, repository.Unavailable(err)
	}
	if exists {
		return model.Rating{}, repository.ErrDuplicateReview
	}

	rating := model.Rating{
		BookingID: bookingID,
		StudentID: b.StudentID,
		TutorID:   b.TutorID,
		Rating:    score,
		Comment:   comment,
	}
	if err := m.Ratings.InsertTx(ctx, tx, &rating); err != nil {
		if errors.Is(err, repository.ErrDuplicateReview) {
			return model.Rating{}, err
		}
		return model.Rating{}, repository.Unavailable(err)
	}
	if err := m.Ratings.RecomputeTutorAggregateTx(ctx, tx, b.TutorID); err != nil {
		return model.Rating{}, repository.Unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return model.Rating{}, repository.Unavailable(err)
	}
	committed = true
	rating.CreatedAt = time.Now().UTC()

	b.Status = model.StatusCompleted
	b.UpdatedAt = rating.CreatedAt
	if transitioned {
		m.publishStatus(ctx, b)
	}
	m.notify(ctx, buildReviewNotification(b, score))
	return rating, nil
}

// emitStatusChange runs the post-commit side effects of a transition:
// a notification to the actor's counterparty and a relay event to both
// parties so held conversation views can patch themselves.
func (m *Manager) emitStatusChange(ctx context.Context, b model.Booking, actor uint64) {
	if counterparty, ok := b.Counterparty(actor); ok {
		m.notify(ctx, buildStatusNotification(b, counterparty))
	}
	m.publishStatus(ctx, b)
}

func (m *Manager) publishStatus(ctx context.Context, b model.Booking) {
	if m.Relay == nil {
		return
	}
	for _, userID := range []uint64{b.StudentID, b.TutorID} {
		counterparty, _ := b.Counterparty(userID)
		ev := relay.ChangeEvent{
			Kind:           relay.EventBookingStatusChanged,
			CounterpartyID: counterparty,
			BookingID:      b.ID,
			BookingStatus:  b.Status,
			OccurredAt:     b.UpdatedAt,
		}
		if err := m.Relay.PublishToUser(ctx, userID, ev); err != nil {
			log.Printf("lifecycle: relay publish failed for user %d: %v", userID, err)
		}
	}
}

func (m *Manager) notify(ctx context.Context, n model.Notification) {
	if m.Sink == nil {
		return
	}
	if err := m.Sink.Notify(ctx, n); err != nil {
		// Best-effort by contract: the transition already committed.
		log.Printf("lifecycle: notification delivery failed for user %d: %v", n.UserID, err)
	}
}

var statusNotifyTypes = map[model.BookingStatus]string{
	model.StatusAccepted:  model.NotifyBookingAccepted,
	model.StatusRejected:  model.NotifyBookingRejected,
	model.StatusCancelled: model.NotifyBookingCancelled,
	model.StatusCompleted: model.NotifyBookingCompleted,
}

func buildStatusNotification(b model.Booking, recipient uint64) model.Notification {
	status := strings.ToLower(string(b.Status))
	meta, _ := json.Marshal(map[string]any{"booking_id": b.ID, "status": b.Status})
	return model.Notification{
		UserID:    recipient,
		Type:      statusNotifyTypes[b.Status],
		Title:     fmt.Sprintf("Booking %s", status),
		Message:   fmt.Sprintf("Your %s booking was %s.", b.Subject, status),
		ActionURL: fmt.Sprintf("/bookings/%d", b.ID),
		Metadata:  string(meta),
	}
}

func buildReviewNotification(b model.Booking, score uint8) model.Notification {
	meta, _ := json.Marshal(map[string]any{"booking_id": b.ID, "rating": score})
	return model.Notification{
		UserID:    b.TutorID,
		Type:      model.NotifyReviewReceived,
		Title:     "New review",
		Message:   fmt.Sprintf("You received a %d-star review for %s.", score, b.Subject),
		ActionURL: fmt.Sprintf("/bookings/%d", b.ID),
		Metadata:  string(meta),
	}
}
