package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulink/tutorlink/internal/model"
	"github.com/edulink/tutorlink/internal/relay"
	"github.com/edulink/tutorlink/internal/repository"
)

var (
	selectForUpdate = regexp.QuoteMeta(
		"SELECT id, student_id, tutor_id, subject, status, scheduled_at, notes, created_at, updated_at FROM bookings WHERE id = ? FOR UPDATE")
	updateStatus = regexp.QuoteMeta(
		"UPDATE bookings SET status = ?, updated_at = NOW() WHERE id = ? AND status = ?")
	insertRating = regexp.QuoteMeta(
		"INSERT INTO ratings (booking_id, student_id, tutor_id, rating, comment) VALUES (?,?,?,?,?)")
)

type captureSink struct {
	err error
	got []model.Notification
}

func (s *captureSink) Notify(ctx context.Context, n model.Notification) error {
	s.got = append(s.got, n)
	return s.err
}

type capturePublisher struct {
	events map[uint64][]relay.ChangeEvent
}

func (p *capturePublisher) PublishToUser(ctx context.Context, userID uint64, ev relay.ChangeEvent) error {
	if p.events == nil {
		p.events = make(map[uint64][]relay.ChangeEvent)
	}
	p.events[userID] = append(p.events[userID], ev)
	return nil
}

func newMockManager(t *testing.T, sink NotificationSink, pub relay.Publisher) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewManager(db, repository.NewBookingRepo(db), repository.NewRatingRepo(db), sink, pub), mock
}

func bookingRow(status model.BookingStatus) *sqlmock.Rows {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{
		"id", "student_id", "tutor_id", "subject", "status", "scheduled_at", "notes", "created_at", "updated_at",
	}).AddRow(1, studentID, tutorID, "Algebra", string(status), now.Add(24*time.Hour), "", now, now)
}

func TestTransitionAcceptCommitsThenEmits(t *testing.T) {
	sink := &captureSink{}
	pub := &capturePublisher{}
	m, mock := newMockManager(t, sink, pub)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WithArgs(uint64(1)).WillReturnRows(bookingRow(model.StatusPending))
	mock.ExpectExec(updateStatus).
		WithArgs(string(model.StatusAccepted), uint64(1), string(model.StatusPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, err := m.Transition(context.Background(), 1, tutorID, model.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, b.Status)

	// The tutor acted, so the student is notified.
	require.Len(t, sink.got, 1)
	assert.Equal(t, studentID, sink.got[0].UserID)
	assert.Equal(t, model.NotifyBookingAccepted, sink.got[0].Type)

	// Both parties get the relay event.
	assert.Len(t, pub.events[studentID], 1)
	assert.Len(t, pub.events[tutorID], 1)
	assert.Equal(t, relay.EventBookingStatusChanged, pub.events[studentID][0].Kind)
	assert.Equal(t, model.StatusAccepted, pub.events[studentID][0].BookingStatus)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionCASMissRollsBackWithoutEffects(t *testing.T) {
	sink := &captureSink{}
	m, mock := newMockManager(t, sink, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WithArgs(uint64(1)).WillReturnRows(bookingRow(model.StatusPending))
	mock.ExpectExec(updateStatus).
		WithArgs(string(model.StatusAccepted), uint64(1), string(model.StatusPending)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := m.Transition(context.Background(), 1, tutorID, model.StatusAccepted)

	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, model.StatusPending, ite.From)
	assert.Equal(t, model.StatusAccepted, ite.To)
	assert.Empty(t, sink.got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionUnknownBookingIsNoRows(t *testing.T) {
	m, mock := newMockManager(t, nil, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WithArgs(uint64(404)).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := m.Transition(context.Background(), 404, tutorID, model.StatusAccepted)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionToPendingIsInvalid(t *testing.T) {
	// No state has a legal move back to PENDING; the request dies in
	// authorize before any update is attempted.
	m, mock := newMockManager(t, nil, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WithArgs(uint64(1)).WillReturnRows(bookingRow(model.StatusAccepted))
	mock.ExpectRollback()

	_, err := m.Transition(context.Background(), 1, tutorID, model.StatusPending)

	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, model.StatusAccepted, ite.From)
	assert.Equal(t, model.StatusPending, ite.To)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionBeginFailureIsStoreUnavailable(t *testing.T) {
	m, mock := newMockManager(t, nil, nil)

	mock.ExpectBegin().WillReturnError(errors.New("conn refused"))

	_, err := m.Transition(context.Background(), 1, tutorID, model.StatusAccepted)
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionSinkFailureDoesNotFailTheMove(t *testing.T) {
	sink := &captureSink{err: errors.New("broker down")}
	m, mock := newMockManager(t, sink, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WithArgs(uint64(1)).WillReturnRows(bookingRow(model.StatusPending))
	mock.ExpectExec(updateStatus).
		WithArgs(string(model.StatusAccepted), uint64(1), string(model.StatusPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, err := m.Transition(context.Background(), 1, tutorID, model.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, b.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitReviewCompletesAcceptedBooking(t *testing.T) {
	sink := &captureSink{}
	pub := &capturePublisher{}
	m, mock := newMockManager(t, sink, pub)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WithArgs(uint64(1)).WillReturnRows(bookingRow(model.StatusAccepted))
	mock.ExpectExec(updateStatus).
		WithArgs(string(model.StatusCompleted), uint64(1), string(model.StatusAccepted)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT 1 FROM ratings").WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectExec(insertRating).
		WithArgs(uint64(1), studentID, tutorID, 5, "great session").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("UPDATE tutor_profiles SET").
		WithArgs(tutorID, tutorID, tutorID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rating, err := m.SubmitReview(context.Background(), 1, studentID, 5, "great session")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), rating.ID)
	assert.Equal(t, tutorID, rating.TutorID)

	// The implicit completion is published to both parties and the
	// tutor is told about the review.
	assert.Len(t, pub.events[studentID], 1)
	assert.Len(t, pub.events[tutorID], 1)
	require.Len(t, sink.got, 1)
	assert.Equal(t, model.NotifyReviewReceived, sink.got[0].Type)
	assert.Equal(t, tutorID, sink.got[0].UserID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitReviewOnCompletedBookingSkipsStatusMove(t *testing.T) {
	sink := &captureSink{}
	pub := &capturePublisher{}
	m, mock := newMockManager(t, sink, pub)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WithArgs(uint64(1)).WillReturnRows(bookingRow(model.StatusCompleted))
	mock.ExpectQuery("SELECT 1 FROM ratings").WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectExec(insertRating).
		WithArgs(uint64(1), studentID, tutorID, 4, "").
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectExec("UPDATE tutor_profiles SET").
		WithArgs(tutorID, tutorID, tutorID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rating, err := m.SubmitReview(context.Background(), 1, studentID, 4, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(8), rating.ID)

	// No status change happened, so nothing goes over the relay; the
	// review notification still fires.
	assert.Empty(t, pub.events)
	require.Len(t, sink.got, 1)
	assert.Equal(t, model.NotifyReviewReceived, sink.got[0].Type)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitReviewSecondReviewIsDuplicate(t *testing.T) {
	sink := &captureSink{}
	m, mock := newMockManager(t, sink, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WithArgs(uint64(1)).WillReturnRows(bookingRow(model.StatusCompleted))
	mock.ExpectQuery("SELECT 1 FROM ratings").WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectRollback()

	_, err := m.SubmitReview(context.Background(), 1, studentID, 5, "again")
	assert.ErrorIs(t, err, repository.ErrDuplicateReview)
	assert.Empty(t, sink.got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitReviewRacingInsertIsDuplicate(t *testing.T) {
	// The fast-path check saw no row but the insert hit the UNIQUE
	// constraint: a concurrent submission won the race.
	m, mock := newMockManager(t, nil, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WithArgs(uint64(1)).WillReturnRows(bookingRow(model.StatusCompleted))
	mock.ExpectQuery("SELECT 1 FROM ratings").WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectExec(insertRating).
		WithArgs(uint64(1), studentID, tutorID, 5, "").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry '1' for key 'ratings.booking_id'"))
	mock.ExpectRollback()

	_, err := m.SubmitReview(context.Background(), 1, studentID, 5, "")
	assert.ErrorIs(t, err, repository.ErrDuplicateReview)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitReviewOnlyTheStudentMayReview(t *testing.T) {
	for _, actor := range []uint64{tutorID, strangerID} {
		m, mock := newMockManager(t, nil, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WithArgs(uint64(1)).WillReturnRows(bookingRow(model.StatusCompleted))
		mock.ExpectRollback()

		_, err := m.SubmitReview(context.Background(), 1, actor, 5, "")
		assert.ErrorIs(t, err, repository.ErrForbidden, "actor %d", actor)
		require.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestSubmitReviewPendingBookingIsInvalid(t *testing.T) {
	m, mock := newMockManager(t, nil, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WithArgs(uint64(1)).WillReturnRows(bookingRow(model.StatusPending))
	mock.ExpectRollback()

	_, err := m.SubmitReview(context.Background(), 1, studentID, 5, "")

	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, model.StatusPending, ite.From)
	assert.Equal(t, model.StatusCompleted, ite.To)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildStatusNotification(t *testing.T) {
	b := model.Booking{ID: 1, StudentID: studentID, TutorID: tutorID, Subject: "Algebra", Status: model.StatusRejected}

	n := buildStatusNotification(b, studentID)
	assert.Equal(t, studentID, n.UserID)
	assert.Equal(t, model.NotifyBookingRejected, n.Type)
	assert.Equal(t, "Booking rejected", n.Title)
	assert.Contains(t, n.Message, "Algebra")
	assert.Equal(t, "/bookings/1", n.ActionURL)

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(n.Metadata), &meta))
	assert.Equal(t, float64(1), meta["booking_id"])
	assert.Equal(t, string(model.StatusRejected), meta["status"])
}

func TestBuildReviewNotification(t *testing.T) {
	b := model.Booking{ID: 2, StudentID: studentID, TutorID: tutorID, Subject: "Physics", Status: model.StatusCompleted}

	n := buildReviewNotification(b, 4)
	assert.Equal(t, tutorID, n.UserID)
	assert.Equal(t, model.NotifyReviewReceived, n.Type)
	assert.Contains(t, n.Message, "4-star")
	assert.Contains(t, n.Message, "Physics")

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(n.Metadata), &meta))
	assert.Equal(t, float64(4), meta["rating"])
}
