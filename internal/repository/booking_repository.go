package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/edulink/tutorlink/internal/model"
)

// BookingRepo provides CRUD operations for the `bookings` table.
// Bookings are never deleted; cancellation and rejection are ordinary
// status values so the audit trail stays intact. Status mutations go
// through UpdateStatusTx so the lifecycle manager can hold the row lock
// and compare-and-swap inside one transaction.
type BookingRepo struct{ DB *sql.DB }

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{DB: db} }

const bookingColumns = "id, student_id, tutor_id, subject, status, scheduled_at, notes, created_at, updated_at"

func scanBooking(row interface{ Scan(...interface{}) error }) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.StudentID, &b.TutorID, &b.Subject, &b.Status,
		&b.ScheduledAt, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// Create inserts a new booking in PENDING state and returns the stored
// row, including DB-assigned timestamps.
func (r *BookingRepo) Create(ctx context.Context, studentID, tutorID uint64, subject string, scheduledAt time.Time, notes string) (model.Booking, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO bookings (student_id, tutor_id, subject, status, scheduled_at, notes) VALUES (?,?,?,?,?,?)",
		studentID, tutorID, subject, model.StatusPending, scheduledAt, notes)
	if err != nil {
		return model.Booking{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Booking{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches a booking by id. sql.ErrNoRows when absent.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	return scanBooking(r.DB.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id))
}

// GetForUpdateTx fetches a booking inside tx with a row lock, so that a
// concurrent Transition against the same booking blocks until this
// transaction commits or rolls back. sql.ErrNoRows when absent.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Booking, error) {
	return scanBooking(tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ? FOR UPDATE", id))
}

// UpdateStatusTx compare-and-swaps the status of a booking inside tx.
// It reports whether the swap applied; false means another transaction
// moved the booking off `from` first and the caller must treat its read
// as stale.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.BookingStatus) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE bookings SET status = ?, updated_at = NOW() WHERE id = ? AND status = ?",
		to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListForUser returns every booking where the user is the student or the
// tutor, newest first.
func (r *BookingRepo) ListForUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE student_id = ? OR tutor_id = ? ORDER BY created_at DESC, id DESC",
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LatestByCounterparty returns, for every counterparty the user has at
// least one booking with, the most recently created booking (MAX(id) on
// an auto-increment key equals newest created_at). EventAt carries the
// booking's updated_at so that a status change counts as fresh activity
// when the reconciler runs its most-recent-event-wins tie-break.
func (r *BookingRepo) LatestByCounterparty(ctx context.Context, userID uint64) ([]model.BookingDigest, error) {
	const q = `SELECT b.id,
	                  CASE WHEN b.student_id = ? THEN b.tutor_id ELSE b.student_id END,
	                  b.subject, b.status, b.updated_at
	           FROM bookings b
	           JOIN (
	               SELECT CASE WHEN student_id = ? THEN tutor_id ELSE student_id END AS counterparty,
	                      MAX(id) AS max_id
	               FROM bookings
	               WHERE student_id = ? OR tutor_id = ?
	               GROUP BY counterparty
	           ) latest ON latest.max_id = b.id`
	rows, err := r.DB.QueryContext(ctx, q, userID, userID, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BookingDigest
	for rows.Next() {
		var d model.BookingDigest
		if err := rows.Scan(&d.BookingID, &d.CounterpartyID, &d.Subject, &d.Status, &d.EventAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
