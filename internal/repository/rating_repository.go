package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/edulink/tutorlink/internal/model"
)

// RatingRepo persists reviews and recomputes the per-tutor aggregate.
// The one-review-per-booking rule is enforced by the UNIQUE constraint
// on ratings.booking_id; ExistsForBookingTx exists only so the common
// case can fail with a clean error before attempting the insert.
type RatingRepo struct{ DB *sql.DB }

// NewRatingRepo returns a RatingRepo bound to the given database.
func NewRatingRepo(db *sql.DB) *RatingRepo { return &RatingRepo{DB: db} }

// ExistsForBookingTx reports whether the booking already has a review.
// Fast path only; the insert remains the authority under races.
func (r *RatingRepo) ExistsForBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		"SELECT 1 FROM ratings WHERE booking_id = ? LIMIT 1", bookingID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertTx inserts a rating row inside tx and populates the generated
// id. A duplicate-key violation on booking_id maps to ErrDuplicateReview
// so two racing submissions cannot both land.
func (r *RatingRepo) InsertTx(ctx context.Context, tx *sql.Tx, rating *model.Rating) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO ratings (booking_id, student_id, tutor_id, rating, comment) VALUES (?,?,?,?,?)",
		rating.BookingID, rating.StudentID, rating.TutorID, rating.Rating, rating.Comment)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrDuplicateReview
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rating.ID = uint64(id)
	return nil
}

// RecomputeTutorAggregateTx rewrites the tutor's average rating and
// rating count from the full current rating set in a single aggregate
// UPDATE. Reading everything back instead of nudging a running average
// keeps concurrent submissions from drifting the value; the statement
// itself serializes per tutor row.
func (r *RatingRepo) RecomputeTutorAggregateTx(ctx context.Context, tx *sql.Tx, tutorID uint64) error {
	const q = `UPDATE tutor_profiles SET
	               average_rating = (SELECT AVG(rating) FROM ratings WHERE tutor_id = ?),
	               rating_count   = (SELECT COUNT(*) FROM ratings WHERE tutor_id = ?),
	               updated_at     = NOW()
	           WHERE user_id = ?`
	_, err := tx.ExecContext(ctx, q, tutorID, tutorID, tutorID)
	return err
}

// ListByTutor returns all reviews for a tutor, newest first.
func (r *RatingRepo) ListByTutor(ctx context.Context, tutorID uint64) ([]model.Rating, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, booking_id, student_id, tutor_id, rating, comment, created_at FROM ratings WHERE tutor_id = ? ORDER BY created_at DESC, id DESC",
		tutorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Rating, 0)
	for rows.Next() {
		var rt model.Rating
		if err := rows.Scan(&rt.ID, &rt.BookingID, &rt.StudentID, &rt.TutorID, &rt.Rating, &rt.Comment, &rt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SummaryForTutor returns the average rating and rating count straight
// from the ratings table. Used by the public rating endpoint so it never
// trails the persisted aggregate.
func (r *RatingRepo) SummaryForTutor(ctx context.Context, tutorID uint64) (avg sql.NullFloat64, count int64, err error) {
	err = r.DB.QueryRowContext(ctx,
		"SELECT AVG(rating), COUNT(*) FROM ratings WHERE tutor_id = ?", tutorID).Scan(&avg, &count)
	return avg, count, err
}
