package model

import "time"

// Rating stores a student's review of one completed booking, mapped to
// the `ratings` table. The UNIQUE constraint on booking_id is the
// authority that keeps a booking from being reviewed twice; application
// checks are only a fast path for a friendlier error.
//
// Fields:
//  ID        – primary key identifier.
//  BookingID – reviewed booking (unique).
//  StudentID – author of the review.
//  TutorID   – tutor being rated; denormalized so the aggregate
//              recompute needs no join.
//  Rating    – 1..5 inclusive.
//  Comment   – optional free-form review text.
//  CreatedAt – creation timestamp.
type Rating struct {
	ID        uint64    // ratings.id
	BookingID uint64    // ratings.booking_id
	StudentID uint64    // ratings.student_id
	TutorID   uint64    // ratings.tutor_id
	Rating    uint8     // ratings.rating
	Comment   string    // ratings.comment
	CreatedAt time.Time // ratings.created_at
}
