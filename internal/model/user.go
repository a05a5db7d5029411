package model

import "time"

// Role names stored in users.role and carried in the JWT "role" claim.
// Students create bookings and submit reviews; tutors accept or reject
// them. Both sides exchange messages.
const (
	RoleStudent = "STUDENT"
	RoleTutor   = "TUTOR"
)

// User represents an application user record as stored in the `users`
// table. Each field corresponds to a column. The json tags are omitted
// here because these structs are used internally by the repository
// layer; handlers define separate response types with appropriate tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  FirstName    – given name shown in conversation views.
//  LastName     – family name shown in conversation views.
//  Role         – STUDENT or TUTOR.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	FirstName    string    // users.first_name
	LastName     string    // users.last_name
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// Profile is the display projection of a user returned by the identity
// directory. It is the only user data the conversation view needs.
type Profile struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// TutorProfile holds the tutor-specific columns from `tutor_profiles`,
// including the persisted rating aggregate recomputed after each review.
//
// Fields:
//  UserID          – profile owner (primary key, references users.id).
//  Headline        – short public blurb shown in search results.
//  HourlyRateCents – advertised hourly rate in cents.
//  AverageRating   – mean of all ratings for this tutor (nil before the
//                    first review).
//  RatingCount     – number of ratings contributing to the average.
//  UpdatedAt       – timestamp of last update.
type TutorProfile struct {
	UserID          uint64    // tutor_profiles.user_id
	Headline        string    // tutor_profiles.headline
	HourlyRateCents uint32    // tutor_profiles.hourly_rate_cents
	AverageRating   *float64  // tutor_profiles.average_rating (nullable)
	RatingCount     uint32    // tutor_profiles.rating_count
	UpdatedAt       time.Time // tutor_profiles.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table. The plain
// token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
