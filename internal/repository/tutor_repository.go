package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/edulink/tutorlink/internal/model"
)

// TutorRepo serves the public tutor browse/search surface and the
// profile upsert used by tutors themselves.
type TutorRepo struct{ DB *sql.DB }

// NewTutorRepo returns a TutorRepo bound to the given database.
func NewTutorRepo(db *sql.DB) *TutorRepo { return &TutorRepo{DB: db} }

// Upsert creates or replaces the tutor's profile row.
func (r *TutorRepo) Upsert(ctx context.Context, userID uint64, headline string, hourlyRateCents uint32) error {
	const q = `INSERT INTO tutor_profiles (user_id, headline, hourly_rate_cents)
	           VALUES (?,?,?)
	           ON DUPLICATE KEY UPDATE headline = VALUES(headline),
	                                   hourly_rate_cents = VALUES(hourly_rate_cents),
	                                   updated_at = NOW()`
	_, err := r.DB.ExecContext(ctx, q, userID, headline, hourlyRateCents)
	return err
}

// GetByUserID fetches a tutor profile. sql.ErrNoRows when absent.
func (r *TutorRepo) GetByUserID(ctx context.Context, userID uint64) (model.TutorProfile, error) {
	var tp model.TutorProfile
	var avg sql.NullFloat64
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, headline, hourly_rate_cents, average_rating, rating_count, updated_at FROM tutor_profiles WHERE user_id = ?",
		userID).Scan(&tp.UserID, &tp.Headline, &tp.HourlyRateCents, &avg, &tp.RatingCount, &tp.UpdatedAt)
	if err != nil {
		return model.TutorProfile{}, err
	}
	if avg.Valid {
		v := avg.Float64
		tp.AverageRating = &v
	}
	return tp, nil
}

// TutorSearchQuery defines filters & pagination for searching tutors.
type TutorSearchQuery struct {
	Name         string
	MaxRateCents uint32
	MinRating    float64
	Page         int
	PageSize     int
}

// PublicTutorRow is one tutor in public list/search responses. Only safe
// fields are exposed; the hourly rate is duplicated in whole currency
// units for client convenience.
type PublicTutorRow struct {
	ID            uint64   `json:"id"`
	Name          string   `json:"name"`
	Headline      string   `json:"headline"`
	RateCents     uint32   `json:"hourly_rate_cents"`
	Rate          float64  `json:"hourly_rate"`
	AverageRating *float64 `json:"average_rating"`
	RatingCount   uint32   `json:"rating_count"`
}

// Search returns active tutors matching the query, ordered by hourly
// rate ascending, plus the total match count for pagination.
func (r *TutorRepo) Search(ctx context.Context, q TutorSearchQuery) ([]PublicTutorRow, int64, error) {
	where := []string{"u.role = ?", "u.is_active = 1"}
	args := []any{model.RoleTutor}

	if q.Name != "" {
		where = append(where, "LOWER(CONCAT(u.first_name, ' ', u.last_name)) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Name)+"%")
	}
	if q.MaxRateCents > 0 {
		where = append(where, "tp.hourly_rate_cents <= ?")
		args = append(args, q.MaxRateCents)
	}
	if q.MinRating > 0 {
		where = append(where, "tp.average_rating >= ?")
		args = append(args, q.MinRating)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	countSQL := `SELECT COUNT(*)
		FROM tutor_profiles tp
		JOIN users u ON u.id = tp.user_id
		WHERE ` + cond
	if err := r.DB.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize

	dataSQL := `SELECT
			u.id,
			CONCAT(u.first_name, ' ', u.last_name) AS name,
			tp.headline,
			tp.hourly_rate_cents,
			tp.average_rating,
			tp.rating_count
		FROM tutor_profiles tp
		JOIN users u ON u.id = tp.user_id
		WHERE ` + cond + `
		ORDER BY tp.hourly_rate_cents ASC, u.id ASC
		LIMIT ? OFFSET ?`

	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := r.DB.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]PublicTutorRow, 0, limit)
	for rows.Next() {
		var d PublicTutorRow
		var avg sql.NullFloat64
		if err := rows.Scan(&d.ID, &d.Name, &d.Headline, &d.RateCents, &avg, &d.RatingCount); err != nil {
			return nil, 0, err
		}
		if avg.Valid {
			v := avg.Float64
			d.AverageRating = &v
		}
		d.Rate = float64(d.RateCents) / 100.0
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
