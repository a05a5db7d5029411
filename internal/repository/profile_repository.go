package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/edulink/tutorlink/internal/model"
	"github.com/edulink/tutorlink/internal/utils"
)

// ProfileRepo provides account persistence and the identity directory
// consumed by the conversation reconciler. All timestamp columns are
// assumed to be stored in UTC.
type ProfileRepo struct{ DB *sql.DB }

// NewProfileRepo returns a ProfileRepo bound to the given database.
func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

// Create inserts a user and returns its ID. The email is normalized to
// lower case first. A duplicate email maps to ErrEmailExists.
func (r *ProfileRepo) Create(ctx context.Context, email, password, firstName, lastName, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, first_name, last_name, role) VALUES (?,?,?,?,?)",
		email, hash, firstName, lastName, role)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,first_name,last_name,role,is_active,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *ProfileRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,first_name,last_name,role,is_active,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// ResolveProfiles batch-resolves display profiles for a set of user ids
// in a single query. Unknown ids are simply absent from the returned
// map; callers degrade gracefully rather than failing the whole view.
// An empty id set returns an empty map without touching the database.
func (r *ProfileRepo) ResolveProfiles(ctx context.Context, ids []uint64) (map[uint64]model.Profile, error) {
	out := make(map[uint64]model.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `SELECT id, first_name, last_name, role FROM users WHERE id IN (` +
		strings.Join(placeholders, ",") + `)`
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var first, last, role string
		if err := rows.Scan(&id, &first, &last, &role); err != nil {
			return nil, err
		}
		out[id] = model.Profile{ID: id, Name: strings.TrimSpace(first + " " + last), Role: role}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
