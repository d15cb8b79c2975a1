package admin

import (
	"context"
	"database/sql"
	"errors"

	"rollbook/internal/apperr"
)

// Admin is an administrator account. Only hashes are held.
type Admin struct {
	UserID       string
	PasswordHash string
	Answer1Hash  string
	Answer2Hash  string
}

// Repository persists admins in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the admin with userID.
func (r *Repository) Get(ctx context.Context, userID string) (Admin, error) {
	var a Admin
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, password_hash, answer1_hash, answer2_hash FROM admins WHERE user_id = $1
	`, userID).Scan(&a.UserID, &a.PasswordHash, &a.Answer1Hash, &a.Answer2Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Admin{}, apperr.NotFound("Admin not found")
	}
	return a, err
}

// CreateIfMissing inserts a unless the user id is taken and reports whether it did.
func (r *Repository) CreateIfMissing(ctx context.Context, a Admin) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO admins (user_id, password_hash, answer1_hash, answer2_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
	`, a.UserID, a.PasswordHash, a.Answer1Hash, a.Answer2Hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// UpdatePassword replaces the password hash.
func (r *Repository) UpdatePassword(ctx context.Context, userID, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE admins SET password_hash = $2, updated_at = NOW() WHERE user_id = $1`, userID, hash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("Admin not found")
	}
	return nil
}
