package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rollbook/internal/apperr"
	"rollbook/internal/calendar"
	"rollbook/internal/store"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

const columns = `roll, name, branch, dob, issue_valid, pin_hash, photo_url, photo_public_id, enrolled_on`

// Repository persists students in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (Student, error) {
	var s Student
	err := row.Scan(&s.Roll, &s.Name, &s.Branch, &s.DOB, &s.IssueValid, &s.PINHash, &s.PhotoURL, &s.PhotoPublicID, &s.EnrolledOn)
	return s, err
}

// Get returns a single student by roll.
func (r *Repository) Get(ctx context.Context, roll string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM students WHERE roll = $1`, roll)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, apperr.NotFound("Student not found")
	}
	return s, err
}

// listQuery renders the filtered, ordered and paginated student query.
func listQuery(f Filter, today calendar.Date) (string, []any) {
	var w store.Where
	if f.Name != "" {
		w.And(`name ILIKE ?`, store.Contains(f.Name))
	}
	if f.Branch != "" {
		w.And(`branch = ?`, f.Branch)
	}
	if f.DOB != nil {
		w.And(`dob = ?`, *f.DOB)
	}
	if f.Roll != "" {
		w.And(`roll = ?`, NormalizeRoll(f.Roll))
	}
	if f.LastYears > 0 {
		w.And(`enrolled_on >= ?`, today.AddDays(-365*f.LastYears))
	}
	limit, offset := store.Page(f.Page, f.PageSize, defaultPageSize, maxPageSize)
	query := `SELECT ` + columns + ` FROM students` + w.SQL() + ` ORDER BY roll ASC`
	query += ` LIMIT ` + w.Bind(limit) + ` OFFSET ` + w.Bind(offset)
	return query, w.Args()
}

// List returns students matching every provided filter.
func (r *Repository) List(ctx context.Context, f Filter, today calendar.Date) ([]Student, error) {
	query, args := listQuery(f, today)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// Create inserts a new student. A duplicate roll yields a conflict.
func (r *Repository) Create(ctx context.Context, s Student) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (roll, name, branch, dob, issue_valid, pin_hash, photo_url, photo_public_id, enrolled_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.Roll, s.Name, s.Branch, s.DOB, s.IssueValid, s.PINHash, s.PhotoURL, s.PhotoPublicID, s.EnrolledOn)
	if store.IsUniqueViolation(err) {
		return apperr.Conflict("Roll number already exists")
	}
	return err
}

// Update rewrites the mutable fields of a student. The roll never changes.
func (r *Repository) Update(ctx context.Context, s Student) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE students
		SET name = $2, branch = $3, dob = $4, issue_valid = $5, pin_hash = $6,
			photo_url = $7, photo_public_id = $8, updated_at = NOW()
		WHERE roll = $1
	`, s.Roll, s.Name, s.Branch, s.DOB, s.IssueValid, s.PINHash, s.PhotoURL, s.PhotoPublicID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// UpdatePIN replaces only the PIN hash.
func (r *Repository) UpdatePIN(ctx context.Context, roll, pinHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE students SET pin_hash = $2, updated_at = NOW() WHERE roll = $1`, roll, pinHash)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Delete removes a student and its attendance in one transaction.
func (r *Repository) Delete(ctx context.Context, roll string) error {
	return store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE roll = $1`, roll); err != nil {
			return fmt.Errorf("delete attendance: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE roll = $1`, roll)
		if err != nil {
			return fmt.Errorf("delete student: %w", err)
		}
		return expectOne(res)
	})
}

// Cohorts lists every student's issue-valid string for the expiry sweep.
func (r *Repository) Cohorts(ctx context.Context) ([]Cohort, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT roll, issue_valid, photo_public_id FROM students ORDER BY roll`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Cohort
	for rows.Next() {
		var c Cohort
		if err := rows.Scan(&c.Roll, &c.IssueValid, &c.PhotoPublicID); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("Student not found")
	}
	return nil
}
