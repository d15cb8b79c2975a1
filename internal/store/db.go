package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(ctx)
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// Healthy pings the database.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// WithTx runs fn inside a transaction, committing on success.
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS admins (
	user_id       TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	answer1_hash  TEXT NOT NULL,
	answer2_hash  TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS students (
	roll            VARCHAR(20) PRIMARY KEY,
	name            VARCHAR(100) NOT NULL,
	branch          VARCHAR(50) NOT NULL,
	dob             DATE NOT NULL,
	issue_valid     VARCHAR(20) NOT NULL,
	pin_hash        TEXT NOT NULL,
	photo_url       TEXT NOT NULL DEFAULT '',
	photo_public_id TEXT NOT NULL DEFAULT '',
	enrolled_on     DATE NOT NULL DEFAULT CURRENT_DATE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS attendance (
	id         UUID PRIMARY KEY,
	roll       VARCHAR(20) NOT NULL REFERENCES students(roll) ON DELETE CASCADE,
	date       DATE NOT NULL,
	time       VARCHAR(20) NOT NULL,
	status     VARCHAR(10) NOT NULL CHECK (status IN ('Present', 'Absent')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (roll, date)
);

CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance (date);
CREATE INDEX IF NOT EXISTS idx_students_branch ON students (branch);
`
