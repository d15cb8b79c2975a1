// Package storetest opens a scratch Postgres database for integration tests.
package storetest

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"rollbook/internal/store"
)

// Open connects to TEST_DATABASE_URL, applies the schema and empties every
// table. The test is skipped when the variable is unset.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := store.NewDB(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(ctx, db.Client); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Client.ExecContext(ctx, `TRUNCATE attendance, students, admins`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db.Client
}
