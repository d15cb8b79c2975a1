package attendance

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"testing"
	"time"

	"rollbook/internal/calendar"
)

// stubDB answers every query with rolls and every exec with one affected row,
// or affectedErr when set.
type stubDB struct {
	rolls       []string
	affectedErr error
	committed   bool
	rolledBack  bool
}

func (s *stubDB) Connect(context.Context) (driver.Conn, error) { return stubConn{s}, nil }
func (s *stubDB) Open(string) (driver.Conn, error)             { return stubConn{s}, nil }
func (s *stubDB) Driver() driver.Driver                        { return s }

type stubConn struct{ db *stubDB }

func (c stubConn) Prepare(string) (driver.Stmt, error) { return stubStmt(c), nil }
func (c stubConn) Close() error                        { return nil }
func (c stubConn) Begin() (driver.Tx, error)           { return stubTx(c), nil }

type stubTx struct{ db *stubDB }

func (t stubTx) Commit() error {
	t.db.committed = true
	return nil
}

func (t stubTx) Rollback() error {
	t.db.rolledBack = true
	return nil
}

type stubStmt struct{ db *stubDB }

func (s stubStmt) Close() error  { return nil }
func (s stubStmt) NumInput() int { return -1 }
func (s stubStmt) Exec([]driver.Value) (driver.Result, error) {
	return stubResult{s.db.affectedErr}, nil
}
func (s stubStmt) Query([]driver.Value) (driver.Rows, error) {
	return &stubRows{rolls: s.db.rolls}, nil
}

type stubResult struct{ err error }

func (r stubResult) LastInsertId() (int64, error) { return 0, nil }
func (r stubResult) RowsAffected() (int64, error) { return 1, r.err }

type stubRows struct {
	rolls []string
	i     int
}

func (r *stubRows) Columns() []string { return []string{"roll"} }
func (r *stubRows) Close() error      { return nil }
func (r *stubRows) Next(dest []driver.Value) error {
	if r.i >= len(r.rolls) {
		return io.EOF
	}
	dest[0] = r.rolls[r.i]
	r.i++
	return nil
}

func TestMarkAbsentCountsInserts(t *testing.T) {
	stub := &stubDB{rolls: []string{"CS101", "CS102"}}
	db := sql.OpenDB(stub)
	defer db.Close()

	n, err := NewRepository(db).MarkAbsent(context.Background(), calendar.Ymd(2026, time.October, 15), "18:00:00")
	if err != nil {
		t.Fatalf("mark absent: %v", err)
	}
	if n != 2 || !stub.committed {
		t.Fatalf("expected 2 inserts committed, got %d committed=%v", n, stub.committed)
	}
}

func TestMarkAbsentRollsBackOnRowsAffectedError(t *testing.T) {
	stub := &stubDB{rolls: []string{"CS101"}, affectedErr: errors.New("rows affected unavailable")}
	db := sql.OpenDB(stub)
	defer db.Close()

	n, err := NewRepository(db).MarkAbsent(context.Background(), calendar.Ymd(2026, time.October, 15), "18:00:00")
	if !errors.Is(err, stub.affectedErr) || n != 0 {
		t.Fatalf("expected rows affected error, got n=%d err=%v", n, err)
	}
	if !stub.rolledBack || stub.committed {
		t.Fatalf("expected rollback, committed=%v rolledBack=%v", stub.committed, stub.rolledBack)
	}
}
