package attendance

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"rollbook/internal/calendar"
	"rollbook/internal/store"
)

const columns = `a.id, a.roll, a.date, a.time, a.status`

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// StudentExists reports whether roll is enrolled.
func (r *Repository) StudentExists(ctx context.Context, roll string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM students WHERE roll = $1)`, roll).Scan(&ok)
	return ok, err
}

// Insert writes rec unless a record for (roll, date) already exists.
// It reports whether a row was created.
func (r *Repository) Insert(ctx context.Context, rec Record) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (id, roll, date, time, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (roll, date) DO NOTHING
	`, rec.ID, rec.Roll, rec.Date, rec.Time, string(rec.Status))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func listQuery(f Filter) (string, []any) {
	var w store.Where
	w.And(`a.date BETWEEN ? AND ?`, f.Range.From, f.Range.To)
	if f.Roll != "" {
		w.And(`a.roll = ?`, f.Roll)
	}
	if f.Status != "" {
		w.And(`a.status ILIKE ?`, store.Contains(f.Status))
	}
	if f.CohortStart > 0 {
		w.And(`s.issue_valid LIKE ?`, fmt.Sprintf("%d-%%", f.CohortStart))
	}
	order := ` ORDER BY a.date ASC, a.roll ASC`
	if f.Order == ByRoll {
		order = ` ORDER BY a.roll ASC, a.date ASC`
	}
	return `SELECT ` + columns + ` FROM attendance a JOIN students s ON s.roll = a.roll` + w.SQL() + order, w.Args()
}

// List returns records matching every provided filter.
func (r *Repository) List(ctx context.Context, f Filter) ([]Record, error) {
	query, args := listQuery(f)
	return r.query(ctx, query, args...)
}

func historyQuery(f HistoryFilter) (string, []any) {
	var w store.Where
	w.And(`a.roll = ?`, f.Roll)
	w.And(`a.date BETWEEN ? AND ?`, f.Range.From, f.Range.To)
	if f.Status != "" {
		w.And(`a.status ILIKE ?`, store.Contains(f.Status))
	}
	col := "a.date"
	switch f.SortBy {
	case "status":
		col = "a.status"
	case "time":
		col = "a.time"
	}
	dir := "DESC"
	if f.Ascending {
		dir = "ASC"
	}
	order := ` ORDER BY ` + col + ` ` + dir
	if col != "a.date" {
		order += `, a.date ` + dir
	}
	return `SELECT ` + columns + ` FROM attendance a` + w.SQL() + order, w.Args()
}

// History returns one student's records.
func (r *Repository) History(ctx context.Context, f HistoryFilter) ([]Record, error) {
	query, args := historyQuery(f)
	return r.query(ctx, query, args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Roll, &rec.Date, &rec.Time, &rec.Status); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// MarkAbsent inserts an Absent record on day for every student without one.
func (r *Repository) MarkAbsent(ctx context.Context, day calendar.Date, at string) (int, error) {
	inserted := 0
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT s.roll FROM students s
			WHERE NOT EXISTS (SELECT 1 FROM attendance a WHERE a.roll = s.roll AND a.date = $1)
			ORDER BY s.roll
		`, day)
		if err != nil {
			return err
		}
		var missing []string
		for rows.Next() {
			var roll string
			if err := rows.Scan(&roll); err != nil {
				rows.Close()
				return err
			}
			missing = append(missing, roll)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, roll := range missing {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO attendance (id, roll, date, time, status)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (roll, date) DO NOTHING
			`, uuid.NewString(), roll, day, at, string(StatusAbsent))
			if err != nil {
				return fmt.Errorf("mark %s absent: %w", roll, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// DeleteBefore removes records dated strictly before cutoff.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff calendar.Date) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE date < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func presenceQuery(f AnalysisFilter) (string, []any) {
	var w store.Where
	from, to := w.Bind(f.Range.From), w.Bind(f.Range.To)
	if f.Branch != "" {
		w.And(`s.branch = ?`, f.Branch)
	}
	if f.CohortStart > 0 {
		w.And(`s.issue_valid LIKE ?`, fmt.Sprintf("%d-%%", f.CohortStart))
	}
	if f.Roll != "" {
		w.And(`s.roll = ?`, f.Roll)
	}
	return `SELECT s.roll, s.name, COUNT(a.id)
		FROM students s
		LEFT JOIN attendance a ON a.roll = s.roll AND a.status = 'Present' AND a.date BETWEEN ` + from + ` AND ` + to +
		w.SQL() + `
		GROUP BY s.roll, s.name
		ORDER BY s.roll ASC`, w.Args()
}

// PresenceCounts counts Present days per selected student, ordered by roll.
func (r *Repository) PresenceCounts(ctx context.Context, f AnalysisFilter) ([]PresenceCount, error) {
	query, args := presenceQuery(f)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []PresenceCount
	for rows.Next() {
		var pc PresenceCount
		if err := rows.Scan(&pc.Roll, &pc.Name, &pc.Present); err != nil {
			return nil, err
		}
		res = append(res, pc)
	}
	return res, rows.Err()
}
