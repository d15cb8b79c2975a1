// Package calendar holds date-only values and the cohort ("issue-valid") format.
package calendar

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rollbook/internal/apperr"
)

// Layout is the only accepted wire format for dates.
const Layout = "2006-01-02"

// Date is a calendar day without a time of day. It is stored as midnight UTC.
type Date struct {
	time.Time
}

// NewDate returns the calendar day of t in t's own location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Ymd builds a date from its components.
func Ymd(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Parse reads a YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, apperr.Validation("invalid date %q, expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// ParseOr parses s, falling back to def when s is empty.
func ParseOr(s string, def Date) (Date, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return Parse(s)
}

func (d Date) String() string { return d.Format(Layout) }

// AddDays shifts the date by n days.
func (d Date) AddDays(n int) Date { return Date{d.Time.AddDate(0, 0, n)} }

func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner for DATE columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v)
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	case nil:
		*d = Date{}
		return nil
	}
	return fmt.Errorf("calendar: cannot scan %T into Date", src)
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Clock reports today's date in a fixed location.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// NewClock returns a clock reading the wall time in loc.
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return Clock{Now: time.Now, Location: loc}
}

// Instant returns the current time in the clock's location.
func (c Clock) Instant() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}

// Today returns the current calendar day.
func (c Clock) Today() Date { return NewDate(c.Instant()) }

// DefaultWindow is the range used when an attendance listing gives no dates:
// the first day of the month twelve months ago through today.
func DefaultWindow(today Date) (from, to Date) {
	return Ymd(today.Year()-1, today.Month(), 1), today
}

// Range is an inclusive date interval.
type Range struct {
	From Date
	To   Date
}

// ParseRange reads optional from/to strings, defaulting each side independently.
func ParseRange(from, to string, defFrom, defTo Date) (Range, error) {
	f, err := ParseOr(from, defFrom)
	if err != nil {
		return Range{}, err
	}
	t, err := ParseOr(to, defTo)
	if err != nil {
		return Range{}, err
	}
	if t.Before(f) {
		return Range{}, apperr.Validation("from_date %s is after to_date %s", f, t)
	}
	return Range{From: f, To: t}, nil
}

// Cohort is a parsed issue-valid string such as "2023-2027".
type Cohort struct {
	Start int
	End   int
}

// ParseCohort accepts "YYYY-YYYY" and the short form "YYYY-YY".
func ParseCohort(s string) (Cohort, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Cohort{}, apperr.Validation("invalid issue_valid %q, expected YYYY-YYYY", s)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return Cohort{}, apperr.Validation("invalid issue_valid %q, expected YYYY-YYYY", s)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil || (len(parts[1]) != 4 && len(parts[1]) != 2) {
		return Cohort{}, apperr.Validation("invalid issue_valid %q, expected YYYY-YYYY", s)
	}
	if end < 100 {
		end += 2000
	}
	if end < start {
		return Cohort{}, apperr.Validation("invalid issue_valid %q, end year before start year", s)
	}
	return Cohort{Start: start, End: end}, nil
}

// ExpiresOn is December 31 of the cohort's end year.
func (c Cohort) ExpiresOn() Date { return Ymd(c.End, time.December, 31) }

// Expired reports whether today is past the cohort's validity.
func (c Cohort) Expired(today Date) bool { return today.After(c.ExpiresOn()) }
