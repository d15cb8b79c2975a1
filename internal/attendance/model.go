package attendance

import "rollbook/internal/calendar"

// Status of a student on a day.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// Record is one attendance row. There is at most one per (roll, date).
type Record struct {
	ID     string        `json:"id"`
	Roll   string        `json:"roll"`
	Date   calendar.Date `json:"date"`
	Time   string        `json:"time"`
	Status Status        `json:"status"`
}

// Order selects the admin listing order.
type Order int

const (
	ByDate Order = iota // (date, roll)
	ByRoll              // (roll, date)
)

// Filter is the admin listing query. Empty strings add no predicate.
type Filter struct {
	Roll        string
	Status      string
	Range       calendar.Range
	CohortStart int // 0 means any cohort
	Order       Order
}

// HistoryFilter is a student's view of their own records.
type HistoryFilter struct {
	Roll      string
	Range     calendar.Range
	Status    string
	SortBy    string // date, status or time
	Ascending bool
}

// AnalysisFilter selects the student set and window for percentages.
type AnalysisFilter struct {
	Branch      string
	CohortStart int
	Roll        string
	Range       calendar.Range
}

// PresenceCount is a student with its number of Present days in a window.
type PresenceCount struct {
	Roll    string
	Name    string
	Present int
}

// Summary is one row of the percentage report.
type Summary struct {
	Roll       string  `json:"roll"`
	Name       string  `json:"name"`
	Percentage float64 `json:"attendance_percentage"`
}

// Analysis is the percentage report together with the query that produced it.
type Analysis struct {
	Range            calendar.Range
	TotalWorkingDays int
	Rows             []Summary
}
