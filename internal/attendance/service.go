package attendance

import (
	"context"
	"log/slog"
	"strings"

	"rollbook/internal/apperr"
	"rollbook/internal/calendar"
)

// Messages returned by Mark.
const (
	MsgMarked        = "Attendance marked as Present"
	MsgAlreadyMarked = "Attendance already marked"
)

const (
	historyDays   = 180
	retentionDays = 365
	timeLayout    = "15:04:05"
)

// Store is the persistence the service needs.
type Store interface {
	StudentExists(ctx context.Context, roll string) (bool, error)
	Insert(ctx context.Context, rec Record) (bool, error)
	List(ctx context.Context, f Filter) ([]Record, error)
	History(ctx context.Context, f HistoryFilter) ([]Record, error)
	MarkAbsent(ctx context.Context, day calendar.Date, at string) (int, error)
	DeleteBefore(ctx context.Context, cutoff calendar.Date) (int, error)
	PresenceCounts(ctx context.Context, f AnalysisFilter) ([]PresenceCount, error)
}

// ListParams are the raw admin listing parameters.
type ListParams struct {
	Roll       string
	Status     string
	FromDate   string
	ToDate     string
	IssueValid string
	OrderBy    string
}

// HistoryParams are the raw student app listing parameters.
type HistoryParams struct {
	StartDate string
	EndDate   string
	Status    string
	SortBy    string
	SortOrder string
}

// AnalysisParams are the raw percentage report parameters.
type AnalysisParams struct {
	Branch           string
	IssueValid       string
	Roll             string
	FromDate         string
	ToDate           string
	TotalWorkingDays int
}

// Service coordinates marking, listing, sweeps and analysis.
type Service struct {
	store Store
	clock calendar.Clock
	log   *slog.Logger
}

// NewService creates a service backed by a store.
func NewService(store Store, clock calendar.Clock, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, clock: clock, log: log}
}

// Mark records the student as present today. The date must be today; a day
// that already has a record is left untouched and reported with MsgAlreadyMarked.
func (s *Service) Mark(ctx context.Context, roll, date, at string) (string, error) {
	d, err := calendar.Parse(date)
	if err != nil {
		return "", err
	}
	today := s.clock.Today()
	if !d.Equal(today) {
		return "", apperr.Validation("Invalid date: attendance can only be marked for %s", today)
	}
	roll = strings.ToUpper(strings.TrimSpace(roll))
	ok, err := s.store.StudentExists(ctx, roll)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperr.NotFound("Student not found")
	}
	at = strings.TrimSpace(at)
	if at == "" {
		at = s.clock.Instant().Format(timeLayout)
	}
	created, err := s.store.Insert(ctx, Record{Roll: roll, Date: today, Time: at, Status: StatusPresent})
	if err != nil {
		return "", err
	}
	if !created {
		return MsgAlreadyMarked, nil
	}
	s.log.InfoContext(ctx, "attendance marked", "roll", roll, "date", today.String())
	return MsgMarked, nil
}

// List returns records for the admin view.
func (s *Service) List(ctx context.Context, p ListParams) ([]Record, error) {
	from, to := calendar.DefaultWindow(s.clock.Today())
	rng, err := calendar.ParseRange(p.FromDate, p.ToDate, from, to)
	if err != nil {
		return nil, err
	}
	f := Filter{
		Roll:   strings.ToUpper(strings.TrimSpace(p.Roll)),
		Status: strings.TrimSpace(p.Status),
		Range:  rng,
	}
	if f.CohortStart, err = cohortStart(p.IssueValid); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(p.OrderBy)) {
	case "", "date":
		f.Order = ByDate
	case "roll":
		f.Order = ByRoll
	default:
		return nil, apperr.Validation("orderBy must be date or roll")
	}
	return s.store.List(ctx, f)
}

// History returns roll's own records, by default the last 180 days newest first.
func (s *Service) History(ctx context.Context, roll string, p HistoryParams) ([]Record, error) {
	today := s.clock.Today()
	rng, err := calendar.ParseRange(p.StartDate, p.EndDate, today.AddDays(-historyDays), today)
	if err != nil {
		return nil, err
	}
	f := HistoryFilter{Roll: roll, Range: rng, Status: strings.TrimSpace(p.Status)}
	switch sortBy := strings.ToLower(strings.TrimSpace(p.SortBy)); sortBy {
	case "", "date":
		f.SortBy = "date"
	case "status", "time":
		f.SortBy = sortBy
	default:
		return nil, apperr.Validation("sort_by must be date, status or time")
	}
	switch strings.ToLower(strings.TrimSpace(p.SortOrder)) {
	case "", "desc":
	case "asc":
		f.Ascending = true
	default:
		return nil, apperr.Validation("sort_order must be asc or desc")
	}
	return s.store.History(ctx, f)
}

// Analyze computes each selected student's presence percentage.
func (s *Service) Analyze(ctx context.Context, p AnalysisParams) (Analysis, error) {
	from, to := calendar.DefaultWindow(s.clock.Today())
	rng, err := calendar.ParseRange(p.FromDate, p.ToDate, from, to)
	if err != nil {
		return Analysis{}, err
	}
	f := AnalysisFilter{
		Branch: strings.TrimSpace(p.Branch),
		Roll:   strings.ToUpper(strings.TrimSpace(p.Roll)),
		Range:  rng,
	}
	if f.CohortStart, err = cohortStart(p.IssueValid); err != nil {
		return Analysis{}, err
	}
	counts, err := s.store.PresenceCounts(ctx, f)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{Range: rng, TotalWorkingDays: p.TotalWorkingDays, Rows: Summarize(counts, p.TotalWorkingDays)}, nil
}

// MarkAbsent inserts Absent for every student without a record today.
func (s *Service) MarkAbsent(ctx context.Context) (int, error) {
	now := s.clock.Instant()
	n, err := s.store.MarkAbsent(ctx, calendar.NewDate(now), now.Format(timeLayout))
	if err != nil {
		return 0, err
	}
	s.log.InfoContext(ctx, "absent students marked", "count", n, "date", calendar.NewDate(now).String())
	return n, nil
}

// CleanupOld deletes records older than the retention window.
func (s *Service) CleanupOld(ctx context.Context) (int, error) {
	cutoff := s.clock.Today().AddDays(-retentionDays)
	n, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.InfoContext(ctx, "old attendance deleted", "count", n, "before", cutoff.String())
	return n, nil
}

func cohortStart(issueValid string) (int, error) {
	if strings.TrimSpace(issueValid) == "" {
		return 0, nil
	}
	c, err := calendar.ParseCohort(issueValid)
	if err != nil {
		return 0, err
	}
	return c.Start, nil
}
