package student

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"rollbook/internal/apperr"
	"rollbook/internal/auth"
	"rollbook/internal/calendar"
	"rollbook/internal/photo"
)

// Store is the persistence the service needs.
type Store interface {
	Get(ctx context.Context, roll string) (Student, error)
	List(ctx context.Context, f Filter, today calendar.Date) ([]Student, error)
	Create(ctx context.Context, s Student) error
	Update(ctx context.Context, s Student) error
	UpdatePIN(ctx context.Context, roll, pinHash string) error
	Delete(ctx context.Context, roll string) error
	Cohorts(ctx context.Context) ([]Cohort, error)
}

// Uploader stores photo bytes on the image host.
type Uploader interface {
	Upload(ctx context.Context, body io.Reader, filename string) (photo.Image, error)
}

// Discarder schedules removal of an image that is no longer referenced.
type Discarder interface {
	Discard(ctx context.Context, publicID string)
}

// Upload is a photo file received from a client.
type Upload struct {
	Filename string
	Body     io.Reader
}

// CreateInput is the raw admin form for a new student.
type CreateInput struct {
	Roll       string
	Name       string
	Branch     string
	DOB        string
	IssueValid string
	PIN        string
	Photo      *Upload
}

// UpdateInput changes only the fields that are non-nil and not blank.
type UpdateInput struct {
	Name       *string
	Branch     *string
	DOB        *string
	IssueValid *string
	PIN        *string
	Photo      *Upload
}

// Service owns the student record lifecycle.
type Service struct {
	store    Store
	uploader Uploader
	janitor  Discarder
	clock    calendar.Clock
	log      *slog.Logger
}

// NewService wires a student service.
func NewService(store Store, uploader Uploader, janitor Discarder, clock calendar.Clock, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, uploader: uploader, janitor: janitor, clock: clock, log: log}
}

// Create validates the form, uploads the photo and inserts the record.
func (s *Service) Create(ctx context.Context, in CreateInput) (Student, error) {
	st := Student{
		Roll:       NormalizeRoll(in.Roll),
		Name:       NormalizeName(in.Name),
		Branch:     strings.TrimSpace(in.Branch),
		IssueValid: strings.TrimSpace(in.IssueValid),
		EnrolledOn: s.clock.Today(),
	}
	switch {
	case st.Roll == "":
		return Student{}, apperr.Validation("roll is required")
	case st.Name == "":
		return Student{}, apperr.Validation("name is required")
	case st.Branch == "":
		return Student{}, apperr.Validation("branch is required")
	}
	dob, err := calendar.Parse(in.DOB)
	if err != nil {
		return Student{}, err
	}
	st.DOB = dob
	if _, err := calendar.ParseCohort(st.IssueValid); err != nil {
		return Student{}, err
	}
	if st.PINHash, err = auth.HashPIN(in.PIN); err != nil {
		return Student{}, err
	}
	if in.Photo == nil {
		return Student{}, apperr.Validation("photo is required")
	}

	_, err = s.store.Get(ctx, st.Roll)
	switch {
	case err == nil:
		return Student{}, apperr.Conflict("Roll number already exists")
	case !errors.Is(err, apperr.ErrNotFound):
		return Student{}, err
	}

	img, err := s.uploader.Upload(ctx, in.Photo.Body, photoName(st.Roll, in.Photo.Filename))
	if err != nil {
		return Student{}, err
	}
	st.PhotoURL, st.PhotoPublicID = img.URL, img.PublicID

	if err := s.store.Create(ctx, st); err != nil {
		s.janitor.Discard(ctx, img.PublicID)
		return Student{}, err
	}
	s.log.InfoContext(ctx, "student created", "roll", st.Roll)
	return st, nil
}

// Get returns one student.
func (s *Service) Get(ctx context.Context, roll string) (Student, error) {
	return s.store.Get(ctx, NormalizeRoll(roll))
}

// List returns students matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Student, error) {
	if f.LastYears < 0 {
		return nil, apperr.Validation("lastYears must not be negative")
	}
	return s.store.List(ctx, f, s.clock.Today())
}

// Update applies the provided fields. A new photo replaces the old one,
// whose external copy is discarded after the row is saved.
func (s *Service) Update(ctx context.Context, roll string, in UpdateInput) (Student, error) {
	st, err := s.store.Get(ctx, NormalizeRoll(roll))
	if err != nil {
		return Student{}, err
	}
	if v, ok := provided(in.Name); ok {
		st.Name = NormalizeName(v)
	}
	if v, ok := provided(in.Branch); ok {
		st.Branch = v
	}
	if v, ok := provided(in.DOB); ok {
		if st.DOB, err = calendar.Parse(v); err != nil {
			return Student{}, err
		}
	}
	if v, ok := provided(in.IssueValid); ok {
		if _, err := calendar.ParseCohort(v); err != nil {
			return Student{}, err
		}
		st.IssueValid = v
	}
	if v, ok := provided(in.PIN); ok {
		if st.PINHash, err = auth.HashPIN(v); err != nil {
			return Student{}, err
		}
	}

	oldPublicID := ""
	if in.Photo != nil {
		img, err := s.uploader.Upload(ctx, in.Photo.Body, photoName(st.Roll, in.Photo.Filename))
		if err != nil {
			return Student{}, err
		}
		oldPublicID = st.PhotoPublicID
		st.PhotoURL, st.PhotoPublicID = img.URL, img.PublicID
	}

	if err := s.store.Update(ctx, st); err != nil {
		if in.Photo != nil {
			s.janitor.Discard(ctx, st.PhotoPublicID)
		}
		return Student{}, err
	}
	if oldPublicID != "" && oldPublicID != st.PhotoPublicID {
		s.janitor.Discard(ctx, oldPublicID)
	}
	s.log.InfoContext(ctx, "student updated", "roll", st.Roll)
	return st, nil
}

// Delete removes the student, its attendance and its photo.
func (s *Service) Delete(ctx context.Context, roll string) error {
	st, err := s.store.Get(ctx, NormalizeRoll(roll))
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, st.Roll); err != nil {
		return err
	}
	s.janitor.Discard(ctx, st.PhotoPublicID)
	s.log.InfoContext(ctx, "student deleted", "roll", st.Roll)
	return nil
}

// PurgeExpired deletes every student whose cohort ended before today.
// Unparsable cohorts and individual delete failures are logged and skipped.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	cohorts, err := s.store.Cohorts(ctx)
	if err != nil {
		return 0, err
	}
	today := s.clock.Today()
	deleted := 0
	for _, c := range cohorts {
		parsed, err := calendar.ParseCohort(c.IssueValid)
		if err != nil {
			s.log.WarnContext(ctx, "skipping student with unparsable issue_valid", "roll", c.Roll, "issue_valid", c.IssueValid)
			continue
		}
		if !parsed.Expired(today) {
			continue
		}
		if err := s.store.Delete(ctx, c.Roll); err != nil {
			s.log.ErrorContext(ctx, "expired student not deleted", "roll", c.Roll, "error", err)
			continue
		}
		s.janitor.Discard(ctx, c.PhotoPublicID)
		deleted++
	}
	s.log.InfoContext(ctx, "expired students purged", "deleted", deleted)
	return deleted, nil
}

// Authenticate checks a roll/PIN pair. Unknown rolls and wrong PINs are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, roll, pin string) (Student, error) {
	st, err := s.store.Get(ctx, NormalizeRoll(roll))
	if errors.Is(err, apperr.ErrNotFound) {
		return Student{}, apperr.Unauthorized("Invalid roll or PIN")
	}
	if err != nil {
		return Student{}, err
	}
	if !auth.CheckSecret(st.PINHash, pin) {
		return Student{}, apperr.Unauthorized("Invalid roll or PIN")
	}
	return st, nil
}

// ResetPIN sets a new PIN after confirming the date of birth.
func (s *Service) ResetPIN(ctx context.Context, roll, dob, newPIN string) error {
	hash, err := auth.HashPIN(newPIN)
	if err != nil {
		return err
	}
	d, err := calendar.Parse(dob)
	if err != nil {
		return err
	}
	st, err := s.store.Get(ctx, NormalizeRoll(roll))
	if err != nil {
		return err
	}
	if !st.DOB.Equal(d) {
		return apperr.Unauthorized("DOB does not match")
	}
	if err := s.store.UpdatePIN(ctx, st.Roll, hash); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "student PIN reset", "roll", st.Roll)
	return nil
}

// Resolve maps a student token subject to a principal.
func (s *Service) Resolve(ctx context.Context, subject string) (auth.Principal, error) {
	st, err := s.store.Get(ctx, subject)
	if err != nil {
		return auth.Principal{}, err
	}
	return auth.Principal{ID: st.Roll, Role: auth.RoleStudent, Name: st.Name}, nil
}

func photoName(roll, filename string) string {
	if filename == "" {
		return roll + ".jpg"
	}
	return filename
}

// provided reports the trimmed value of an optional field. Blank counts as absent.
func provided(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	v := strings.TrimSpace(*p)
	return v, v != ""
}
