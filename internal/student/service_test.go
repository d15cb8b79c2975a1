package student

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"rollbook/internal/apperr"
	"rollbook/internal/auth"
	"rollbook/internal/calendar"
	"rollbook/internal/photo"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func fixedClock() calendar.Clock {
	return calendar.Clock{
		Now:      func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) },
		Location: time.UTC,
	}
}

type memStore struct {
	rows      map[string]Student
	failWrite error
	failDel   map[string]bool
}

func newMemStore(students ...Student) *memStore {
	m := &memStore{rows: map[string]Student{}, failDel: map[string]bool{}}
	for _, s := range students {
		m.rows[s.Roll] = s
	}
	return m
}

func (m *memStore) Get(ctx context.Context, roll string) (Student, error) {
	s, ok := m.rows[roll]
	if !ok {
		return Student{}, apperr.NotFound("Student not found")
	}
	return s, nil
}

func (m *memStore) List(ctx context.Context, f Filter, today calendar.Date) ([]Student, error) {
	var res []Student
	for _, s := range m.rows {
		if f.Branch != "" && s.Branch != f.Branch {
			continue
		}
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Roll < res[j].Roll })
	return res, nil
}

func (m *memStore) Create(ctx context.Context, s Student) error {
	if m.failWrite != nil {
		return m.failWrite
	}
	m.rows[s.Roll] = s
	return nil
}

func (m *memStore) Update(ctx context.Context, s Student) error {
	if m.failWrite != nil {
		return m.failWrite
	}
	m.rows[s.Roll] = s
	return nil
}

func (m *memStore) UpdatePIN(ctx context.Context, roll, pinHash string) error {
	s := m.rows[roll]
	s.PINHash = pinHash
	m.rows[roll] = s
	return nil
}

func (m *memStore) Delete(ctx context.Context, roll string) error {
	if m.failDel[roll] {
		return errors.New("db down")
	}
	if _, ok := m.rows[roll]; !ok {
		return apperr.NotFound("Student not found")
	}
	delete(m.rows, roll)
	return nil
}

func (m *memStore) Cohorts(ctx context.Context) ([]Cohort, error) {
	var res []Cohort
	for _, s := range m.rows {
		res = append(res, Cohort{Roll: s.Roll, IssueValid: s.IssueValid, PhotoPublicID: s.PhotoPublicID})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Roll < res[j].Roll })
	return res, nil
}

type fakeUploader struct {
	calls int
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, body io.Reader, filename string) (photo.Image, error) {
	f.calls++
	if f.err != nil {
		return photo.Image{}, f.err
	}
	return photo.Image{URL: "https://img/" + filename, PublicID: "students/" + filename}, nil
}

type fakeJanitor struct {
	discarded []string
}

func (f *fakeJanitor) Discard(ctx context.Context, publicID string) {
	if publicID != "" {
		f.discarded = append(f.discarded, publicID)
	}
}

func newTestService(store *memStore) (*Service, *fakeUploader, *fakeJanitor) {
	up := &fakeUploader{}
	jan := &fakeJanitor{}
	return NewService(store, up, jan, fixedClock(), quiet), up, jan
}

func validInput() CreateInput {
	return CreateInput{
		Roll:       " cs101 ",
		Name:       "ada   LOVELACE",
		Branch:     "CSE",
		DOB:        "2004-05-06",
		IssueValid: "2023-2027",
		PIN:        "1234",
		Photo:      &Upload{Filename: "cs101.jpg", Body: strings.NewReader("jpeg")},
	}
}

func seeded(t *testing.T, roll, issueValid string) Student {
	t.Helper()
	hash, err := auth.HashPIN("1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return Student{
		Roll:          roll,
		Name:          "Seed " + roll,
		Branch:        "CSE",
		DOB:           calendar.Ymd(2004, time.May, 6),
		IssueValid:    issueValid,
		PINHash:       hash,
		PhotoURL:      "https://img/" + roll,
		PhotoPublicID: "students/" + roll,
	}
}

func TestCreateNormalizesAndHashes(t *testing.T) {
	store := newMemStore()
	svc, up, _ := newTestService(store)

	st, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if st.Roll != "CS101" || st.Name != "Ada Lovelace" {
		t.Fatalf("expected normalized roll and name, got %q %q", st.Roll, st.Name)
	}
	if st.PINHash == "1234" || !auth.CheckSecret(st.PINHash, "1234") {
		t.Fatalf("PIN must be stored hashed")
	}
	if st.PhotoURL != "https://img/cs101.jpg" || st.PhotoPublicID != "students/cs101.jpg" {
		t.Fatalf("unexpected photo %q %q", st.PhotoURL, st.PhotoPublicID)
	}
	if !st.EnrolledOn.Equal(calendar.Ymd(2026, time.October, 15)) {
		t.Fatalf("expected enrolled_on today, got %s", st.EnrolledOn)
	}
	if up.calls != 1 {
		t.Fatalf("expected one upload, got %d", up.calls)
	}
	if _, ok := store.rows["CS101"]; !ok {
		t.Fatalf("student not persisted")
	}
}

func TestCreateRejectsBeforeUpload(t *testing.T) {
	cases := map[string]func(*CreateInput){
		"short pin":    func(in *CreateInput) { in.PIN = "123" },
		"alpha pin":    func(in *CreateInput) { in.PIN = "12a4" },
		"bad dob":      func(in *CreateInput) { in.DOB = "06/05/2004" },
		"bad cohort":   func(in *CreateInput) { in.IssueValid = "2023" },
		"missing roll": func(in *CreateInput) { in.Roll = "  " },
		"no photo":     func(in *CreateInput) { in.Photo = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			svc, up, _ := newTestService(newMemStore())
			in := validInput()
			mutate(&in)
			_, err := svc.Create(context.Background(), in)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if up.calls != 0 {
				t.Fatalf("upload must not happen on invalid input")
			}
		})
	}
}

func TestCreateDuplicateRollConflicts(t *testing.T) {
	svc, up, _ := newTestService(newMemStore(seeded(t, "CS101", "2023-2027")))
	_, err := svc.Create(context.Background(), validInput())
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if up.calls != 0 {
		t.Fatalf("upload must not happen for duplicate roll")
	}
}

func TestCreateUploadFailurePropagates(t *testing.T) {
	store := newMemStore()
	svc, up, _ := newTestService(store)
	up.err = apperr.Upstream("photo upload failed", errors.New("502"))
	_, err := svc.Create(context.Background(), validInput())
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if len(store.rows) != 0 {
		t.Fatalf("no row may be written when the upload fails")
	}
}

func TestCreateInsertFailureDiscardsPhoto(t *testing.T) {
	store := newMemStore()
	store.failWrite = errors.New("db down")
	svc, _, jan := newTestService(store)
	if _, err := svc.Create(context.Background(), validInput()); err == nil {
		t.Fatalf("expected insert error")
	}
	if len(jan.discarded) != 1 || jan.discarded[0] != "students/cs101.jpg" {
		t.Fatalf("expected orphan upload to be discarded, got %v", jan.discarded)
	}
}

func TestUpdatePartialAndPhotoReplacement(t *testing.T) {
	store := newMemStore(seeded(t, "CS101", "2023-2027"))
	svc, _, jan := newTestService(store)

	name := "grace hopper"
	pin := "4321"
	st, err := svc.Update(context.Background(), "cs101", UpdateInput{
		Name:  &name,
		PIN:   &pin,
		Photo: &Upload{Filename: "new.jpg", Body: strings.NewReader("jpeg")},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if st.Name != "Grace Hopper" || st.Branch != "CSE" {
		t.Fatalf("unexpected fields %+v", st)
	}
	if !auth.CheckSecret(store.rows["CS101"].PINHash, "4321") {
		t.Fatalf("PIN not updated")
	}
	if len(jan.discarded) != 1 || jan.discarded[0] != "students/CS101" {
		t.Fatalf("expected old photo discarded, got %v", jan.discarded)
	}
}

func TestUpdateValidation(t *testing.T) {
	svc, _, _ := newTestService(newMemStore(seeded(t, "CS101", "2023-2027")))
	bad := "99"
	if _, err := svc.Update(context.Background(), "CS101", UpdateInput{PIN: &bad}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Update(context.Background(), "XX1", UpdateInput{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateIgnoresBlankFields(t *testing.T) {
	store := newMemStore(seeded(t, "CS101", "2023-2027"))
	svc, _, _ := newTestService(store)

	blank, spaces, branch := "", "   ", "ECE"
	st, err := svc.Update(context.Background(), "CS101", UpdateInput{
		Name:       &blank,
		Branch:     &branch,
		DOB:        &spaces,
		IssueValid: &blank,
		PIN:        &blank,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if st.Branch != "ECE" {
		t.Fatalf("expected branch change, got %q", st.Branch)
	}
	row := store.rows["CS101"]
	if row.Name != "Seed CS101" || !row.DOB.Equal(calendar.Ymd(2004, time.May, 6)) || row.IssueValid != "2023-2027" {
		t.Fatalf("blank fields must keep stored values, got %+v", row)
	}
	if !auth.CheckSecret(row.PINHash, "1234") {
		t.Fatalf("blank PIN must keep the stored PIN")
	}
}

func TestDeleteDiscardsPhoto(t *testing.T) {
	store := newMemStore(seeded(t, "CS101", "2023-2027"))
	svc, _, jan := newTestService(store)
	if err := svc.Delete(context.Background(), "cs101"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.rows) != 0 {
		t.Fatalf("student not removed")
	}
	if len(jan.discarded) != 1 {
		t.Fatalf("expected photo cleanup, got %v", jan.discarded)
	}
	if err := svc.Delete(context.Background(), "cs101"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	store := newMemStore(
		seeded(t, "A1", "2019-2023"),
		seeded(t, "A2", "2022-25"),
		seeded(t, "B1", "2023-2027"),
		seeded(t, "B2", "2025-2026"),
		seeded(t, "C1", "garbage"),
		seeded(t, "C2", "2018-2022"),
	)
	store.failDel["C2"] = true
	svc, _, jan := newTestService(store)

	n, err := svc.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deletions, got %d", n)
	}
	for _, roll := range []string{"B1", "B2", "C1", "C2"} {
		if _, ok := store.rows[roll]; !ok {
			t.Fatalf("%s must survive", roll)
		}
	}
	if len(jan.discarded) != 2 {
		t.Fatalf("expected 2 photo cleanups, got %v", jan.discarded)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(newMemStore(seeded(t, "CS101", "2023-2027")))
	if _, err := svc.Authenticate(context.Background(), "cs101", "1234"); err != nil {
		t.Fatalf("expected login to succeed: %v", err)
	}
	for _, tc := range []struct{ roll, pin string }{{"CS101", "1235"}, {"NOPE", "1234"}} {
		_, err := svc.Authenticate(context.Background(), tc.roll, tc.pin)
		if !errors.Is(err, apperr.ErrUnauthorized) {
			t.Fatalf("%s/%s: expected unauthorized, got %v", tc.roll, tc.pin, err)
		}
	}
}

func TestResetPIN(t *testing.T) {
	store := newMemStore(seeded(t, "CS101", "2023-2027"))
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	if err := svc.ResetPIN(ctx, "CS101", "2004-05-07", "9999"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected DOB mismatch, got %v", err)
	}
	if err := svc.ResetPIN(ctx, "CS101", "2004-05-06", "99"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected PIN validation error, got %v", err)
	}
	if err := svc.ResetPIN(ctx, "ZZ9", "2004-05-06", "9999"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.ResetPIN(ctx, "cs101", "2004-05-06", "9999"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "CS101", "9999"); err != nil {
		t.Fatalf("new PIN must work: %v", err)
	}
}

func TestResolve(t *testing.T) {
	svc, _, _ := newTestService(newMemStore(seeded(t, "CS101", "2023-2027")))
	p, err := svc.Resolve(context.Background(), "CS101")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.ID != "CS101" || p.Role != auth.RoleStudent {
		t.Fatalf("unexpected principal %+v", p)
	}
	if _, err := svc.Resolve(context.Background(), "GONE"); err == nil {
		t.Fatalf("expected deleted student to be rejected")
	}
}
