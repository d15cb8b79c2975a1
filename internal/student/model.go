package student

import (
	"strings"
	"unicode"

	"rollbook/internal/calendar"
)

// Student is an enrolled student's identity record.
type Student struct {
	Roll          string        `json:"roll"`
	Name          string        `json:"name"`
	Branch        string        `json:"branch"`
	DOB           calendar.Date `json:"dob"`
	IssueValid    string        `json:"issue_valid"`
	PhotoURL      string        `json:"photo"`
	PhotoPublicID string        `json:"-"`
	EnrolledOn    calendar.Date `json:"enrolled_on"`
	PINHash       string        `json:"-"`
}

// Profile is the student-facing view of a record.
type Profile struct {
	Roll       string        `json:"roll"`
	Name       string        `json:"name"`
	Branch     string        `json:"branch"`
	DOB        calendar.Date `json:"dob"`
	IssueValid string        `json:"issue_valid"`
	Photo      string        `json:"photo"`
}

// Profile strips administrative fields.
func (s Student) Profile() Profile {
	return Profile{
		Roll:       s.Roll,
		Name:       s.Name,
		Branch:     s.Branch,
		DOB:        s.DOB,
		IssueValid: s.IssueValid,
		Photo:      s.PhotoURL,
	}
}

// Filter selects students for listing. Zero-valued fields add no predicate.
type Filter struct {
	Name      string
	Branch    string
	DOB       *calendar.Date
	Roll      string
	LastYears int
	Page      int
	PageSize  int
}

// Cohort is the slice of a student needed by the expiry sweep.
type Cohort struct {
	Roll          string
	IssueValid    string
	PhotoPublicID string
}

// NormalizeRoll trims and upper-cases a roll number.
func NormalizeRoll(roll string) string {
	return strings.ToUpper(strings.TrimSpace(roll))
}

// NormalizeName collapses whitespace and capitalises each word.
func NormalizeName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
