package registry

import (
	"strings"
	"time"
)

// Class is a scheduled training offering with a date range.
type Class struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	Schedule           string    `json:"schedule,omitempty"`
	Status             string    `json:"status"`
	Price              *float64  `json:"price,omitempty"`
	Trainers           []string  `json:"trainers"`
	CertificatesIssued bool      `json:"certificates_issued"`
	CreatedAt          time.Time `json:"created_at"`
}

// Student is an enrollment record linked to exactly one class. ClassName is
// a denormalized copy of the linked class name, refreshed whenever ClassID
// changes and never edited on its own.
type Student struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	DOB            time.Time `json:"dob"`
	Organization   string    `json:"organization"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone"`
	ClassID        string    `json:"class_id"`
	ClassName      string    `json:"class_name"`
	IDType         string    `json:"id_type"`
	IDFilePath     string    `json:"id_file_path,omitempty"`
	IDFileName     string    `json:"id_file_name,omitempty"`
	EnrollmentDate time.Time `json:"enrollment_date"`
}

// IDTypes are the accepted identity document kinds.
var IDTypes = []string{"National ID", "Work ID", "Driving Permit"}

// DefaultStatus is assigned to every newly scheduled class.
const DefaultStatus = "Scheduled"

// State is the temporal classification of a class, derived from the current
// calendar day and never stored.
type State string

const (
	StateFuture State = "Future"
	StateActive State = "Active"
	StateEnded  State = "Ended"
)

// ClassState classifies a class against the given instant at calendar-day
// granularity. A class starting or ending exactly today is Active.
func ClassState(c Class, now time.Time) State {
	today := dateOnly(now)
	if dateOnly(c.StartDate).After(today) {
		return StateFuture
	}
	if dateOnly(c.EndDate).Before(today) {
		return StateEnded
	}
	return StateActive
}

// Eligible reports whether a class may accept enrollments or transfers now,
// meaning it is Future or Active.
func Eligible(c Class, now time.Time) bool {
	return ClassState(c, now) != StateEnded
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

const dobLayout = "02/01/2006"

// ParseDOB parses a date of birth in strict DD/MM/YYYY form. Inputs that are
// not exactly ten characters or not a real calendar date are rejected.
func ParseDOB(s string) (time.Time, error) {
	if len(s) != len(dobLayout) {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.Parse(dobLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// FormatDOB renders a date in DD/MM/YYYY.
func FormatDOB(t time.Time) string {
	return t.Format(dobLayout)
}

// SplitTrainers turns comma-separated input into a trimmed list of non-empty
// names, preserving input order.
func SplitTrainers(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validIDType(s string) bool {
	for _, t := range IDTypes {
		if t == s {
			return true
		}
	}
	return false
}
