package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an update or delete target does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrIneligibleClass is returned when an enrollment or transfer targets a
	// class that has already ended.
	ErrIneligibleClass = errors.New("class is not open for enrollment")

	// ErrInvalidDate is returned for dates that are not real calendar dates
	// in DD/MM/YYYY form.
	ErrInvalidDate = errors.New("date must be a valid DD/MM/YYYY calendar date")

	// ErrDuplicateID is returned when an insert collides with an existing id.
	ErrDuplicateID = errors.New("id already exists")

	// ErrClassRef is returned when a student row references a class id that
	// does not exist.
	ErrClassRef = errors.New("referenced class does not exist")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func required(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}
