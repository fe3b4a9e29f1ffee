// Package validator provides input validation for the application
package validator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEmptyString is returned when a required string is empty or blank
	ErrEmptyString = errors.New("string cannot be empty")
	// ErrOutOfRange is returned when a number falls outside its allowed bounds
	ErrOutOfRange = errors.New("value out of range")
	// ErrNotNumber is returned when a numeric field cannot be parsed
	ErrNotNumber = errors.New("not a number")
)

// FieldError ties a validation failure to the field that caused it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ValidateNonEmpty validates that a string is not empty or whitespace only
func ValidateNonEmpty(field, s string) error {
	if strings.TrimSpace(s) == "" {
		return &FieldError{Field: field, Err: ErrEmptyString}
	}
	return nil
}

// ValidateRange validates that n lies within [lo, hi]
func ValidateRange(field string, n, lo, hi int) error {
	if n < lo || n > hi {
		return &FieldError{Field: field, Err: fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfRange, n, lo, hi)}
	}
	return nil
}

// ParseInt parses a decimal form value for field.
func ParseInt(field, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &FieldError{Field: field, Err: fmt.Errorf("%w: %q", ErrNotNumber, s)}
	}
	return n, nil
}

// Fields returns the names of every field that failed in err.
func Fields(err error) []string {
	var names []string
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if fe, ok := e.(*FieldError); ok {
			names = append(names, fe.Field)
			return
		}
		switch x := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(x.Unwrap())
		}
	}
	walk(err)
	return names
}
