package onboarding

import (
	"errors"
	"fmt"
)

// Sentinel error kinds (stable for errors.Is).
var (
	ErrRequired     = errors.New("required")
	ErrTooShort     = errors.New("too_short")
	ErrTooLong      = errors.New("too_long")
	ErrInvalidInput = errors.New("invalid_input")
	ErrOutOfRange   = errors.New("out_of_range")
	ErrUnknownValue = errors.New("unknown_value")
)

// ErrFlowComplete is returned by Next once the last step has been passed.
var ErrFlowComplete = errors.New("onboarding already complete")

// FieldError is a validation failure for one logical field.
// Msg is user-facing; Kind is one of the sentinel kinds.
type FieldError struct {
	Field string
	Kind  error
	Msg   string
}

func (e FieldError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Kind)
	}
	return e.Msg
}

func (e FieldError) Unwrap() error { return e.Kind }

// FieldOf returns the field name carried by err, or "" if err is not a FieldError.
func FieldOf(err error) string {
	var fe FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return ""
}
