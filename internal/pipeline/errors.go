package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownEntity is returned for entity names with no registered handler.
	ErrUnknownEntity = errors.New("unknown entity")
)

// ValidationError is a rejection raised by a handler hook. Its message is
// meant for the end user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Reject returns a ValidationError with a formatted message.
func Reject(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
