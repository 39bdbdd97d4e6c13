package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrScheduleNotFound is returned when a schedule does not exist or belongs to another user.
	ErrScheduleNotFound = errors.New("schedule not found for this user")
	// ErrToggleConflict means the row disappeared between the read and the update of a toggle.
	ErrToggleConflict = errors.New("failed to update schedule")
	// ErrDuplicateNotification is returned by Insert when the reminder already exists.
	ErrDuplicateNotification = errors.New("notification already exists")
)

// ValidationError reports a rejected field. Message is safe to show to callers.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
