package post

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a post id does not exist.
	ErrNotFound = errors.New("post not found")

	// ErrImmutable is returned when editing a post that was already published.
	ErrImmutable = errors.New("cannot edit a posted post")

	// ErrInFlight is returned when editing a post while a dispatch holds its claim.
	ErrInFlight = errors.New("post is being dispatched")

	// ErrInvalidStatus is returned for status values outside the enumeration.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidTransition is returned when an actor may not move a post
	// between the requested statuses.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports a user-supplied field that breaks a post invariant.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
