package scheduler

import "errors"

var (
	// ErrNotFound is returned when a card id does not exist.
	ErrNotFound = errors.New("card not found")
	// ErrInvalidInput is returned for a malformed card id or a quality outside [0, 5].
	ErrInvalidInput = errors.New("invalid input")
)
