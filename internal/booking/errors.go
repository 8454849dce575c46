package booking

import "errors"

// Business outcomes. They are returned wrapped with detail; branch with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrPastDate          = errors.New("booking date is in the past")
	ErrInvalidDuration   = errors.New("invalid booking duration")
	ErrSlotUnavailable   = errors.New("slot is not available")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("actor is not allowed to perform this action")
	ErrInvalidTransition = errors.New("invalid status transition")
)

var businessErrors = []error{
	ErrValidation,
	ErrPastDate,
	ErrInvalidDuration,
	ErrSlotUnavailable,
	ErrNotFound,
	ErrUnauthorized,
	ErrInvalidTransition,
}

// IsBusinessError reports whether err is an expected outcome rather than an
// infrastructure failure.
func IsBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
