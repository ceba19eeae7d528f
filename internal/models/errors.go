package models

import (
	"errors"
	"fmt"
)

// Domain errors. Services wrap these with fmt.Errorf("%w: ...") to add a
// user-facing detail; handlers match them with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("conflict")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrTripNotActive       = errors.New("trip is not active")
	ErrIllegalTransition   = errors.New("illegal status transition")
	ErrAlreadyPaid         = errors.New("booking already paid")
	ErrBookingNotFulfilled = errors.New("booking is not fulfilled")
	ErrDuplicateReview     = errors.New("review already submitted for this booking")
	ErrBookingNotEligible  = errors.New("booking is not eligible for review")
)

// NotFound reports a missing entity, e.g. "trip not found"
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}
