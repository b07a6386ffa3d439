package domain

import (
	"errors"
	"fmt"

	"staybook/internal/models"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrInvalidRange           = fmt.Errorf("%w: check-out must be after check-in", ErrValidation)
	ErrUnavailable            = errors.New("homestay is not available for the requested dates")
	ErrConflict               = errors.New("homestay is no longer available")
	ErrNotFound               = errors.New("not found")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	// ErrInvalidTransition is a lifecycle move the booking's current status does not allow.
	ErrInvalidTransition = fmt.Errorf("%w: invalid booking status transition", ErrConflict)
)

// Reasons reported with UnavailableError.
const (
	ReasonBlocked      = "blocked"
	ReasonClosed       = "not_available"
	ReasonMinNights    = "min_nights"
	ReasonMaxNights    = "max_nights"
	ReasonOverlap      = "overlap"
	ReasonInactive     = "inactive"
	ReasonInvalidRange = "invalid_range"
)

// UnavailableError describes why a range failed the availability check.
type UnavailableError struct {
	Reason  string
	Date    models.Date
	Message string
}

func (e *UnavailableError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if !e.Date.IsZero() {
		return fmt.Sprintf("%s: %s on %s", ErrUnavailable.Error(), e.Reason, e.Date)
	}
	return fmt.Sprintf("%s: %s", ErrUnavailable.Error(), e.Reason)
}

func (e *UnavailableError) Unwrap() error { return ErrUnavailable }

// Validationf builds an error that matches ErrValidation.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds an error that matches ErrNotFound.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
