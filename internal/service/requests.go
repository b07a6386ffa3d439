package service

import (
	"errors"
	"fmt"
	"strings"

	"staybook/internal/domain"
	"staybook/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// QuoteRequest asks for a price without reserving anything.
type QuoteRequest struct {
	HomestayID     int64       `json:"homestay_id" validate:"required,gt=0"`
	CheckIn        models.Date `json:"check_in"`
	CheckOut       models.Date `json:"check_out"`
	NumberOfGuests int         `json:"number_of_guests" validate:"gte=0"`
	models.GuestCounts
}

type CreateBookingRequest struct {
	HomestayID     int64       `json:"homestay_id" validate:"required,gt=0"`
	CheckIn        models.Date `json:"check_in"`
	CheckOut       models.Date `json:"check_out"`
	NumberOfGuests int         `json:"number_of_guests" validate:"gte=0"`
	models.GuestCounts

	GuestName       string `json:"guest_name" validate:"required,max=200"`
	GuestEmail      string `json:"guest_email" validate:"required,email"`
	GuestPhone      string `json:"guest_phone" validate:"omitempty,max=32"`
	SpecialRequests string `json:"special_requests" validate:"max=2000"`

	BookingForSomeoneElse bool                `json:"booking_for_someone_else"`
	ActualGuest           *models.ActualGuest `json:"actual_guest,omitempty"`
}

// UpdateBookingRequest changes only the fields that are set. Version, when
// non-zero, must match the stored booking.
type UpdateBookingRequest struct {
	CheckIn        *models.Date `json:"check_in,omitempty"`
	CheckOut       *models.Date `json:"check_out,omitempty"`
	NumberOfGuests *int         `json:"number_of_guests,omitempty" validate:"omitempty,gte=0"`
	Adults         *int         `json:"number_of_adults,omitempty" validate:"omitempty,gte=0"`
	Children       *int         `json:"number_of_children,omitempty" validate:"omitempty,gte=0"`
	Infants        *int         `json:"number_of_infants,omitempty" validate:"omitempty,gte=0"`

	GuestName       *string `json:"guest_name,omitempty" validate:"omitempty,max=200"`
	GuestEmail      *string `json:"guest_email,omitempty" validate:"omitempty,email"`
	GuestPhone      *string `json:"guest_phone,omitempty" validate:"omitempty,max=32"`
	SpecialRequests *string `json:"special_requests,omitempty" validate:"omitempty,max=2000"`

	BookingForSomeoneElse *bool               `json:"booking_for_someone_else,omitempty"`
	ActualGuest           *models.ActualGuest `json:"actual_guest,omitempty"`

	Version int64 `json:"version"`
}

// validateStruct runs struct tags and maps failures to domain.ErrValidation.
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Validationf("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return domain.Validationf("%s", strings.Join(msgs, "; "))
}

func validateDates(checkIn, checkOut models.Date) error {
	if checkIn.IsZero() || checkOut.IsZero() {
		return domain.Validationf("check-in and check-out dates are required")
	}
	if !checkIn.Before(checkOut) {
		return domain.ErrInvalidRange
	}
	if models.DaysBetween(checkIn, checkOut) > models.MaxCalendarDays {
		return domain.Validationf("stay is longer than %d nights", models.MaxCalendarDays)
	}
	return nil
}

// resolveGuests fills adults from the total guest number when only the total was sent.
func resolveGuests(total int, counts models.GuestCounts) models.GuestCounts {
	if counts.Adults == 0 && total > 0 {
		counts.Adults = total - counts.Children
	}
	return counts
}

// validateGuests checks counts against the homestay. Children are limited
// separately from adults; infants are not limited.
func validateGuests(h *models.Homestay, g models.GuestCounts) error {
	if g.Adults < 0 || g.Children < 0 || g.Infants < 0 {
		return domain.Validationf("guest counts must not be negative")
	}
	if g.Adults < 1 {
		return domain.Validationf("at least one adult is required")
	}
	if h.MaxGuests > 0 && g.Adults > h.MaxGuests {
		return domain.Validationf("homestay allows at most %d guests, requested %d", h.MaxGuests, g.Adults)
	}
	if g.Children > h.MaxChildren {
		return domain.Validationf("homestay allows at most %d children, requested %d", h.MaxChildren, g.Children)
	}
	return nil
}

func validateActualGuest(forSomeoneElse bool, g *models.ActualGuest) error {
	if !forSomeoneElse {
		return nil
	}
	if g == nil || strings.TrimSpace(g.Name) == "" {
		return domain.Validationf("actual guest name is required when booking for someone else")
	}
	if err := validate.Var(g.Email, "omitempty,email"); err != nil {
		return domain.Validationf("actual guest email is invalid")
	}
	return nil
}
