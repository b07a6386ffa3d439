// Package availability decides whether a homestay can be booked for a date range.
package availability

import (
	"context"
	"fmt"

	"staybook/internal/domain"
	"staybook/internal/models"
)

// Decision is the outcome of an availability check. Date is set when a
// specific night caused the rejection.
type Decision struct {
	Available bool        `json:"available"`
	Reason    string      `json:"reason,omitempty"`
	Date      models.Date `json:"date,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// Err converts a negative decision into an error matching domain.ErrUnavailable.
func (d Decision) Err() error {
	if d.Available {
		return nil
	}
	return &domain.UnavailableError{Reason: d.Reason, Date: d.Date, Message: d.Message}
}

func available() Decision { return Decision{Available: true} }

func rejected(reason string, date models.Date, format string, args ...interface{}) Decision {
	return Decision{Reason: reason, Date: date, Message: fmt.Sprintf(format, args...)}
}

type Resolver struct {
	calendar domain.CalendarStore
	ledger   domain.ReservationLedger
}

func NewResolver(calendar domain.CalendarStore, ledger domain.ReservationLedger) *Resolver {
	return &Resolver{calendar: calendar, ledger: ledger}
}

// IsAvailable reports only the verdict of Check.
func (r *Resolver) IsAvailable(ctx context.Context, h *models.Homestay, checkIn, checkOut models.Date, excludeBookingID int64) (bool, error) {
	d, err := r.Check(ctx, h, checkIn, checkOut, excludeBookingID)
	if err != nil {
		return false, err
	}
	return d.Available, nil
}

// Check loads the overrides for the stay and evaluates it.
func (r *Resolver) Check(ctx context.Context, h *models.Homestay, checkIn, checkOut models.Date, excludeBookingID int64) (Decision, error) {
	if !checkIn.Before(checkOut) {
		return Evaluate(h, checkIn, checkOut, nil), nil
	}
	overrides, err := r.calendar.ListOverrides(ctx, h.ID, checkIn, checkOut)
	if err != nil {
		return Decision{}, fmt.Errorf("load calendar overrides: %w", err)
	}
	return r.CheckWith(ctx, h, checkIn, checkOut, excludeBookingID, overrides)
}

// CheckWith evaluates the stay against pre-fetched overrides, then the ledger.
// excludeBookingID lets a booking ignore its own reservation while being updated.
func (r *Resolver) CheckWith(
	ctx context.Context,
	h *models.Homestay,
	checkIn, checkOut models.Date,
	excludeBookingID int64,
	overrides models.Overrides,
) (Decision, error) {
	d := Evaluate(h, checkIn, checkOut, overrides)
	if !d.Available {
		return d, nil
	}

	overlap, err := r.ledger.HasOverlap(ctx, h.ID, checkIn, checkOut, excludeBookingID)
	if err != nil {
		return Decision{}, fmt.Errorf("check reservations: %w", err)
	}
	if overlap {
		return rejected(domain.ReasonOverlap, models.Date{},
			"homestay is already reserved for part of %s to %s", checkIn, checkOut), nil
	}
	return available(), nil
}

// Evaluate applies the calendar and stay-length rules without touching storage.
// Dates without an override are available.
func Evaluate(h *models.Homestay, checkIn, checkOut models.Date, overrides models.Overrides) Decision {
	if checkIn.IsZero() || checkOut.IsZero() || !checkIn.Before(checkOut) {
		return rejected(domain.ReasonInvalidRange, models.Date{}, "check-out must be after check-in")
	}
	if !h.IsActive {
		return rejected(domain.ReasonInactive, models.Date{}, "homestay %d is not accepting bookings", h.ID)
	}

	nights := models.DaysBetween(checkIn, checkOut)

	minNights := h.MinNights
	if o, ok := overrides.Get(checkIn); ok && o.MinimumNights != nil {
		minNights = *o.MinimumNights
	}
	if minNights > 0 && nights < minNights {
		return rejected(domain.ReasonMinNights, checkIn, "minimum stay is %d nights, requested %d", minNights, nights)
	}
	if h.MaxNights > 0 && nights > h.MaxNights {
		return rejected(domain.ReasonMaxNights, models.Date{}, "maximum stay is %d nights, requested %d", h.MaxNights, nights)
	}

	for d := checkIn; d.Before(checkOut); d = d.AddDays(1) {
		o, ok := overrides.Get(d)
		if !ok {
			continue
		}
		if o.IsBlocked {
			if o.BlockReason != "" {
				return rejected(domain.ReasonBlocked, d, "night of %s is blocked: %s", d, o.BlockReason)
			}
			return rejected(domain.ReasonBlocked, d, "night of %s is blocked", d)
		}
		if !o.IsAvailable {
			return rejected(domain.ReasonClosed, d, "night of %s is not available", d)
		}
	}

	return available()
}
