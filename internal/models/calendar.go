package models

import "time"

// CalendarEntry is a per-date override for one homestay.
type CalendarEntry struct {
	HomestayID    int64     `json:"homestay_id"`
	Date          Date      `json:"date"`
	IsAvailable   bool      `json:"is_available"`
	IsBlocked     bool      `json:"is_blocked"`
	BlockReason   string    `json:"block_reason,omitempty"`
	CustomPrice   *int64    `json:"custom_price,omitempty"`
	MinimumNights *int      `json:"minimum_nights,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Normalize applies the blocked-implies-unavailable rule.
func (e *CalendarEntry) Normalize() {
	if e.IsBlocked {
		e.IsAvailable = false
	}
}

// Bookable reports whether the override allows a night on its date.
func (e *CalendarEntry) Bookable() bool {
	return !e.IsBlocked && e.IsAvailable
}

// Overrides indexes calendar entries by date string.
type Overrides map[string]CalendarEntry

func (o Overrides) Get(d Date) (CalendarEntry, bool) {
	if o == nil {
		return CalendarEntry{}, false
	}
	e, ok := o[d.String()]
	return e, ok
}

// CalendarDay is one row of the availability calendar shown to hosts.
type CalendarDay struct {
	Date          Date   `json:"date"`
	Price         int64  `json:"price"`
	PriceSource   string `json:"price_source"`
	IsAvailable   bool   `json:"is_available"`
	IsBlocked     bool   `json:"is_blocked"`
	BlockReason   string `json:"block_reason,omitempty"`
	MinimumNights int    `json:"minimum_nights"`
	Booked        bool   `json:"booked"`
	BookingID     int64  `json:"booking_id,omitempty"`
}
