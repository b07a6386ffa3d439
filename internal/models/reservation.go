package models

// Reservation claims [CheckIn, CheckOut) of a homestay for one booking.
type Reservation struct {
	BookingID  int64  `json:"booking_id"`
	HomestayID int64  `json:"homestay_id"`
	CheckIn    Date   `json:"check_in"`
	CheckOut   Date   `json:"check_out"`
	Status     string `json:"status"`
}

// Overlaps uses half-open semantics: a check-out on day N does not collide with a check-in on day N.
func (r Reservation) Overlaps(checkIn, checkOut Date) bool {
	return r.CheckIn.Before(checkOut) && checkIn.Before(r.CheckOut)
}
