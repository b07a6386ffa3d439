package models

import "time"

type GuestCounts struct {
	Adults   int `json:"number_of_adults"`
	Children int `json:"number_of_children"`
	Infants  int `json:"number_of_infants"`
}

// Total is the number of guests counted against occupancy; infants are not counted.
func (g GuestCounts) Total() int {
	return g.Adults + g.Children
}

// ActualGuest is the occupant when the booker books for someone else.
type ActualGuest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Booking struct {
	ID          int64  `json:"id"`
	BookingCode string `json:"booking_code"`
	HomestayID  int64  `json:"homestay_id"`
	CheckIn     Date   `json:"check_in"`
	CheckOut    Date   `json:"check_out"`
	Nights      int    `json:"nights"`
	GuestCounts

	GuestName       string       `json:"guest_name"`
	GuestEmail      string       `json:"guest_email"`
	GuestPhone      string       `json:"guest_phone"`
	SpecialRequests string       `json:"special_requests,omitempty"`
	ActualGuest     *ActualGuest `json:"actual_guest,omitempty"`

	BaseAmount     int64 `json:"base_amount"`
	CleaningFee    int64 `json:"cleaning_fee"`
	ServiceFee     int64 `json:"service_fee"`
	TaxAmount      int64 `json:"tax_amount"`
	DiscountAmount int64 `json:"discount_amount"`
	TotalAmount    int64 `json:"total_amount"`
	AmountPaid     int64 `json:"amount_paid"`
	RefundDue      int64 `json:"refund_due"`

	Status             string     `json:"status"`
	PaymentExpiresAt   *time.Time `json:"payment_expires_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// ApplyPrice copies a price breakdown onto the booking.
func (b *Booking) ApplyPrice(p PriceBreakdown) {
	b.Nights = p.Nights
	b.BaseAmount = p.BaseAmount
	b.CleaningFee = p.CleaningFee
	b.ServiceFee = p.ServiceFee
	b.TaxAmount = p.TaxAmount
	b.DiscountAmount = p.DiscountAmount
	b.TotalAmount = p.TotalAmount
}

// BalanceDue is what the guest still owes; never negative.
func (b *Booking) BalanceDue() int64 {
	if b.TotalAmount <= b.AmountPaid {
		return 0
	}
	return b.TotalAmount - b.AmountPaid
}

func (b *Booking) Reservation() Reservation {
	return Reservation{
		BookingID:  b.ID,
		HomestayID: b.HomestayID,
		CheckIn:    b.CheckIn,
		CheckOut:   b.CheckOut,
		Status:     b.Status,
	}
}

// BookingFilter narrows booking listings; zero values mean "any".
type BookingFilter struct {
	HomestayID int64
	Status     string
	From       Date
	To         Date
	Limit      int
}
