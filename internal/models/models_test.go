package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_ParseAndFormat(t *testing.T) {
	d, err := ParseDate("2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", d.String())
	assert.Equal(t, time.Sunday, d.Weekday())
	assert.Equal(t, "2025-06-02", d.AddDays(1).String())

	_, err = ParseDate("01.06.2025")
	assert.Error(t, err)

	assert.Equal(t, "", Date{}.String())
	assert.True(t, Date{}.IsZero())
}

func TestDate_Helpers(t *testing.T) {
	a := NewDate(2025, time.June, 1)
	b := NewDate(2025, time.June, 4)

	assert.Equal(t, 3, DaysBetween(a, b))
	assert.Equal(t, -3, DaysBetween(b, a))
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, -1, a.Compare(b))
	assert.True(t, a.Equal(DateOf(time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC))))

	var nights []string
	EachNight(a, b, func(d Date) { nights = append(nights, d.String()) })
	assert.Equal(t, []string{"2025-06-01", "2025-06-02", "2025-06-03"}, nights)
}

func TestDaysBetween_LongRange(t *testing.T) {
	from := NewDate(1700, time.January, 1)
	to := NewDate(2100, time.January, 1)

	count := 0
	EachNight(from, to, func(Date) { count++ })

	// 400-летний григорианский цикл
	assert.Equal(t, 146097, DaysBetween(from, to))
	assert.Equal(t, count, DaysBetween(from, to))
	assert.Equal(t, -146097, DaysBetween(to, from))
}

func TestDate_JSON(t *testing.T) {
	type payload struct {
		CheckIn  Date `json:"check_in"`
		CheckOut Date `json:"check_out"`
	}

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"check_in":"2025-06-01","check_out":""}`), &p))
	assert.Equal(t, "2025-06-01", p.CheckIn.String())
	assert.True(t, p.CheckOut.IsZero())

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"check_in":"2025-06-01","check_out":null}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"check_in":20250601}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"check_in":"2025-13-01"}`), &p))
}

func TestDate_Scan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan("2025-06-01"))
	assert.Equal(t, "2025-06-01", d.String())

	require.NoError(t, d.Scan([]byte("2025-06-02T00:00:00Z")))
	assert.Equal(t, "2025-06-02", d.String())

	require.NoError(t, d.Scan(time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-06-03", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))

	v, err := NewDate(2025, time.June, 1).Value()
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", v)
}

func TestReservation_Overlaps(t *testing.T) {
	r := Reservation{
		CheckIn:  NewDate(2025, time.June, 1),
		CheckOut: NewDate(2025, time.June, 5),
	}

	tests := []struct {
		name     string
		in, out  Date
		expected bool
	}{
		{"same range", NewDate(2025, 6, 1), NewDate(2025, 6, 5), true},
		{"inner", NewDate(2025, 6, 2), NewDate(2025, 6, 3), true},
		{"starts on checkout", NewDate(2025, 6, 5), NewDate(2025, 6, 8), false},
		{"ends on checkin", NewDate(2025, 5, 28), NewDate(2025, 6, 1), false},
		{"overlaps last night", NewDate(2025, 6, 4), NewDate(2025, 6, 7), true},
		{"covers", NewDate(2025, 5, 30), NewDate(2025, 6, 10), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.Overlaps(tt.in, tt.out))
		})
	}
}

func TestCalendarEntry_Normalize(t *testing.T) {
	e := CalendarEntry{IsAvailable: true, IsBlocked: true}
	e.Normalize()
	assert.False(t, e.IsAvailable)
	assert.False(t, e.Bookable())

	open := CalendarEntry{IsAvailable: true}
	assert.True(t, open.Bookable())

	o := Overrides{"2025-06-02": e}
	got, ok := o.Get(NewDate(2025, 6, 2))
	assert.True(t, ok)
	assert.True(t, got.IsBlocked)
	_, ok = Overrides(nil).Get(NewDate(2025, 6, 2))
	assert.False(t, ok)
}

func TestBooking_Helpers(t *testing.T) {
	b := &Booking{ID: 7, HomestayID: 3, Status: StatusPending}
	b.ApplyPrice(PriceBreakdown{Nights: 3, BaseAmount: 1500000, TaxAmount: 165000, TotalAmount: 1815000})
	assert.Equal(t, int64(1815000), b.TotalAmount)
	assert.Equal(t, int64(1815000), b.BalanceDue())

	b.AmountPaid = 2000000
	assert.Equal(t, int64(0), b.BalanceDue())

	res := b.Reservation()
	assert.Equal(t, int64(7), res.BookingID)
	assert.Equal(t, StatusPending, res.Status)

	assert.Equal(t, 3, GuestCounts{Adults: 2, Children: 1, Infants: 2}.Total())
}

func TestStatuses(t *testing.T) {
	assert.True(t, IsActiveReservationStatus(StatusPending))
	assert.True(t, IsActiveReservationStatus(StatusCheckedIn))
	assert.False(t, IsActiveReservationStatus(StatusCancelled))
	assert.False(t, IsActiveReservationStatus(StatusCheckedOut))
	assert.True(t, IsValidStatus(StatusCompleted))
	assert.False(t, IsValidStatus("changed"))
}
