package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"staybook/internal/models"
)

// BookingLister is the read side the arrivals digest needs.
type BookingLister interface {
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
}

func shouldRemindStatus(status string) bool {
	switch status {
	case models.StatusConfirmed, models.StatusPending:
		return true
	default:
		return false
	}
}

// ArrivalsFor returns the bookings checking in on day.
func ArrivalsFor(ctx context.Context, lister BookingLister, day models.Date) ([]*models.Booking, error) {
	bookings, err := lister.ListBookings(ctx, models.BookingFilter{From: day, To: day.AddDays(1), Limit: 1000})
	if err != nil {
		return nil, err
	}
	out := bookings[:0]
	for _, b := range bookings {
		if b.CheckIn.Equal(day) && shouldRemindStatus(b.Status) {
			out = append(out, b)
		}
	}
	return out, nil
}

func formatArrivals(day models.Date, bookings []*models.Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Заезды на %s: %d\n", day.Time().Format("02.01.2006"), len(bookings))
	for _, b := range bookings {
		fmt.Fprintf(&sb, "\n• %s #%d %s, %d гостей, до %s", b.BookingCode, b.HomestayID, b.GuestName, b.Total(), b.CheckOut)
		if b.Status == models.StatusPending {
			sb.WriteString(" ⏳ не оплачено")
		}
	}
	return sb.String()
}

// ArrivalsDigest builds a job that sends tomorrow's arrivals to the host chats.
// Nothing is sent when there are no arrivals.
func (n *TelegramNotifier) ArrivalsDigest(lister BookingLister, now func() time.Time) func(ctx context.Context) error {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		day := models.DateOf(now()).AddDays(1)
		arrivals, err := ArrivalsFor(ctx, lister, day)
		if err != nil {
			return fmt.Errorf("arrivals: %w", err)
		}
		if len(arrivals) == 0 {
			return nil
		}
		return n.broadcast(formatArrivals(day, arrivals), "arrivals_digest")
	}
}
