package domain

import (
	"context"
	"time"

	"staybook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type HomestayRepository interface {
	GetHomestay(ctx context.Context, id int64) (*models.Homestay, error)
	ListHomestays(ctx context.Context, activeOnly bool) ([]*models.Homestay, error)
	CreateHomestay(ctx context.Context, h *models.Homestay) error
	UpdateHomestay(ctx context.Context, h *models.Homestay) error
}

// CalendarStore holds per-date overrides. Reads feed availability and pricing.
type CalendarStore interface {
	GetOverride(ctx context.Context, homestayID int64, date models.Date) (*models.CalendarEntry, error)
	ListOverrides(ctx context.Context, homestayID int64, from, to models.Date) (models.Overrides, error)
	UpsertCalendarEntry(ctx context.Context, entry *models.CalendarEntry) error
	UpsertCalendarRange(ctx context.Context, entry models.CalendarEntry, from, to models.Date) (int, error)
	DeleteCalendarEntry(ctx context.Context, homestayID int64, date models.Date) error
}

// ReservationLedger is the only place that claims date ranges.
type ReservationLedger interface {
	HasOverlap(ctx context.Context, homestayID int64, checkIn, checkOut models.Date, excludeBookingID int64) (bool, error)
	Reserve(ctx context.Context, r models.Reservation) error
	Release(ctx context.Context, bookingID int64) error
	ListReservations(ctx context.Context, homestayID int64, from, to models.Date) ([]models.Reservation, error)
}

type BookingRepository interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	ListExpiredPending(ctx context.Context, now time.Time) ([]*models.Booking, error)
	CreateBookingWithReservation(ctx context.Context, b *models.Booking) error
	RescheduleBooking(ctx context.Context, b *models.Booking) error
	CancelBooking(ctx context.Context, b *models.Booking) error
	SaveBooking(ctx context.Context, b *models.Booking) error
	UpdateBookingStatus(ctx context.Context, id int64, version int64, status string) error
}

// Repository is the full storage surface implemented by database.DB.
type Repository interface {
	HomestayRepository
	CalendarStore
	ReservationLedger
	BookingRepository
}

// HomestayLocker serializes reserve steps per homestay.
type HomestayLocker interface {
	LockHomestay(ctx context.Context, homestayID int64) (unlock func(), err error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error
	ReplaceBookingsSheet(ctx context.Context, bookings []*models.Booking) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking, status string) error
}
