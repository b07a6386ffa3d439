package models

const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusCheckedIn  = "checked_in"
	StatusCheckedOut = "checked_out"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// ActiveReservationStatuses are the statuses whose reservations block the calendar.
var ActiveReservationStatuses = []string{StatusPending, StatusConfirmed, StatusCheckedIn}

func IsActiveReservationStatus(status string) bool {
	for _, s := range ActiveReservationStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusCheckedIn, StatusCheckedOut, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

const (
	// MinCancellationReasonLength is the minimum length of a cancellation reason in characters.
	MinCancellationReasonLength = 10

	// DefaultPaymentWindowMinutes время на оплату новой брони
	DefaultPaymentWindowMinutes = 30

	// DefaultWeeklyThresholdNights минимальное число ночей для недельной скидки
	DefaultWeeklyThresholdNights = 7

	// DefaultMonthlyThresholdNights минимальное число ночей для месячной скидки
	DefaultMonthlyThresholdNights = 28

	// DefaultCalendarDays длина календаря по умолчанию
	DefaultCalendarDays = 60

	// MaxCalendarDays ограничение длины календаря и диапазона override
	MaxCalendarDays = 366

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 128

	// DefaultListLimit размер выборки списка броней по умолчанию
	DefaultListLimit = 100

	// RateLimitRPS лимит запросов API в секунду по умолчанию
	RateLimitRPS = 20

	// RateLimitBurst всплеск запросов API по умолчанию
	RateLimitBurst = 40
)
