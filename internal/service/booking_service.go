package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"staybook/internal/availability"
	"staybook/internal/domain"
	"staybook/internal/events"
	"staybook/internal/metrics"
	"staybook/internal/models"
	"staybook/internal/pricing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sync task types understood by the sheets worker.
const (
	SyncTaskUpsert       = "upsert"
	SyncTaskUpdateStatus = "update_status"
)

const expiredReason = "payment window expired"

type BookingService struct {
	repo          domain.Repository
	resolver      *availability.Resolver
	calculator    *pricing.Calculator
	locker        domain.HomestayLocker
	eventBus      domain.EventPublisher
	sheetsWorker  domain.SyncWorker
	paymentWindow time.Duration
	logger        *zerolog.Logger
	now           func() time.Time
}

func NewBookingService(
	repo domain.Repository,
	calculator *pricing.Calculator,
	locker domain.HomestayLocker,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	paymentWindow time.Duration,
	logger *zerolog.Logger,
) *BookingService {
	if paymentWindow <= 0 {
		paymentWindow = models.DefaultPaymentWindowMinutes * time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		repo:          repo,
		resolver:      availability.NewResolver(repo, repo),
		calculator:    calculator,
		locker:        locker,
		eventBus:      eventBus,
		sheetsWorker:  sheetsWorker,
		paymentWindow: paymentWindow,
		logger:        logger,
		now:           time.Now,
	}
}

// Quote prices a stay. It does not check availability.
func (s *BookingService) Quote(ctx context.Context, req QuoteRequest) (*models.PriceBreakdown, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := validateDates(req.CheckIn, req.CheckOut); err != nil {
		return nil, err
	}
	h, err := s.repo.GetHomestay(ctx, req.HomestayID)
	if err != nil {
		return nil, err
	}
	guests := resolveGuests(req.NumberOfGuests, req.GuestCounts)
	if err := validateGuests(h, guests); err != nil {
		return nil, err
	}

	overrides, err := s.repo.ListOverrides(ctx, h.ID, req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}
	price, err := s.calculator.Calculate(h, req.CheckIn, req.CheckOut, guests, overrides)
	if err != nil {
		return nil, err
	}
	metrics.IncQuote()
	return &price, nil
}

// CheckAvailability reports whether [checkIn, checkOut) can be booked.
// excludeBookingID ignores that booking's own reservation.
func (s *BookingService) CheckAvailability(
	ctx context.Context,
	homestayID int64,
	checkIn, checkOut models.Date,
	excludeBookingID int64,
) (availability.Decision, error) {
	if err := validateDates(checkIn, checkOut); err != nil {
		return availability.Decision{}, err
	}
	h, err := s.repo.GetHomestay(ctx, homestayID)
	if err != nil {
		return availability.Decision{}, err
	}
	return s.resolver.Check(ctx, h, checkIn, checkOut, excludeBookingID)
}

func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := validateDates(req.CheckIn, req.CheckOut); err != nil {
		return nil, err
	}
	if err := validateActualGuest(req.BookingForSomeoneElse, req.ActualGuest); err != nil {
		return nil, err
	}

	h, err := s.repo.GetHomestay(ctx, req.HomestayID)
	if err != nil {
		return nil, err
	}
	guests := resolveGuests(req.NumberOfGuests, req.GuestCounts)
	if err := validateGuests(h, guests); err != nil {
		return nil, err
	}

	overrides, err := s.repo.ListOverrides(ctx, h.ID, req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}
	if err := s.checkRange(ctx, h, req.CheckIn, req.CheckOut, 0, overrides); err != nil {
		return nil, err
	}

	price, err := s.calculator.Calculate(h, req.CheckIn, req.CheckOut, guests, overrides)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.paymentWindow)
	booking := &models.Booking{
		BookingCode:      newBookingCode(now),
		HomestayID:       h.ID,
		CheckIn:          req.CheckIn,
		CheckOut:         req.CheckOut,
		GuestCounts:      guests,
		GuestName:        strings.TrimSpace(req.GuestName),
		GuestEmail:       strings.TrimSpace(req.GuestEmail),
		GuestPhone:       strings.TrimSpace(req.GuestPhone),
		SpecialRequests:  req.SpecialRequests,
		Status:           models.StatusPending,
		PaymentExpiresAt: &expiresAt,
	}
	if req.BookingForSomeoneElse {
		booking.ActualGuest = req.ActualGuest
	}
	booking.ApplyPrice(price)

	unlock, err := s.locker.LockHomestay(ctx, h.ID)
	if err != nil {
		return nil, fmt.Errorf("lock homestay %d: %w", h.ID, err)
	}
	defer unlock()

	if err := s.claimRange(ctx, h.ID, req.CheckIn, req.CheckOut, 0); err != nil {
		return nil, err
	}
	if err := s.repo.CreateBookingWithReservation(ctx, booking); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			metrics.IncBookingRejection(domain.ReasonOverlap)
		}
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("booking_code", booking.BookingCode).
		Int64("homestay_id", h.ID).
		Str("check_in", booking.CheckIn.String()).
		Str("check_out", booking.CheckOut.String()).
		Int64("total", booking.TotalAmount).
		Msg("booking created")

	metrics.IncBookingTransition(booking.Status)
	s.publishEvent(events.EventBookingCreated, booking, h.Name)
	s.enqueueSync(ctx, booking, SyncTaskUpsert)

	return booking, nil
}

// Update changes dates, guests or contact details of a pending or confirmed booking.
func (s *BookingService) Update(ctx context.Context, id int64, req UpdateBookingRequest) (*models.Booking, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != models.StatusPending && b.Status != models.StatusConfirmed {
		return nil, invalidTransition(b, "update")
	}
	if req.Version != 0 && req.Version != b.Version {
		return nil, fmt.Errorf("booking %d version %d: %w", b.ID, req.Version, domain.ErrConcurrentModification)
	}

	h, err := s.repo.GetHomestay(ctx, b.HomestayID)
	if err != nil {
		return nil, err
	}

	checkIn, checkOut := b.CheckIn, b.CheckOut
	if req.CheckIn != nil {
		checkIn = *req.CheckIn
	}
	if req.CheckOut != nil {
		checkOut = *req.CheckOut
	}
	if err := validateDates(checkIn, checkOut); err != nil {
		return nil, err
	}
	rangeChanged := !checkIn.Equal(b.CheckIn) || !checkOut.Equal(b.CheckOut)

	guests := b.GuestCounts
	if req.Adults != nil {
		guests.Adults = *req.Adults
	}
	if req.Children != nil {
		guests.Children = *req.Children
	}
	if req.Infants != nil {
		guests.Infants = *req.Infants
	}
	if req.NumberOfGuests != nil && req.Adults == nil {
		guests.Adults = 0
		guests = resolveGuests(*req.NumberOfGuests, guests)
	}
	if err := validateGuests(h, guests); err != nil {
		return nil, err
	}

	forSomeoneElse := b.ActualGuest != nil
	if req.BookingForSomeoneElse != nil {
		forSomeoneElse = *req.BookingForSomeoneElse
	}
	actual := b.ActualGuest
	if req.ActualGuest != nil {
		actual = req.ActualGuest
	}
	if err := validateActualGuest(forSomeoneElse, actual); err != nil {
		return nil, err
	}

	overrides, err := s.repo.ListOverrides(ctx, h.ID, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	if rangeChanged {
		if err := s.checkRange(ctx, h, checkIn, checkOut, b.ID, overrides); err != nil {
			return nil, err
		}
	}

	price, err := s.calculator.Calculate(h, checkIn, checkOut, guests, overrides)
	if err != nil {
		return nil, err
	}

	b.CheckIn, b.CheckOut = checkIn, checkOut
	b.GuestCounts = guests
	if req.GuestName != nil {
		b.GuestName = strings.TrimSpace(*req.GuestName)
	}
	if req.GuestEmail != nil {
		b.GuestEmail = strings.TrimSpace(*req.GuestEmail)
	}
	if req.GuestPhone != nil {
		b.GuestPhone = strings.TrimSpace(*req.GuestPhone)
	}
	if req.SpecialRequests != nil {
		b.SpecialRequests = *req.SpecialRequests
	}
	if forSomeoneElse {
		b.ActualGuest = actual
	} else {
		b.ActualGuest = nil
	}
	b.ApplyPrice(price)
	confirmed := s.settleBalance(b)

	if rangeChanged {
		unlock, err := s.locker.LockHomestay(ctx, h.ID)
		if err != nil {
			return nil, fmt.Errorf("lock homestay %d: %w", h.ID, err)
		}
		defer unlock()
		if err := s.claimRange(ctx, h.ID, checkIn, checkOut, b.ID); err != nil {
			return nil, err
		}
		if err := s.repo.RescheduleBooking(ctx, b); err != nil {
			return nil, err
		}
	} else if err := s.repo.SaveBooking(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", b.ID).
		Bool("range_changed", rangeChanged).
		Str("status", b.Status).
		Int64("total", b.TotalAmount).
		Int64("refund_due", b.RefundDue).
		Msg("booking updated")

	s.publishEvent(events.EventBookingUpdated, b, h.Name)
	if confirmed {
		metrics.IncBookingTransition(b.Status)
		s.publishEvent(events.EventBookingConfirmed, b, h.Name)
	}
	s.enqueueSync(ctx, b, SyncTaskUpsert)

	return b, nil
}

// settleBalance applies the re-priced total to the payment state: an unpaid
// balance puts the booking back to pending, a covered total confirms a pending
// booking, an overpayment becomes a refund. Reports whether it confirmed.
func (s *BookingService) settleBalance(b *models.Booking) bool {
	if b.TotalAmount > b.AmountPaid {
		b.RefundDue = 0
		if b.Status == models.StatusConfirmed {
			b.Status = models.StatusPending
			expiresAt := s.now().UTC().Add(s.paymentWindow)
			b.PaymentExpiresAt = &expiresAt
		}
		return false
	}

	b.RefundDue = b.AmountPaid - b.TotalAmount
	if b.Status == models.StatusPending {
		b.Status = models.StatusConfirmed
		b.PaymentExpiresAt = nil
		return true
	}
	return false
}

// claimRange re-checks the ledger once the homestay lock is held. An overlap
// found here means another request won the race.
func (s *BookingService) claimRange(ctx context.Context, homestayID int64, checkIn, checkOut models.Date, excludeBookingID int64) error {
	overlap, err := s.repo.HasOverlap(ctx, homestayID, checkIn, checkOut, excludeBookingID)
	if err != nil {
		return err
	}
	if overlap {
		metrics.IncBookingRejection(domain.ReasonOverlap)
		return fmt.Errorf("homestay %d already reserved for %s..%s: %w", homestayID, checkIn, checkOut, domain.ErrConflict)
	}
	return nil
}

// Cancel cancels a pending or confirmed booking. Cancelling twice is a no-op.
func (s *BookingService) Cancel(ctx context.Context, id int64, reason string) (*models.Booking, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < models.MinCancellationReasonLength {
		return nil, domain.Validationf("cancellation reason must be at least %d characters", models.MinCancellationReasonLength)
	}

	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == models.StatusCancelled {
		return b, nil
	}
	if b.Status != models.StatusPending && b.Status != models.StatusConfirmed {
		return nil, invalidTransition(b, models.StatusCancelled)
	}

	h, err := s.repo.GetHomestay(ctx, b.HomestayID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	b.Status = models.StatusCancelled
	b.CancelledAt = &now
	b.CancellationReason = reason
	b.PaymentExpiresAt = nil
	b.RefundDue = cancellationRefund(h, b, now)

	if err := s.repo.CancelBooking(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", b.ID).
		Int64("refund_due", b.RefundDue).
		Msg("booking cancelled")

	metrics.IncBookingTransition(b.Status)
	s.publishEvent(events.EventBookingCancelled, b, h.Name)
	s.enqueueSync(ctx, b, SyncTaskUpdateStatus)

	return b, nil
}

// cancellationRefund returns the full paid amount while the free-cancellation
// window is open: strictly before check-in minus FreeCancellationDays.
func cancellationRefund(h *models.Homestay, b *models.Booking, now time.Time) int64 {
	deadline := b.CheckIn.AddDays(-h.FreeCancellationDays)
	if models.DateOf(now).Before(deadline) {
		return b.AmountPaid
	}
	return 0
}

// RecordPayment adds a payment. A pending booking that is fully paid becomes confirmed.
func (s *BookingService) RecordPayment(ctx context.Context, id int64, amount int64) (*models.Booking, error) {
	if amount <= 0 {
		return nil, domain.Validationf("payment amount must be positive")
	}

	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == models.StatusCancelled || b.Status == models.StatusCompleted {
		return nil, invalidTransition(b, "payment")
	}

	b.AmountPaid += amount
	confirmed := false
	if b.Status == models.StatusPending && b.AmountPaid >= b.TotalAmount {
		b.Status = models.StatusConfirmed
		b.PaymentExpiresAt = nil
		confirmed = true
	}
	if b.AmountPaid > b.TotalAmount {
		b.RefundDue = b.AmountPaid - b.TotalAmount
	} else {
		b.RefundDue = 0
	}

	if err := s.repo.SaveBooking(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", b.ID).
		Int64("amount", amount).
		Int64("amount_paid", b.AmountPaid).
		Bool("confirmed", confirmed).
		Msg("payment recorded")

	s.publishEvent(events.EventPaymentRecorded, b, "")
	if confirmed {
		metrics.IncBookingTransition(b.Status)
		s.publishEvent(events.EventBookingConfirmed, b, "")
	}
	s.enqueueSync(ctx, b, SyncTaskUpsert)

	return b, nil
}

// Confirm marks a pending booking as confirmed and clears its payment deadline.
func (s *BookingService) Confirm(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == models.StatusConfirmed {
		return b, nil
	}
	if b.Status != models.StatusPending {
		return nil, invalidTransition(b, models.StatusConfirmed)
	}

	b.Status = models.StatusConfirmed
	b.PaymentExpiresAt = nil
	if err := s.repo.SaveBooking(ctx, b); err != nil {
		return nil, err
	}

	metrics.IncBookingTransition(b.Status)
	s.publishEvent(events.EventBookingConfirmed, b, "")
	s.enqueueSync(ctx, b, SyncTaskUpdateStatus)
	return b, nil
}

func (s *BookingService) CheckIn(ctx context.Context, id int64) (*models.Booking, error) {
	return s.advance(ctx, id, models.StatusConfirmed, models.StatusCheckedIn, events.EventBookingCheckedIn)
}

func (s *BookingService) CheckOut(ctx context.Context, id int64) (*models.Booking, error) {
	return s.advance(ctx, id, models.StatusCheckedIn, models.StatusCheckedOut, events.EventBookingCheckedOut)
}

func (s *BookingService) Complete(ctx context.Context, id int64) (*models.Booking, error) {
	return s.advance(ctx, id, models.StatusCheckedOut, models.StatusCompleted, events.EventBookingCompleted)
}

// advance moves a booking one step along the stay lifecycle.
func (s *BookingService) advance(ctx context.Context, id int64, from, to, eventType string) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != from {
		return nil, invalidTransition(b, to)
	}

	if err := s.repo.UpdateBookingStatus(ctx, b.ID, b.Version, to); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetBooking(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	metrics.IncBookingTransition(to)
	s.publishEvent(eventType, updated, "")
	s.enqueueSync(ctx, updated, SyncTaskUpdateStatus)
	return updated, nil
}

// ExpirePending cancels pending bookings whose payment deadline passed before
// now and releases their reservations. Running it again finds nothing new.
func (s *BookingService) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.ListExpiredPending(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired bookings: %w", err)
	}

	count := 0
	for _, b := range expired {
		if ctx.Err() != nil {
			break
		}

		cancelledAt := now.UTC()
		b.Status = models.StatusCancelled
		b.CancelledAt = &cancelledAt
		b.CancellationReason = expiredReason
		b.PaymentExpiresAt = nil
		b.RefundDue = b.AmountPaid

		if err := s.repo.CancelBooking(ctx, b); err != nil {
			if errors.Is(err, domain.ErrConcurrentModification) {
				// уже изменена другим запросом
				s.logger.Debug().Int64("booking_id", b.ID).Msg("expired booking changed concurrently, skipping")
				continue
			}
			s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to expire booking")
			continue
		}

		count++
		s.publishEvent(events.EventBookingExpired, b, "")
		s.enqueueSync(ctx, b, SyncTaskUpdateStatus)
	}

	if count > 0 {
		metrics.AddExpired(count)
		s.logger.Info().Int("expired", count).Msg("expired unpaid bookings")
	}
	return count, nil
}

func (s *BookingService) Get(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	if filter.Status != "" && !models.IsValidStatus(filter.Status) {
		return nil, domain.Validationf("unknown status %q", filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = models.DefaultListLimit
	}
	return s.repo.ListBookings(ctx, filter)
}

// checkRange runs the availability resolver and counts rejections by reason.
func (s *BookingService) checkRange(
	ctx context.Context,
	h *models.Homestay,
	checkIn, checkOut models.Date,
	excludeBookingID int64,
	overrides models.Overrides,
) error {
	decision, err := s.resolver.CheckWith(ctx, h, checkIn, checkOut, excludeBookingID, overrides)
	if err != nil {
		return err
	}
	if !decision.Available {
		metrics.IncBookingRejection(decision.Reason)
		return decision.Err()
	}
	return nil
}

func invalidTransition(b *models.Booking, to string) error {
	return fmt.Errorf("booking %d is %s, cannot %s: %w", b.ID, b.Status, to, domain.ErrInvalidTransition)
}

// newBookingCode returns HS-YYMMDD-XXXXXX.
func newBookingCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("HS-%s-%s", now.Format("060102"), suffix)
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, homestayName string) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.PublishJSON(eventType, events.NewBookingPayload(booking, homestayName)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking *models.Booking, taskType string) {
	if s.sheetsWorker == nil {
		return
	}

	var status string
	if taskType == SyncTaskUpdateStatus {
		status = booking.Status
	}

	snapshot := *booking
	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, booking.ID, &snapshot, status); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
