package service

import (
	"context"
	"fmt"
	"strings"

	"staybook/internal/domain"
	"staybook/internal/events"
	"staybook/internal/models"
	"staybook/internal/pricing"

	"github.com/rs/zerolog"
)

// CalendarOverrideRequest sets the same override on every date of [From, To).
// To defaults to the day after From.
type CalendarOverrideRequest struct {
	From          models.Date `json:"from"`
	To            models.Date `json:"to"`
	IsAvailable   *bool       `json:"is_available,omitempty"`
	IsBlocked     bool        `json:"is_blocked"`
	BlockReason   string      `json:"block_reason,omitempty" validate:"max=500"`
	CustomPrice   *int64      `json:"custom_price,omitempty" validate:"omitempty,gt=0"`
	MinimumNights *int        `json:"minimum_nights,omitempty" validate:"omitempty,gt=0"`
}

type HomestayService struct {
	repo       domain.Repository
	calculator *pricing.Calculator
	eventBus   domain.EventPublisher
	logger     *zerolog.Logger
}

func NewHomestayService(repo domain.Repository, calculator *pricing.Calculator, eventBus domain.EventPublisher, logger *zerolog.Logger) *HomestayService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &HomestayService{repo: repo, calculator: calculator, eventBus: eventBus, logger: logger}
}

func validateHomestay(h *models.Homestay) error {
	h.Name = strings.TrimSpace(h.Name)
	if err := validateStruct(h); err != nil {
		return err
	}
	if h.MaxNights > 0 && h.MinNights > h.MaxNights {
		return domain.Validationf("min_nights %d exceeds max_nights %d", h.MinNights, h.MaxNights)
	}
	if h.MaxChildren > h.MaxGuests {
		return domain.Validationf("max_children %d exceeds max_guests %d", h.MaxChildren, h.MaxGuests)
	}
	return nil
}

func (s *HomestayService) Create(ctx context.Context, h *models.Homestay) error {
	if err := validateHomestay(h); err != nil {
		return err
	}
	if err := s.repo.CreateHomestay(ctx, h); err != nil {
		return err
	}
	s.logger.Info().Int64("homestay_id", h.ID).Str("name", h.Name).Msg("homestay created")
	return nil
}

func (s *HomestayService) Update(ctx context.Context, h *models.Homestay) error {
	if err := validateHomestay(h); err != nil {
		return err
	}
	if err := s.repo.UpdateHomestay(ctx, h); err != nil {
		return err
	}
	s.logger.Info().Int64("homestay_id", h.ID).Msg("homestay updated")
	return nil
}

func (s *HomestayService) Get(ctx context.Context, id int64) (*models.Homestay, error) {
	return s.repo.GetHomestay(ctx, id)
}

func (s *HomestayService) List(ctx context.Context, activeOnly bool) ([]*models.Homestay, error) {
	return s.repo.ListHomestays(ctx, activeOnly)
}

// SetCalendar writes an override for each date of the request range and
// returns how many dates were written.
func (s *HomestayService) SetCalendar(ctx context.Context, homestayID int64, req CalendarOverrideRequest) (int, error) {
	if err := validateStruct(req); err != nil {
		return 0, err
	}
	if req.From.IsZero() {
		return 0, domain.Validationf("from date is required")
	}
	to := req.To
	if to.IsZero() {
		to = req.From.AddDays(1)
	}
	if !req.From.Before(to) {
		return 0, domain.ErrInvalidRange
	}
	if models.DaysBetween(req.From, to) > models.MaxCalendarDays {
		return 0, domain.Validationf("override range is longer than %d days", models.MaxCalendarDays)
	}

	if _, err := s.repo.GetHomestay(ctx, homestayID); err != nil {
		return 0, err
	}

	entry := models.CalendarEntry{
		HomestayID:    homestayID,
		IsAvailable:   true,
		IsBlocked:     req.IsBlocked,
		BlockReason:   strings.TrimSpace(req.BlockReason),
		CustomPrice:   req.CustomPrice,
		MinimumNights: req.MinimumNights,
	}
	if req.IsAvailable != nil {
		entry.IsAvailable = *req.IsAvailable
	}
	entry.Normalize()

	n, err := s.repo.UpsertCalendarRange(ctx, entry, req.From, to)
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Int64("homestay_id", homestayID).
		Str("from", req.From.String()).
		Str("to", to.String()).
		Int("dates", n).
		Bool("blocked", entry.IsBlocked).
		Msg("calendar override saved")

	if s.eventBus != nil {
		payload := map[string]interface{}{
			"homestay_id": homestayID,
			"from":        req.From,
			"to":          to,
			"blocked":     entry.IsBlocked,
		}
		if err := s.eventBus.PublishJSON(events.EventCalendarOverridden, payload); err != nil {
			s.logger.Error().Err(err).Msg("publish calendar event error")
		}
	}
	return n, nil
}

func (s *HomestayService) DeleteCalendarEntry(ctx context.Context, homestayID int64, date models.Date) error {
	if date.IsZero() {
		return domain.Validationf("date is required")
	}
	return s.repo.DeleteCalendarEntry(ctx, homestayID, date)
}

// Calendar builds the per-day view of [from, to): effective nightly price,
// override flags and the booking holding the night, if any.
func (s *HomestayService) Calendar(ctx context.Context, homestayID int64, from, to models.Date) ([]models.CalendarDay, error) {
	if from.IsZero() {
		return nil, domain.Validationf("from date is required")
	}
	if to.IsZero() {
		to = from.AddDays(models.DefaultCalendarDays)
	}
	if !from.Before(to) {
		return nil, domain.ErrInvalidRange
	}
	if models.DaysBetween(from, to) > models.MaxCalendarDays {
		return nil, domain.Validationf("calendar range is longer than %d days", models.MaxCalendarDays)
	}

	h, err := s.repo.GetHomestay(ctx, homestayID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.repo.ListOverrides(ctx, homestayID, from, to)
	if err != nil {
		return nil, err
	}
	reservations, err := s.repo.ListReservations(ctx, homestayID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}

	days := make([]models.CalendarDay, 0, models.DaysBetween(from, to))
	models.EachNight(from, to, func(d models.Date) {
		rate := s.calculator.NightlyRate(h, d, overrides)
		day := models.CalendarDay{
			Date:          d,
			Price:         rate.Amount,
			PriceSource:   rate.Source,
			IsAvailable:   h.IsActive,
			MinimumNights: h.MinNights,
		}
		if o, ok := overrides.Get(d); ok {
			day.IsAvailable = day.IsAvailable && o.Bookable()
			day.IsBlocked = o.IsBlocked
			day.BlockReason = o.BlockReason
			if o.MinimumNights != nil {
				day.MinimumNights = *o.MinimumNights
			}
		}
		for _, r := range reservations {
			if r.Overlaps(d, d.AddDays(1)) {
				day.Booked = true
				day.BookingID = r.BookingID
				day.IsAvailable = false
				break
			}
		}
		days = append(days, day)
	})

	return days, nil
}
