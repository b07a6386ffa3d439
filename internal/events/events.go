package events

import (
	"encoding/json"
	"sync"
	"time"

	"staybook/internal/models"

	"github.com/rs/zerolog"
)

const (
	EventBookingCreated     = "booking_created"
	EventBookingUpdated     = "booking_updated"
	EventBookingConfirmed   = "booking_confirmed"
	EventBookingCancelled   = "booking_cancelled"
	EventBookingExpired     = "booking_expired"
	EventBookingCheckedIn   = "booking_checked_in"
	EventBookingCheckedOut  = "booking_checked_out"
	EventBookingCompleted   = "booking_completed"
	EventPaymentRecorded    = "payment_recorded"
	EventCalendarOverridden = "calendar_overridden"
)

// BookingEventPayload is the booking snapshot handed to event consumers.
type BookingEventPayload struct {
	BookingID    int64       `json:"booking_id"`
	BookingCode  string      `json:"booking_code"`
	HomestayID   int64       `json:"homestay_id"`
	HomestayName string      `json:"homestay_name,omitempty"`
	GuestName    string      `json:"guest_name"`
	CheckIn      models.Date `json:"check_in"`
	CheckOut     models.Date `json:"check_out"`
	Status       string      `json:"status"`
	TotalAmount  int64       `json:"total_amount"`
	AmountPaid   int64       `json:"amount_paid"`
	RefundDue    int64       `json:"refund_due"`
	Reason       string      `json:"reason,omitempty"`
}

// NewBookingPayload snapshots a booking.
func NewBookingPayload(b *models.Booking, homestayName string) BookingEventPayload {
	return BookingEventPayload{
		BookingID:    b.ID,
		BookingCode:  b.BookingCode,
		HomestayID:   b.HomestayID,
		HomestayName: homestayName,
		GuestName:    b.GuestName,
		CheckIn:      b.CheckIn,
		CheckOut:     b.CheckOut,
		Status:       b.Status,
		TotalAmount:  b.TotalAmount,
		AmountPaid:   b.AmountPaid,
		RefundDue:    b.RefundDue,
		Reason:       b.CancellationReason,
	}
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged when logger is set.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type and returns how many handlers failed.
func (b *EventBus) Publish(event *Event) int {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	failed := 0
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil {
			failed++
			if b.logger != nil {
				b.logger.Warn().Err(err).Str("event", event.Type).Msg("event handler failed")
			}
		}
	}
	return failed
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
