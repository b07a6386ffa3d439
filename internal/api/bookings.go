package api

import (
	"context"
	"net/http"
	"strings"

	"staybook/internal/models"
	"staybook/internal/service"
)

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req service.QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	price, err := s.bookings.Quote(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, price)
}

func (s *HTTPServer) handleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	homestayID, err := queryInt64(r, "homestay_id", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	checkIn, err := queryDate(r, "check_in", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	checkOut, err := queryDate(r, "check_out", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	exclude, err := queryInt64(r, "exclude_booking_id", false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	decision, err := s.bookings.CheckAvailability(r.Context(), homestayID, checkIn, checkOut, exclude)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	booking, err := s.bookings.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	var filter models.BookingFilter
	var err error
	if filter.HomestayID, err = queryInt64(r, "homestay_id", false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.From, err = queryDate(r, "from", false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.To, err = queryDate(r, "to", false); err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryInt64(r, "limit", false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter.Limit = int(limit)
	filter.Status = strings.TrimSpace(r.URL.Query().Get("status"))

	bookings, err := s.bookings.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	booking, err := s.bookings.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req service.UpdateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	booking, err := s.bookings.Update(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	booking, err := s.bookings.Cancel(r.Context(), id, body.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	booking, err := s.bookings.RecordPayment(r.Context(), id, body.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// transition wraps a body-less lifecycle step such as confirm or check-in.
func (s *HTTPServer) transition(step func(ctx context.Context, id int64) (*models.Booking, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		booking, err := step(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)
	}
}
