package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"staybook/internal/config"
	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/export"
	"staybook/internal/models"
	"staybook/internal/pricing"
	"staybook/internal/repository"
	"staybook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	ts       *httptest.Server
	db       *database.DB
	homestay *models.Homestay
}

func newTestAPI(t *testing.T, cfg config.APIConfig) *testAPI {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &models.Homestay{
		Name:        "Villa Kenanga",
		BasePrice:   500000,
		CleaningFee: 100000,
		MaxGuests:   4,
		MaxChildren: 2,
		IsActive:    true,
	}
	require.NoError(t, db.CreateHomestay(context.Background(), h))

	calc := pricing.NewCalculator(pricing.DefaultPolicy())
	bookings := service.NewBookingService(db, calc, repository.NewMemoryLocker(time.Second), nil, nil, 30*time.Minute, &logger)
	homestays := service.NewHomestayService(db, calc, nil, &logger)
	exporter := export.NewExporter(db, t.TempDir(), &logger)

	srv := NewHTTPServer(cfg, bookings, homestays, exporter, db, &logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testAPI{ts: ts, db: db, homestay: h}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Date    string `json:"date"`
	} `json:"error"`
}

func expectError(t *testing.T, resp *http.Response, status int, code string) apiError {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected status %d, got %d", status, resp.StatusCode)
	}
	var body apiError
	decodeBody(t, resp, &body)
	assert.Equal(t, code, body.Error.Code)
	return body
}

// stay returns a range starting n days from today, so it is never in the past.
func stay(offset, nights int) (models.Date, models.Date) {
	in := models.DateOf(time.Now()).AddDays(offset)
	return in, in.AddDays(nights)
}

func defaultAPIConfig() config.APIConfig {
	return config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 1000, Burst: 1000}}
}

func (a *testAPI) bookingBody(in, out models.Date) map[string]any {
	return map[string]any{
		"homestay_id":      a.homestay.ID,
		"check_in":         in.String(),
		"check_out":        out.String(),
		"number_of_adults": 2,
		"guest_name":       "Dewi Lestari",
		"guest_email":      "dewi@example.com",
	}
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t, defaultAPIConfig())
	resp := a.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestQuoteAndAvailability(t *testing.T) {
	a := newTestAPI(t, defaultAPIConfig())
	in, out := stay(30, 3)

	resp := a.do(t, http.MethodPost, "/api/v1/bookings/calculate-price", map[string]any{
		"homestay_id":      a.homestay.ID,
		"check_in":         in.String(),
		"check_out":        out.String(),
		"number_of_adults": 2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var price models.PriceBreakdown
	decodeBody(t, resp, &price)
	assert.Equal(t, 3, price.Nights)
	assert.Greater(t, price.TotalAmount, int64(0))

	path := fmt.Sprintf("/api/v1/bookings/check-availability?homestay_id=%d&check_in=%s&check_out=%s", a.homestay.ID, in, out)
	resp = a.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var decision struct {
		Available bool   `json:"available"`
		Reason    string `json:"reason"`
	}
	decodeBody(t, resp, &decision)
	assert.True(t, decision.Available)

	t.Run("InvertedRange", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/bookings/check-availability?homestay_id=%d&check_in=%s&check_out=%s", a.homestay.ID, out, in)
		expectError(t, a.do(t, http.MethodGet, path, nil), http.StatusBadRequest, codeValidation)
	})

	t.Run("BadDate", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/bookings/check-availability?homestay_id=%d&check_in=2024-13-01&check_out=%s", a.homestay.ID, out)
		expectError(t, a.do(t, http.MethodGet, path, nil), http.StatusBadRequest, codeValidation)
	})

	t.Run("UnknownHomestay", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/bookings/check-availability?homestay_id=999&check_in=%s&check_out=%s", in, out)
		expectError(t, a.do(t, http.MethodGet, path, nil), http.StatusNotFound, codeNotFound)
	})

	t.Run("UnknownField", func(t *testing.T) {
		resp := a.do(t, http.MethodPost, "/api/v1/bookings/calculate-price", map[string]any{"nope": 1})
		expectError(t, resp, http.StatusBadRequest, codeValidation)
	})
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	a := newTestAPI(t, defaultAPIConfig())
	in, out := stay(40, 2)

	resp := a.do(t, http.MethodPost, "/api/v1/bookings", a.bookingBody(in, out))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var booking models.Booking
	decodeBody(t, resp, &booking)
	assert.Equal(t, models.StatusPending, booking.Status)
	assert.NotEmpty(t, booking.BookingCode)
	assert.NotNil(t, booking.PaymentExpiresAt)

	t.Run("OverlapRejected", func(t *testing.T) {
		resp := a.do(t, http.MethodPost, "/api/v1/bookings", a.bookingBody(in.AddDays(1), out.AddDays(1)))
		expectError(t, resp, http.StatusUnprocessableEntity, codeUnavailable)

		path := fmt.Sprintf("/api/v1/bookings/check-availability?homestay_id=%d&check_in=%s&check_out=%s&exclude_booking_id=%d",
			a.homestay.ID, in, out, booking.ID)
		resp = a.do(t, http.MethodGet, path, nil)
		var decision struct {
			Available bool `json:"available"`
		}
		decodeBody(t, resp, &decision)
		assert.True(t, decision.Available, "own reservation must be excluded")
	})

	t.Run("Get", func(t *testing.T) {
		resp := a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d", booking.ID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got models.Booking
		decodeBody(t, resp, &got)
		assert.Equal(t, booking.BookingCode, got.BookingCode)

		expectError(t, a.do(t, http.MethodGet, "/api/v1/bookings/999", nil), http.StatusNotFound, codeNotFound)
	})

	t.Run("List", func(t *testing.T) {
		resp := a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings?homestay_id=%d&status=pending", a.homestay.ID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var list struct {
			Bookings []models.Booking `json:"bookings"`
		}
		decodeBody(t, resp, &list)
		assert.Len(t, list.Bookings, 1)

		expectError(t, a.do(t, http.MethodGet, "/api/v1/bookings?status=weird", nil), http.StatusBadRequest, codeValidation)
	})

	t.Run("StaleVersion", func(t *testing.T) {
		resp := a.do(t, http.MethodPut, fmt.Sprintf("/api/v1/bookings/%d", booking.ID), map[string]any{
			"guest_name": "Dewi L.",
			"version":    booking.Version + 5,
		})
		expectError(t, resp, http.StatusConflict, codeConcurrent)
	})

	t.Run("Update", func(t *testing.T) {
		resp := a.do(t, http.MethodPut, fmt.Sprintf("/api/v1/bookings/%d", booking.ID), map[string]any{
			"check_out": out.AddDays(1).String(),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got models.Booking
		decodeBody(t, resp, &got)
		assert.Equal(t, 3, got.Nights)
	})

	t.Run("PaymentValidation", func(t *testing.T) {
		resp := a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/payments", booking.ID), map[string]any{"amount": 0})
		expectError(t, resp, http.StatusBadRequest, codeValidation)
	})

	t.Run("ConfirmAndCheckIn", func(t *testing.T) {
		resp := a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/confirm", booking.ID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/check-in", booking.ID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got models.Booking
		decodeBody(t, resp, &got)
		assert.Equal(t, models.StatusCheckedIn, got.Status)

		// повторный check-in недопустим
		resp = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/check-in", booking.ID), nil)
		expectError(t, resp, http.StatusConflict, codeConflict)

		resp = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/cancel", booking.ID), map[string]any{"reason": "guest changed plans"})
		expectError(t, resp, http.StatusConflict, codeConflict)
	})
}

func TestCancelOverHTTP(t *testing.T) {
	a := newTestAPI(t, defaultAPIConfig())
	in, out := stay(60, 2)

	resp := a.do(t, http.MethodPost, "/api/v1/bookings", a.bookingBody(in, out))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var booking models.Booking
	decodeBody(t, resp, &booking)

	path := fmt.Sprintf("/api/v1/bookings/%d/cancel", booking.ID)
	expectError(t, a.do(t, http.MethodPost, path, map[string]any{"reason": "short"}), http.StatusBadRequest, codeValidation)

	resp = a.do(t, http.MethodPost, path, map[string]any{"reason": "guest changed plans"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Booking
	decodeBody(t, resp, &got)
	assert.Equal(t, models.StatusCancelled, got.Status)

	// даты освобождены
	resp = a.do(t, http.MethodPost, "/api/v1/bookings", a.bookingBody(in, out))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestHomestayEndpoints(t *testing.T) {
	a := newTestAPI(t, defaultAPIConfig())

	resp := a.do(t, http.MethodPost, "/api/v1/homestays", map[string]any{
		"name":       "Rumah Kayu",
		"base_price": 300000,
		"max_guests": 2,
		"is_active":  true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Homestay
	decodeBody(t, resp, &created)
	assert.NotZero(t, created.ID)

	resp = a.do(t, http.MethodPost, "/api/v1/homestays", map[string]any{"name": "", "base_price": 0, "max_guests": 1})
	expectError(t, resp, http.StatusBadRequest, codeValidation)

	resp = a.do(t, http.MethodGet, "/api/v1/homestays", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Homestays []models.Homestay `json:"homestays"`
	}
	decodeBody(t, resp, &list)
	assert.Len(t, list.Homestays, 2)

	resp = a.do(t, http.MethodPut, fmt.Sprintf("/api/v1/homestays/%d", created.ID), map[string]any{
		"name":       "Rumah Kayu Baru",
		"base_price": 350000,
		"max_guests": 2,
		"is_active":  true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/homestays/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Homestay
	decodeBody(t, resp, &got)
	assert.Equal(t, "Rumah Kayu Baru", got.Name)
	assert.Equal(t, int64(350000), got.BasePrice)

	expectError(t, a.do(t, http.MethodGet, "/api/v1/homestays/999", nil), http.StatusNotFound, codeNotFound)
}

func TestCalendarEndpoints(t *testing.T) {
	a := newTestAPI(t, defaultAPIConfig())
	blocked, _ := stay(20, 1)
	base := fmt.Sprintf("/api/v1/homestays/%d/calendar", a.homestay.ID)

	resp := a.do(t, http.MethodPut, base, map[string]any{
		"from":         blocked.String(),
		"is_blocked":   true,
		"block_reason": "renovation",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = a.do(t, http.MethodGet, fmt.Sprintf("%s?from=%s&to=%s", base, blocked.AddDays(-1), blocked.AddDays(2)), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cal struct {
		Days []models.CalendarDay `json:"days"`
	}
	decodeBody(t, resp, &cal)
	require.Len(t, cal.Days, 3)
	assert.True(t, cal.Days[0].IsAvailable)
	assert.True(t, cal.Days[1].IsBlocked)
	assert.False(t, cal.Days[1].IsAvailable)

	// бронь через заблокированную дату отклоняется с указанием даты
	resp = a.do(t, http.MethodPost, "/api/v1/bookings", a.bookingBody(blocked.AddDays(-1), blocked.AddDays(1)))
	body := expectError(t, resp, http.StatusUnprocessableEntity, codeUnavailable)
	assert.Equal(t, blocked.String(), body.Error.Date)

	resp = a.do(t, http.MethodDelete, fmt.Sprintf("%s/%s", base, blocked), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/api/v1/bookings", a.bookingBody(blocked.AddDays(-1), blocked.AddDays(1)))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	expectError(t, a.do(t, http.MethodDelete, base+"/not-a-date", nil), http.StatusBadRequest, codeValidation)
}

func TestExportEndpoint(t *testing.T) {
	a := newTestAPI(t, defaultAPIConfig())
	in, out := stay(10, 2)
	resp := a.do(t, http.MethodPost, "/api/v1/bookings", a.bookingBody(in, out))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/admin/bookings/export?from=%s&to=%s", in, out.AddDays(5)), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	expectError(t, a.do(t, http.MethodGet, "/api/v1/admin/bookings/export?from="+in.String(), nil), http.StatusBadRequest, codeValidation)
}

func TestRateLimit(t *testing.T) {
	a := newTestAPI(t, config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 1}})

	resp := a.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = a.do(t, http.MethodGet, "/healthz", nil)
	expectError(t, resp, http.StatusTooManyRequests, "rate_limited")
}

func TestRouteNotFound(t *testing.T) {
	a := newTestAPI(t, defaultAPIConfig())
	expectError(t, a.do(t, http.MethodGet, "/api/v1/nothing", nil), http.StatusNotFound, codeNotFound)
	resp := a.do(t, http.MethodDelete, "/api/v1/bookings", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrInvalidRange, http.StatusBadRequest, codeValidation},
		{domain.Validationf("bad"), http.StatusBadRequest, codeValidation},
		{&domain.UnavailableError{Reason: domain.ReasonBlocked}, http.StatusUnprocessableEntity, codeUnavailable},
		{domain.ErrConflict, http.StatusConflict, codeConflict},
		{domain.ErrInvalidTransition, http.StatusConflict, codeConflict},
		{repository.ErrLockTimeout, http.StatusConflict, codeConflict},
		{fmt.Errorf("save: %w", domain.ErrConcurrentModification), http.StatusConflict, codeConcurrent},
		{domain.NotFoundf("booking %d", 1), http.StatusNotFound, codeNotFound},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, codeInternal},
	}
	for _, tc := range cases {
		status, code := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestRecoverMiddleware(t *testing.T) {
	logger := zerolog.Nop()
	srv := &HTTPServer{logger: &logger}
	h := srv.recoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("negative total")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), codeInternal)
}
