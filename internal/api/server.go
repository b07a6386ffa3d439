package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"staybook/internal/config"
	"staybook/internal/export"
	"staybook/internal/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HTTPServer exposes the booking REST API.
type HTTPServer struct {
	cfg       config.APIConfig
	bookings  *service.BookingService
	homestays *service.HomestayService
	exporter  *export.Exporter
	health    HealthChecker
	limiter   *rateLimiter
	server    *http.Server
	logger    *zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	bookings *service.BookingService,
	homestays *service.HomestayService,
	exporter *export.Exporter,
	health HealthChecker,
	logger *zerolog.Logger,
) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:       cfg,
		bookings:  bookings,
		homestays: homestays,
		exporter:  exporter,
		health:    health,
		limiter:   newRateLimiter(cfg.RateLimit),
		logger:    logger,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

// Handler builds the router with its middleware chain.
func (s *HTTPServer) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.recoverMiddleware, s.loggingMiddleware, s.limiter.Wrap)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()

	b := v1.PathPrefix("/bookings").Subrouter()
	b.HandleFunc("/calculate-price", s.handleQuote).Methods(http.MethodPost)
	b.HandleFunc("/check-availability", s.handleCheckAvailability).Methods(http.MethodGet)
	b.HandleFunc("", s.handleCreateBooking).Methods(http.MethodPost)
	b.HandleFunc("", s.handleListBookings).Methods(http.MethodGet)
	b.HandleFunc("/{id:[0-9]+}", s.handleGetBooking).Methods(http.MethodGet)
	b.HandleFunc("/{id:[0-9]+}", s.handleUpdateBooking).Methods(http.MethodPut)
	b.HandleFunc("/{id:[0-9]+}/cancel", s.handleCancelBooking).Methods(http.MethodPost)
	b.HandleFunc("/{id:[0-9]+}/payments", s.handleRecordPayment).Methods(http.MethodPost)
	b.HandleFunc("/{id:[0-9]+}/confirm", s.transition(s.bookings.Confirm)).Methods(http.MethodPost)
	b.HandleFunc("/{id:[0-9]+}/check-in", s.transition(s.bookings.CheckIn)).Methods(http.MethodPost)
	b.HandleFunc("/{id:[0-9]+}/check-out", s.transition(s.bookings.CheckOut)).Methods(http.MethodPost)
	b.HandleFunc("/{id:[0-9]+}/complete", s.transition(s.bookings.Complete)).Methods(http.MethodPost)

	h := v1.PathPrefix("/homestays").Subrouter()
	h.HandleFunc("", s.handleListHomestays).Methods(http.MethodGet)
	h.HandleFunc("", s.handleCreateHomestay).Methods(http.MethodPost)
	h.HandleFunc("/{id:[0-9]+}", s.handleGetHomestay).Methods(http.MethodGet)
	h.HandleFunc("/{id:[0-9]+}", s.handleUpdateHomestay).Methods(http.MethodPut)
	h.HandleFunc("/{id:[0-9]+}/calendar", s.handleCalendar).Methods(http.MethodGet)
	h.HandleFunc("/{id:[0-9]+}/calendar", s.handleSetCalendar).Methods(http.MethodPut)
	h.HandleFunc("/{id:[0-9]+}/calendar/{date}", s.handleDeleteCalendarEntry).Methods(http.MethodDelete)

	v1.HandleFunc("/admin/bookings/export", s.handleExport).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorBody(w, http.StatusNotFound, codeNotFound, "route not found", "")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorBody(w, http.StatusMethodNotAllowed, codeValidation, "method not allowed", "")
	})
	return router
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.PingContext(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
