package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"staybook/internal/domain"
	"staybook/internal/export"
	"staybook/internal/models"
	"staybook/internal/service"

	"github.com/gorilla/mux"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleListHomestays(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	homestays, err := s.homestays.List(r.Context(), activeOnly)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if homestays == nil {
		homestays = []*models.Homestay{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"homestays": homestays})
}

func (s *HTTPServer) handleCreateHomestay(w http.ResponseWriter, r *http.Request) {
	var h models.Homestay
	if err := decodeJSON(r, &h); err != nil {
		s.writeError(w, r, err)
		return
	}
	h.ID = 0
	if err := s.homestays.Create(r.Context(), &h); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *HTTPServer) handleGetHomestay(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := s.homestays.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *HTTPServer) handleUpdateHomestay(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var h models.Homestay
	if err := decodeJSON(r, &h); err != nil {
		s.writeError(w, r, err)
		return
	}
	h.ID = id
	if err := s.homestays.Update(r.Context(), &h); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	from, err := queryDate(r, "from", false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if from.IsZero() {
		from = models.DateOf(time.Now())
	}
	to, err := queryDate(r, "to", false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	days, err := s.homestays.Calendar(r.Context(), id, from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"homestay_id": id, "days": days})
}

func (s *HTTPServer) handleSetCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req service.CalendarOverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.homestays.SetCalendar(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"homestay_id": id, "updated": n})
}

func (s *HTTPServer) handleDeleteCalendarEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	date, err := models.ParseDate(mux.Vars(r)["date"])
	if err != nil {
		s.writeError(w, r, domain.Validationf("invalid date; expected YYYY-MM-DD"))
		return
	}
	if err := s.homestays.DeleteCalendarEntry(r.Context(), id, date); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := queryDate(r, "to", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// файл собирается целиком, чтобы ошибка ушла обычным JSON
	var buf bytes.Buffer
	if err := s.exporter.Export(r.Context(), &buf, from, to); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(from, to)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
