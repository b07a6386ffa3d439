package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"staybook/internal/domain"
	"staybook/internal/models"

	"github.com/gorilla/mux"
)

const (
	codeValidation  = "validation_error"
	codeUnavailable = "unavailable"
	codeConflict    = "conflict"
	codeNotFound    = "not_found"
	codeConcurrent  = "concurrent_modification"
	codeInternal    = "internal"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Date    string `json:"date,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErrorBody(w http.ResponseWriter, statusCode int, code, message, date string) {
	writeJSON(w, statusCode, map[string]errorBody{
		"error": {Code: code, Message: message, Date: date},
	})
}

// classify maps a service error onto the HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict, codeConcurrent
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusUnprocessableEntity, codeUnavailable
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, codeConflict
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	message := err.Error()
	date := ""

	var unavailable *domain.UnavailableError
	if errors.As(err, &unavailable) && !unavailable.Date.IsZero() {
		date = unavailable.Date.String()
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		message = "internal server error"
	}
	writeErrorBody(w, status, code, message, date)
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return domain.Validationf("invalid JSON body: %v", err)
	}
	return nil
}

func queryDate(r *http.Request, name string, required bool) (models.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		if required {
			return models.Date{}, domain.Validationf("%s is required", name)
		}
		return models.Date{}, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, domain.Validationf("invalid %s; expected YYYY-MM-DD", name)
	}
	return d, nil
}

func queryInt64(r *http.Request, name string, required bool) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		if required {
			return 0, domain.Validationf("%s is required", name)
		}
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.Validationf("invalid %s", name)
	}
	return v, nil
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validationf("invalid id %q", raw)
	}
	return id, nil
}
