package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fintrackhq/fintrack-go/internal/domain"
	"github.com/fintrackhq/fintrack-go/internal/port"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses. Anything not
// recognized is a generic 500: the API deliberately exposes no finer
// failure taxonomy.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var validation *domain.ErrValidation
	var notFound *domain.ErrNotFound
	var unauthorized *domain.ErrUnauthorized

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// ============================================================
// Query parameter parsing
// ============================================================

const queryDateLayout = "2006-01-02"

// parseDateParam reads an optional YYYY-MM-DD query parameter. Absent
// yields nil; malformed yields a validation error.
func parseDateParam(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(queryDateLayout, v)
	if err != nil {
		return nil, &domain.ErrValidation{Field: name, Message: "must be YYYY-MM-DD"}
	}
	return &t, nil
}

// parseRequiredDateParam reads a mandatory YYYY-MM-DD query parameter.
func parseRequiredDateParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, &domain.ErrValidation{Field: name, Message: "required"}
	}
	t, err := time.Parse(queryDateLayout, v)
	if err != nil {
		return time.Time{}, &domain.ErrValidation{Field: name, Message: "must be YYYY-MM-DD"}
	}
	return t, nil
}

// parsePositiveIntParam reads an optional positive integer query
// parameter, falling back when absent.
func parsePositiveIntParam(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, &domain.ErrValidation{Field: name, Message: "must be a positive integer"}
	}
	return n, nil
}

// parseRangeFilter assembles the common user+date-range filter from the
// request. startDate/endDate are optional and inclusive.
func parseRangeFilter(r *http.Request) (port.TransactionFilter, error) {
	f := port.TransactionFilter{UserID: UserIDFromContext(r.Context())}

	start, err := parseDateParam(r, "startDate")
	if err != nil {
		return f, err
	}
	end, err := parseDateParam(r, "endDate")
	if err != nil {
		return f, err
	}
	f.StartDate = start
	f.EndDate = end
	return f, nil
}
