package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/aegis-momentum/internal/backtest"
	"github.com/wonny/aegis-momentum/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps the pipeline error taxonomy onto HTTP status codes
func statusFor(err error) int {
	var formatErr *contracts.FormatError
	var columnErr *contracts.MissingColumnError

	switch {
	case errors.As(err, &formatErr), errors.As(err, &columnErr), errors.Is(err, contracts.ErrInvalidFraction):
		return http.StatusBadRequest
	case errors.Is(err, contracts.ErrNoInstruments), errors.Is(err, backtest.ErrEmptyRange):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
